// Package state tracks one asset's trading state: position, running
// balance, and fee accrual, as computed by a pluggable AssetType.
package state

import (
	"github.com/rishav/hftbacktest/internal/models"
	"github.com/rishav/hftbacktest/internal/orders"
)

// StateValues is the read-only snapshot exposed to the strategy through
// Bot.StateValues.
type StateValues struct {
	Position      float64
	Balance       float64
	Fee           float64
	NumTrades     int64
	TradingVolume float64
	TradingValue  float64
}

// State accumulates StateValues for one asset as fills are applied.
type State struct {
	assetType     models.AssetType
	makerFee      float64
	takerFee      float64
	values        StateValues
	avgEntryPrice float64
}

// New creates a State for the given asset type and fee schedule. Fees are
// expressed as a fraction of notional (e.g. 0.0002 for 2bps).
func New(assetType models.AssetType, makerFee, takerFee float64) *State {
	return &State{assetType: assetType, makerFee: makerFee, takerFee: takerFee}
}

// Position returns the current signed position (positive = long).
func (s *State) Position() float64 {
	return s.values.Position
}

// Values returns the current state snapshot.
func (s *State) Values() *StateValues {
	return &s.values
}

// Equity returns balance plus the unrealized PnL of the current position
// marked at markPrice.
func (s *State) Equity(markPrice float64) float64 {
	return s.values.Balance + s.assetType.Equity(s.values.Position, s.avgEntryPrice, markPrice)
}

// ApplyFill updates position, balance, and fee accrual for one fill leg.
// side is the side of the order that this state's owner held (the maker's
// side when isMaker is true, the taker's side otherwise).
func (s *State) ApplyFill(side orders.Side, price, qty float64, isMaker bool) {
	amount := s.assetType.Amount(price, qty)

	fee := s.takerFee
	if isMaker {
		fee = s.makerFee
	}
	feeCost := amount * fee
	s.values.Fee += feeCost
	s.values.Balance -= feeCost

	sign := 1.0
	if side == orders.Sell {
		sign = -1.0
	}

	prevPos := s.values.Position
	newPos := prevPos + sign*qty

	// Realize PnL into balance for the portion of the position this fill
	// closes, valued against the average entry price.
	if prevPos != 0 && (prevPos > 0) != (sign > 0) {
		closedPos := prevPos
		if absF(prevPos) > qty {
			closedPos = -sign * qty
		}
		s.values.Balance += s.assetType.Equity(closedPos, s.avgEntryPrice, price)
	}

	// Maintain a volume-weighted average entry price for the portion of
	// the position that is being added to (not reduced).
	switch {
	case prevPos == 0 || (prevPos > 0) == (sign > 0):
		totalQty := absF(prevPos) + qty
		if totalQty > 0 {
			s.avgEntryPrice = (s.avgEntryPrice*absF(prevPos) + price*qty) / totalQty
		}
	case absF(newPos) < 1e-12:
		s.avgEntryPrice = 0
	case (newPos > 0) != (prevPos > 0):
		// Position flipped sign: the remainder after closing out the old
		// side starts a fresh average at the fill price.
		s.avgEntryPrice = price
	}

	s.values.Position = newPos
	s.values.NumTrades++
	s.values.TradingVolume += qty
	s.values.TradingValue += amount
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
