// Package depth defines the MarketDepth / L2MarketDepth capability
// contracts and a concrete hash-map-backed implementation.
//
// The simulation core (internal/proc, internal/backtest) only depends on
// the MarketDepth/L2MarketDepth interfaces: concrete market-depth data
// structures are explicitly out of scope for the distilled core, but a
// backtest cannot run end to end without at least one implementation, so
// HashMapMarketDepth plays that role the way original_source's
// HashMapMarketDepth does.
package depth

import "github.com/rishav/hftbacktest/internal/orders"

// PriceLevel is one rung of the L2 ladder.
type PriceLevel struct {
	Price float64
	Qty   float64
}

// MarketDepth is the read-only view a strategy or queue model consults.
type MarketDepth interface {
	BestBid() (price float64, ok bool)
	BestAsk() (price float64, ok bool)
	BidQtyAt(price float64) float64
	AskQtyAt(price float64) float64
	TickSize() float64
	LotSize() float64
}

// L2MarketDepth additionally exposes the ladder and the mutators used to
// apply depth diffs and snapshots from a feed.
type L2MarketDepth interface {
	MarketDepth

	// UpdateBidDepth applies a single price/qty diff to the bid side.
	// qty == 0 removes the level. Returns whether the best bid changed.
	UpdateBidDepth(price, qty float64, timestamp int64) (bestChanged bool)
	UpdateAskDepth(price, qty float64, timestamp int64) (bestChanged bool)

	// ClearDepth removes every level on the given side (used before a
	// snapshot replaces it wholesale).
	ClearDepth(side orders.Side)

	// Bids/Asks return up to n price levels ordered best-first (n<=0 means
	// all levels).
	Bids(n int) []PriceLevel
	Asks(n int) []PriceLevel
}

// HashMapMarketDepth keeps each side's ladder as tick->qty map plus a
// cached best price, which every update recomputes by scanning that
// side's map.
type HashMapMarketDepth struct {
	tickSize float64
	lotSize  float64

	bidQty map[int64]float64
	askQty map[int64]float64

	bestBidTick int64
	bestAskTick int64
	hasBid      bool
	hasAsk      bool
}

// New constructs an empty depth with the given tick and lot size.
func New(tickSize, lotSize float64) *HashMapMarketDepth {
	return &HashMapMarketDepth{
		tickSize: tickSize,
		lotSize:  lotSize,
		bidQty:   make(map[int64]float64),
		askQty:   make(map[int64]float64),
	}
}

func (d *HashMapMarketDepth) tick(price float64) int64 {
	if d.tickSize <= 0 {
		return int64(price)
	}
	return int64(price/d.tickSize + 0.5)
}

func (d *HashMapMarketDepth) priceOf(tick int64) float64 {
	if d.tickSize <= 0 {
		return float64(tick)
	}
	return float64(tick) * d.tickSize
}

func (d *HashMapMarketDepth) TickSize() float64 { return d.tickSize }
func (d *HashMapMarketDepth) LotSize() float64  { return d.lotSize }

func (d *HashMapMarketDepth) BestBid() (float64, bool) {
	if !d.hasBid {
		return 0, false
	}
	return d.priceOf(d.bestBidTick), true
}

func (d *HashMapMarketDepth) BestAsk() (float64, bool) {
	if !d.hasAsk {
		return 0, false
	}
	return d.priceOf(d.bestAskTick), true
}

func (d *HashMapMarketDepth) BidQtyAt(price float64) float64 {
	return d.bidQty[d.tick(price)]
}

func (d *HashMapMarketDepth) AskQtyAt(price float64) float64 {
	return d.askQty[d.tick(price)]
}

func (d *HashMapMarketDepth) UpdateBidDepth(price, qty float64, _ int64) bool {
	t := d.tick(price)
	prevBest, hadBest := d.BestBid()
	if qty <= 0 {
		delete(d.bidQty, t)
	} else {
		d.bidQty[t] = qty
	}
	d.recomputeBestBid()
	newBest, hasBest := d.BestBid()
	return hadBest != hasBest || prevBest != newBest
}

func (d *HashMapMarketDepth) UpdateAskDepth(price, qty float64, _ int64) bool {
	t := d.tick(price)
	prevBest, hadBest := d.BestAsk()
	if qty <= 0 {
		delete(d.askQty, t)
	} else {
		d.askQty[t] = qty
	}
	d.recomputeBestAsk()
	newBest, hasBest := d.BestAsk()
	return hadBest != hasBest || prevBest != newBest
}

func (d *HashMapMarketDepth) recomputeBestBid() {
	best := int64(0)
	found := false
	for t, qty := range d.bidQty {
		if qty <= 0 {
			continue
		}
		if !found || t > best {
			best = t
			found = true
		}
	}
	d.bestBidTick, d.hasBid = best, found
}

func (d *HashMapMarketDepth) recomputeBestAsk() {
	best := int64(0)
	found := false
	for t, qty := range d.askQty {
		if qty <= 0 {
			continue
		}
		if !found || t < best {
			best = t
			found = true
		}
	}
	d.bestAskTick, d.hasAsk = best, found
}

func (d *HashMapMarketDepth) ClearDepth(side orders.Side) {
	if side == orders.Buy {
		d.bidQty = make(map[int64]float64)
		d.hasBid = false
	} else {
		d.askQty = make(map[int64]float64)
		d.hasAsk = false
	}
}

func (d *HashMapMarketDepth) Bids(n int) []PriceLevel {
	return d.ladder(d.bidQty, n, true)
}

func (d *HashMapMarketDepth) Asks(n int) []PriceLevel {
	return d.ladder(d.askQty, n, false)
}

func (d *HashMapMarketDepth) ladder(m map[int64]float64, n int, descending bool) []PriceLevel {
	ticks := make([]int64, 0, len(m))
	for t, qty := range m {
		if qty > 0 {
			ticks = append(ticks, t)
		}
	}
	// Insertion sort: ladders are small (tens of levels) in practice.
	for i := 1; i < len(ticks); i++ {
		for j := i; j > 0; j-- {
			less := ticks[j] < ticks[j-1]
			if descending {
				less = ticks[j] > ticks[j-1]
			}
			if !less {
				break
			}
			ticks[j], ticks[j-1] = ticks[j-1], ticks[j]
		}
	}
	if n > 0 && len(ticks) > n {
		ticks = ticks[:n]
	}
	levels := make([]PriceLevel, len(ticks))
	for i, t := range ticks {
		levels[i] = PriceLevel{Price: d.priceOf(t), Qty: m[t]}
	}
	return levels
}
