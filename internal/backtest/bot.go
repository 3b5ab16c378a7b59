// Package backtest implements the multi-asset discrete-event scheduler
// (C5), the strategy-facing Bot control surface, and the Asset/AssetBuilder
// (C6) that wires one local+exchange pair together.
package backtest

import (
	"math"

	"github.com/rishav/hftbacktest/internal/depth"
	"github.com/rishav/hftbacktest/internal/orders"
	"github.com/rishav/hftbacktest/internal/reader"
	"github.com/rishav/hftbacktest/internal/state"
)

// UntilEndOfData disables a wait's timeout: the loop runs until either the
// wait condition is satisfied or the simulation is exhausted.
const UntilEndOfData int64 = math.MaxInt64

// uninitializedTs is the sentinel for "cur_ts not yet primed".
const uninitializedTs int64 = math.MaxInt64

// Bot is the strategy-facing control surface implemented identically by
// Backtest and MultiAssetSingleExchangeBacktest. Every time-advancing
// method returns true if the scheduling loop returned at its deadline,
// false if the simulation was exhausted first.
type Bot interface {
	NumAssets() int
	CurrentTimestamp() int64

	SubmitBuyOrder(asset int, id orders.OrderId, price, qty float64, ot orders.OrdType, tif orders.TimeInForce, wait bool) (bool, error)
	SubmitSellOrder(asset int, id orders.OrderId, price, qty float64, ot orders.OrdType, tif orders.TimeInForce, wait bool) (bool, error)
	SubmitOrder(asset int, req orders.OrderRequest, wait bool) (bool, error)
	Cancel(asset int, id orders.OrderId, wait bool) (bool, error)

	WaitOrderResponse(asset int, id orders.OrderId, timeout int64) (bool, error)
	WaitNextFeed(includeOrderResp bool, timeout int64) (bool, error)
	Elapse(duration int64) (bool, error)

	ClearLastTrades(asset int)
	ClearInactiveOrders(asset int)
	Depth(asset int) depth.MarketDepth
	Trade(asset int) []reader.Event
	Orders(asset int) map[orders.OrderId]*orders.Order
	Position(asset int) float64
	StateValues(asset int) *state.StateValues
	FeedLatency(asset int) (exchTs, localTs int64, ok bool)
	OrderLatency(asset int) (entry, response, roundTrip int64, ok bool)

	Close() error
}
