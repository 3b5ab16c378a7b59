// Package proc implements the local (C2) and exchange (C3) processors:
// the strategy-side and matching-side halves of one asset, mirroring
// original_source's LocalProcessor/Processor traits.
package proc

import (
	"errors"

	"github.com/rishav/hftbacktest/internal/depth"
	"github.com/rishav/hftbacktest/internal/evs"
	"github.com/rishav/hftbacktest/internal/orders"
	"github.com/rishav/hftbacktest/internal/reader"
	"github.com/rishav/hftbacktest/internal/state"
)

// Sentinel errors, surfaced to the caller of the Bot operation that
// provoked them (see SPEC_FULL.md §7). EndOfData is recovered locally by
// the driver and never surfaces.
var (
	ErrOrderIdExist        = errors.New("proc: order id already exists")
	ErrOrderRequestInProcess = errors.New("proc: order request already in process")
	ErrOrderNotFound       = errors.New("proc: order not found")
	ErrInvalidOrderRequest = errors.New("proc: invalid order request")
	ErrInvalidOrderStatus  = errors.New("proc: invalid order status for this operation")
	ErrEndOfData           = errors.New("proc: end of data")
)

// Processor is the capability both the local and exchange processors
// implement: market-data consumption and order-bus draining.
type Processor interface {
	InitializeData() (int64, error)
	ProcessData() (int64, evs.Kind, error)
	ProcessRecvOrder(now int64, waitForId *orders.OrderId) (bool, error)
	EarliestSendOrderTimestamp() (int64, bool)
	EarliestRecvOrderTimestamp() (int64, bool)
}

// LocalProcessor additionally exposes the strategy-facing read/write
// surface the Bot control layer delegates to.
type LocalProcessor interface {
	Processor

	SubmitOrder(id orders.OrderId, side orders.Side, price, qty float64, ot orders.OrdType, tif orders.TimeInForce, now int64) error
	Cancel(id orders.OrderId, now int64) error

	Position() float64
	StateValues() *state.StateValues
	Depth() depth.MarketDepth
	Trade() []reader.Event
	ClearLastTrades()
	Orders() map[orders.OrderId]*orders.Order
	ClearInactiveOrders()

	// FeedLatency returns the (exchange, local) timestamps of the most
	// recently processed data event, i.e. the feed latency actually
	// observed so far; ok is false before the first event.
	FeedLatency() (exchTs, localTs int64, ok bool)

	// OrderLatency returns the entry latency of the most recent outbound
	// request (submit or cancel) and the response latency of the most
	// recently received order response, plus their sum as the round trip;
	// ok is false before the first submission.
	OrderLatency() (entry, response, roundTrip int64, ok bool)
}
