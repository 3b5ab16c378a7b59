// Package orders defines the core order types shared by the local and
// exchange processors.
//
// Key design decisions:
//
// 1. Wire-compatible numerics: Price and Qty are float64 and OrderId is a
//    uint64, matching the event record shape in the feed reader rather than
//    an equities-style fixed-point cents representation. This backtester
//    targets derivatives/crypto venues where tick sizes vary by instrument.
//
// 2. Sequence numbers are not used here: order identity across the two
//    sides of a bus is the caller-assigned OrderId, unique per asset per
//    side-of-bus (see internal/bus).
//
// 3. Timestamps are nanoseconds since an arbitrary epoch (simulated time,
//    not wall clock).
package orders

import "fmt"

// Side represents the side of an order.
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// Opposite returns the opposite side.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// OrdType is the execution semantics requested for an order.
type OrdType int

const (
	// Limit rests in the book until filled or cancelled.
	Limit OrdType = iota
	// Market executes immediately at the best available price, ignoring Price.
	Market
)

func (t OrdType) String() string {
	switch t {
	case Limit:
		return "LIMIT"
	case Market:
		return "MARKET"
	default:
		return "UNKNOWN"
	}
}

// TimeInForce controls what happens to the unfilled remainder of an order.
type TimeInForce int

const (
	// GTC (Good-Til-Cancelled) rests until explicitly cancelled.
	GTC TimeInForce = iota
	// IOC (Immediate-Or-Cancel) fills whatever is immediately available and
	// cancels the remainder.
	IOC
)

func (t TimeInForce) String() string {
	switch t {
	case GTC:
		return "GTC"
	case IOC:
		return "IOC"
	default:
		return "UNKNOWN"
	}
}

// Status is the current lifecycle state of an order.
type Status int

const (
	New Status = iota
	Submitted
	PartiallyFilled
	Filled
	Canceled
	Expired
	Rejected
)

func (s Status) String() string {
	switch s {
	case New:
		return "NEW"
	case Submitted:
		return "SUBMITTED"
	case PartiallyFilled:
		return "PARTIALLY_FILLED"
	case Filled:
		return "FILLED"
	case Canceled:
		return "CANCELED"
	case Expired:
		return "EXPIRED"
	case Rejected:
		return "REJECTED"
	default:
		return "UNKNOWN"
	}
}

// Active reports whether the order can still receive fills or be cancelled.
func (s Status) Active() bool {
	return s == New || s == Submitted || s == PartiallyFilled
}

// OrderId uniquely identifies an order within one asset on one side of a bus.
type OrderId = uint64

// ReqKind tags an order message travelling across an OrderBus.
type ReqKind int

const (
	ReqNew ReqKind = iota
	ReqCancel
)

func (r ReqKind) String() string {
	switch r {
	case ReqNew:
		return "NEW"
	case ReqCancel:
		return "CANCEL"
	default:
		return "UNKNOWN"
	}
}

// Order is a single resting or in-flight order, as seen from either the
// local or the exchange processor's own book.
type Order struct {
	Id             OrderId
	Side           Side
	Price          float64
	Qty            float64
	FilledQty      float64
	Type           OrdType
	Tif            TimeInForce
	Status         Status
	ExchTimestamp  int64
	LocalTimestamp int64

	// Req tags the bus message kind (New vs Cancel) that produced this
	// order snapshot; it is meaningless once the order is resting.
	Req ReqKind

	// FillDeltaQty/FillPrice/IsMaker are only meaningful on an exch->local
	// response message: the quantity and (volume-weighted) price of the
	// fill this particular response reports, and whether this side of the
	// trade was the maker.
	FillDeltaQty float64
	FillPrice    float64
	IsMaker      bool
}

// RemainingQty returns the unfilled quantity of the order.
func (o *Order) RemainingQty() float64 {
	return o.Qty - o.FilledQty
}

// IsFilled reports whether the order has been completely filled.
func (o *Order) IsFilled() bool {
	return o.RemainingQty() <= 1e-12
}

func (o *Order) String() string {
	return fmt.Sprintf("Order{Id:%d, %s %v@%v, Filled:%v, Status:%s}",
		o.Id, o.Side, o.Qty, o.Price, o.FilledQty, o.Status)
}

// OrderRequest is the side-agnostic request shape accepted by
// Bot.SubmitOrder. Unlike SubmitBuyOrder/SubmitSellOrder, the side is a
// field on the request rather than implied by the method name.
type OrderRequest struct {
	OrderId     OrderId
	Side        Side
	Price       float64
	Qty         float64
	OrderType   OrdType
	TimeInForce TimeInForce
}

// Fill represents one execution leg between a taker order and a single
// resting maker order.
type Fill struct {
	TradeId      uint64
	MakerOrderId OrderId
	TakerOrderId OrderId
	Price        float64
	Qty          float64
	Timestamp    int64
	TakerSide    Side
}

func (f *Fill) String() string {
	return fmt.Sprintf("Fill{Trade:%d, %v@%v, Maker:%d, Taker:%d}",
		f.TradeId, f.Qty, f.Price, f.MakerOrderId, f.TakerOrderId)
}

// ExecutionResult is the outcome of the exchange processing one New/Cancel
// request.
type ExecutionResult struct {
	Order        *Order
	Fills        []Fill
	Accepted     bool
	RejectReason string
}
