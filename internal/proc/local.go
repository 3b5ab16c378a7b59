package proc

import (
	"github.com/rishav/hftbacktest/internal/bus"
	"github.com/rishav/hftbacktest/internal/depth"
	"github.com/rishav/hftbacktest/internal/evs"
	"github.com/rishav/hftbacktest/internal/models"
	"github.com/rishav/hftbacktest/internal/orders"
	"github.com/rishav/hftbacktest/internal/reader"
	"github.com/rishav/hftbacktest/internal/recorder"
	"github.com/rishav/hftbacktest/internal/state"

	"github.com/rs/zerolog"
)

// Local is the strategy-side processor (C2): it maintains the locally
// observed depth and trade tape, mediates the strategy's own order
// intents, and applies authoritative fill/status updates reported back by
// the exchange.
//
// The local depth reflects only locally-visible updates; fills reported by
// the exchange are authoritative for own-order state but never alter
// depth. Positions and state values change only on fills received from
// the exchange (never speculatively at submission time).
type Local struct {
	reader  *reader.Reader
	depth   depth.L2MarketDepth
	state   *state.State
	latency models.LatencyModel

	tradeLen int
	trades   []reader.Event

	own      map[orders.OrderId]*orders.Order
	inFlight map[orders.OrderId]struct{}

	toExch   *bus.OrderBus
	fromExch *bus.OrderBus

	lastExchTs, lastLocalTs int64
	haveFeedLatency         bool

	lastEntryLatency, lastResponseLatency int64
	haveOrderLatency                      bool

	recorder recorder.Recorder
	log      zerolog.Logger
}

// NewLocal constructs a Local processor. toExch/fromExch are the two order
// buses shared with the paired Exchange processor for this asset.
func NewLocal(
	r *reader.Reader,
	d depth.L2MarketDepth,
	st *state.State,
	latency models.LatencyModel,
	tradeLen int,
	toExch, fromExch *bus.OrderBus,
	rec recorder.Recorder,
	log zerolog.Logger,
) *Local {
	return &Local{
		reader:   r,
		depth:    d,
		state:    st,
		latency:  latency,
		tradeLen: tradeLen,
		own:      make(map[orders.OrderId]*orders.Order),
		inFlight: make(map[orders.OrderId]struct{}),
		toExch:   toExch,
		fromExch: fromExch,
		recorder: rec,
		log:      log,
	}
}

func (l *Local) InitializeData() (int64, error) {
	ev, err := l.reader.Peek()
	if err == reader.ErrEndOfData {
		return 0, ErrEndOfData
	}
	if err != nil {
		return 0, err
	}
	return ev.LocalTimestamp, nil
}

func (l *Local) ProcessData() (int64, evs.Kind, error) {
	ev, err := l.reader.Next()
	if err == reader.ErrEndOfData {
		return 0, evs.LocalData, ErrEndOfData
	}
	if err != nil {
		return 0, evs.LocalData, err
	}
	l.applyEvent(ev)

	next, err := l.reader.Peek()
	if err == reader.ErrEndOfData {
		return 0, evs.LocalData, ErrEndOfData
	}
	if err != nil {
		return 0, evs.LocalData, err
	}
	return next.LocalTimestamp, evs.LocalData, nil
}

func (l *Local) applyEvent(ev reader.Event) {
	l.lastExchTs, l.lastLocalTs = ev.ExchTimestamp, ev.LocalTimestamp
	l.haveFeedLatency = true

	switch ev.Kind {
	case reader.KindClear:
		l.depth.ClearDepth(ev.Side)
	case reader.KindDepth:
		if ev.Side == orders.Buy {
			l.depth.UpdateBidDepth(ev.Price, ev.Qty, ev.LocalTimestamp)
		} else {
			l.depth.UpdateAskDepth(ev.Price, ev.Qty, ev.LocalTimestamp)
		}
	case reader.KindTrade:
		l.pushTrade(ev)
	}
}

func (l *Local) pushTrade(ev reader.Event) {
	if l.tradeLen <= 0 {
		return
	}
	l.trades = append(l.trades, ev)
	if len(l.trades) > l.tradeLen {
		l.trades = l.trades[len(l.trades)-l.tradeLen:]
	}
}

func (l *Local) ProcessRecvOrder(now int64, waitForId *orders.OrderId) (bool, error) {
	observed := false
	for {
		msg, ok := l.fromExch.PopIfReady(now)
		if !ok {
			break
		}
		l.applyResponse(msg)
		if waitForId != nil && msg.Id == *waitForId {
			observed = true
		}
		if l.recorder != nil {
			l.recorder.Record(recorder.Sample{
				Timestamp: now,
				Position:  l.state.Position(),
				Balance:   l.state.Values().Balance,
				Equity:    l.state.Equity(msg.FillPrice),
				Values:    *l.state.Values(),
			})
		}
	}
	return observed, nil
}

func (l *Local) applyResponse(resp orders.Order) {
	delete(l.inFlight, resp.Id)

	if resp.LocalTimestamp > resp.ExchTimestamp {
		l.lastResponseLatency = resp.LocalTimestamp - resp.ExchTimestamp
		l.haveOrderLatency = true
	}

	l.log.Debug().
		Uint64("order_id", resp.Id).
		Str("status", resp.Status.String()).
		Float64("fill_qty", resp.FillDeltaQty).
		Msg("local: order response")

	// Terminal statuses still land in own[] so the strategy can observe the
	// final state of an order it waited on; ClearInactiveOrders is the
	// explicit operation that prunes them.
	own := resp
	l.own[resp.Id] = &own

	if resp.FillDeltaQty > 0 {
		l.state.ApplyFill(resp.Side, resp.FillPrice, resp.FillDeltaQty, resp.IsMaker)
	}
}

func (l *Local) SubmitOrder(id orders.OrderId, side orders.Side, price, qty float64, ot orders.OrdType, tif orders.TimeInForce, now int64) error {
	if qty <= 0 || (ot == orders.Limit && price <= 0) {
		return ErrInvalidOrderRequest
	}
	if _, exists := l.own[id]; exists {
		return ErrOrderIdExist
	}
	if _, inFlight := l.inFlight[id]; inFlight {
		return ErrOrderRequestInProcess
	}

	order := orders.Order{
		Id:             id,
		Side:           side,
		Price:          price,
		Qty:            qty,
		Type:           ot,
		Tif:            tif,
		Status:         orders.Submitted,
		LocalTimestamp: now,
		Req:            orders.ReqNew,
	}
	l.own[id] = &order
	l.inFlight[id] = struct{}{}

	entry := l.latency.Entry(now)
	l.lastEntryLatency = entry
	l.haveOrderLatency = true
	l.toExch.Append(order, now+entry)

	l.log.Debug().Uint64("order_id", id).Str("side", side.String()).Float64("price", price).Float64("qty", qty).Msg("local: submit order")
	return nil
}

func (l *Local) Cancel(id orders.OrderId, now int64) error {
	existing, ok := l.own[id]
	if !ok {
		return ErrOrderNotFound
	}
	if _, inFlight := l.inFlight[id]; inFlight {
		return ErrOrderRequestInProcess
	}
	l.inFlight[id] = struct{}{}

	msg := orders.Order{
		Id:             id,
		Side:           existing.Side,
		Price:          existing.Price,
		Qty:            existing.Qty,
		FilledQty:      existing.FilledQty,
		LocalTimestamp: now,
		Req:            orders.ReqCancel,
	}
	entry := l.latency.Entry(now)
	l.lastEntryLatency = entry
	l.toExch.Append(msg, now+entry)

	l.log.Debug().Uint64("order_id", id).Msg("local: cancel order")
	return nil
}

func (l *Local) EarliestSendOrderTimestamp() (int64, bool) {
	return l.toExch.PeekEarliestReady()
}

func (l *Local) EarliestRecvOrderTimestamp() (int64, bool) {
	return l.fromExch.PeekEarliestReady()
}

func (l *Local) Position() float64                        { return l.state.Position() }
func (l *Local) StateValues() *state.StateValues          { return l.state.Values() }
func (l *Local) Depth() depth.MarketDepth                 { return l.depth }
func (l *Local) Trade() []reader.Event                    { return l.trades }
func (l *Local) ClearLastTrades()                         { l.trades = l.trades[:0] }
func (l *Local) Orders() map[orders.OrderId]*orders.Order { return l.own }

// ClearInactiveOrders drops every tracked order whose status is no longer
// active (Filled/Canceled/Rejected/Expired). applyResponse keeps every
// terminal order in the book until this is called.
func (l *Local) ClearInactiveOrders() {
	for id, o := range l.own {
		if !o.Status.Active() {
			delete(l.own, id)
		}
	}
}

func (l *Local) FeedLatency() (int64, int64, bool) {
	return l.lastExchTs, l.lastLocalTs, l.haveFeedLatency
}

func (l *Local) OrderLatency() (int64, int64, int64, bool) {
	return l.lastEntryLatency, l.lastResponseLatency, l.lastEntryLatency + l.lastResponseLatency, l.haveOrderLatency
}
