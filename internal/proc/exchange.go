package proc

import (
	"github.com/rishav/hftbacktest/internal/bus"
	"github.com/rishav/hftbacktest/internal/depth"
	"github.com/rishav/hftbacktest/internal/evs"
	"github.com/rishav/hftbacktest/internal/models"
	"github.com/rishav/hftbacktest/internal/orders"
	"github.com/rishav/hftbacktest/internal/reader"

	"github.com/rs/zerolog"
)

// restingOrder is one order sitting in the exchange's own book, with its
// estimated queue position at its price level.
type restingOrder struct {
	order orders.Order
	front float64 // estimated quantity ahead of this order at its price
}

// level groups the resting orders at one price on one side, in FIFO
// (price-time priority) arrival order.
type level struct {
	price  float64
	orders []*restingOrder
}

// book is the exchange's own order book: price-ordered levels per side,
// built and matched independently of the L2MarketDepth the local processor
// observes (the exchange always has perfect knowledge of its own orders).
type book struct {
	bids []*level // descending by price
	asks []*level // ascending by price
}

func (b *book) sideLevels(side orders.Side) *[]*level {
	if side == orders.Buy {
		return &b.bids
	}
	return &b.asks
}

func (b *book) findLevel(side orders.Side, price float64) (*level, int) {
	levels := *b.sideLevels(side)
	for i, lv := range levels {
		if lv.price == price {
			return lv, i
		}
	}
	return nil, -1
}

func (b *book) insertLevel(side orders.Side, price float64) *level {
	levels := b.sideLevels(side)
	lv := &level{price: price}
	idx := len(*levels)
	for i, existing := range *levels {
		if side == orders.Buy && price > existing.price {
			idx = i
			break
		}
		if side == orders.Sell && price < existing.price {
			idx = i
			break
		}
	}
	*levels = append(*levels, nil)
	copy((*levels)[idx+1:], (*levels)[idx:])
	(*levels)[idx] = lv
	return lv
}

func (b *book) removeLevelIfEmpty(side orders.Side, idx int) {
	levels := b.sideLevels(side)
	if idx < 0 || idx >= len(*levels) || len((*levels)[idx].orders) > 0 {
		return
	}
	*levels = append((*levels)[:idx], (*levels)[idx+1:]...)
}

// fillLeg is one price/qty pair a marketable order fills at, consuming
// displayed liquidity from the venue's market depth rather than from any
// individually tracked counterparty order — in a historical replay the
// other side of the trade is the market itself, not one of our own orders.
type fillLeg struct {
	price float64
	qty   float64
}

// fillMatcher decides how a marketable taker order consumes the opposing
// side of the market depth: NoPartialFillExchange requires the top level to
// fully cover the taker quantity or the order rests/cancels untouched;
// PartialFillExchange walks as many levels as needed and fills whatever
// liquidity is displayed.
type fillMatcher interface {
	// match returns the fill legs generated against d and the remaining
	// unfilled taker quantity.
	match(d depth.L2MarketDepth, side orders.Side, limitPrice, qty float64, marketable bool) ([]fillLeg, float64)
}

type noPartialFillMatcher struct{}

func crosses(side orders.Side, limitPrice, levelPrice float64, marketable bool) bool {
	if marketable {
		return true
	}
	if side == orders.Buy {
		return limitPrice >= levelPrice
	}
	return limitPrice <= levelPrice
}

func opposingBest(d depth.L2MarketDepth, side orders.Side) (price, qty float64, ok bool) {
	if side == orders.Buy {
		price, ok = d.BestAsk()
		if ok {
			qty = d.AskQtyAt(price)
		}
		return
	}
	price, ok = d.BestBid()
	if ok {
		qty = d.BidQtyAt(price)
	}
	return
}

func (noPartialFillMatcher) match(d depth.L2MarketDepth, side orders.Side, limitPrice, qty float64, marketable bool) ([]fillLeg, float64) {
	price, available, ok := opposingBest(d, side)
	if !ok || !crosses(side, limitPrice, price, marketable) || available < qty {
		// No top-of-book level, it doesn't cross, or there isn't enough
		// displayed quantity to cover the whole order: no partial fill
		// occurs, the taker order rests or is cancelled as-is.
		return nil, qty
	}
	return []fillLeg{{price: price, qty: qty}}, 0
}

type partialFillMatcher struct{}

func (partialFillMatcher) match(d depth.L2MarketDepth, side orders.Side, limitPrice, qty float64, marketable bool) ([]fillLeg, float64) {
	var legs []fillLeg
	remaining := qty

	var ladder []depth.PriceLevel
	if side == orders.Buy {
		ladder = d.Asks(0)
	} else {
		ladder = d.Bids(0)
	}

	for _, lv := range ladder {
		if remaining <= 1e-12 {
			break
		}
		if !crosses(side, limitPrice, lv.Price, marketable) {
			break
		}
		take := lv.Qty
		if take > remaining {
			take = remaining
		}
		legs = append(legs, fillLeg{price: lv.Price, qty: take})
		remaining -= take
	}
	return legs, remaining
}

// exchange is the shared implementation behind NoPartialFillExchange and
// PartialFillExchange; only the fillMatcher differs between them.
type exchange struct {
	reader  *reader.Reader
	depth   depth.L2MarketDepth
	latency models.LatencyModel
	queue   models.QueueModel
	matcher fillMatcher

	book book
	byId map[orders.OrderId]*restingOrder

	fromLocal *bus.OrderBus
	toLocal   *bus.OrderBus

	lastExchTs, lastLocalTs int64
	haveFeedLatency         bool

	log zerolog.Logger
}

func newExchange(
	r *reader.Reader,
	d depth.L2MarketDepth,
	latency models.LatencyModel,
	queue models.QueueModel,
	matcher fillMatcher,
	fromLocal, toLocal *bus.OrderBus,
	log zerolog.Logger,
) *exchange {
	return &exchange{
		reader:    r,
		depth:     d,
		latency:   latency,
		queue:     queue,
		matcher:   matcher,
		byId:      make(map[orders.OrderId]*restingOrder),
		fromLocal: fromLocal,
		toLocal:   toLocal,
		log:       log,
	}
}

func (e *exchange) InitializeData() (int64, error) {
	ev, err := e.reader.Peek()
	if err == reader.ErrEndOfData {
		return 0, ErrEndOfData
	}
	if err != nil {
		return 0, err
	}
	return ev.ExchTimestamp, nil
}

func (e *exchange) ProcessData() (int64, evs.Kind, error) {
	ev, err := e.reader.Next()
	if err == reader.ErrEndOfData {
		return 0, evs.ExchData, ErrEndOfData
	}
	if err != nil {
		return 0, evs.ExchData, err
	}
	e.applyDataEvent(ev)

	next, err := e.reader.Peek()
	if err == reader.ErrEndOfData {
		return 0, evs.ExchData, ErrEndOfData
	}
	if err != nil {
		return 0, evs.ExchData, err
	}
	return next.ExchTimestamp, evs.ExchData, nil
}

func (e *exchange) applyDataEvent(ev reader.Event) {
	e.lastExchTs, e.lastLocalTs = ev.ExchTimestamp, ev.LocalTimestamp
	e.haveFeedLatency = true

	switch ev.Kind {
	case reader.KindClear:
		e.depth.ClearDepth(ev.Side)
	case reader.KindDepth:
		var before, after float64
		lv, _ := e.book.findLevel(ev.Side, ev.Price)
		if ev.Side == orders.Buy {
			before = e.depth.BidQtyAt(ev.Price)
			e.depth.UpdateBidDepth(ev.Price, ev.Qty, ev.LocalTimestamp)
			after = ev.Qty
		} else {
			before = e.depth.AskQtyAt(ev.Price)
			e.depth.UpdateAskDepth(ev.Price, ev.Qty, ev.LocalTimestamp)
			after = ev.Qty
		}
		if lv != nil {
			e.adjustQueueAtLevel(lv, after-before)
		}
	case reader.KindTrade:
		e.applyTradeToRestingOrders(ev)
	}
}

// adjustQueueAtLevel applies an external depth change (other market
// participants adding/removing resting quantity) uniformly to every order
// resting at that level's estimated queue position.
func (e *exchange) adjustQueueAtLevel(lv *level, delta float64) {
	for _, ro := range lv.orders {
		ro.front = e.queue.DepthChange(ro.front, delta)
	}
}

// applyTradeToRestingOrders consumes the front of the queue at the traded
// price level as if the trade print happened ahead of our own resting
// orders, generating fills only once an order's estimated front queue has
// been fully consumed.
func (e *exchange) applyTradeToRestingOrders(ev reader.Event) {
	side := ev.Side.Opposite() // a trade at Side X consumes resting orders on the opposite book side
	lv, idx := e.book.findLevel(side, ev.Price)
	if lv == nil {
		return
	}
	remainingTrade := ev.Qty
	consumed := 0
	for _, ro := range lv.orders {
		if remainingTrade <= 1e-12 {
			break
		}
		fillQty, newFront := e.queue.Trade(ro.front, remainingTrade)
		ro.front = newFront
		if fillQty <= 0 {
			continue
		}
		if fillQty > ro.order.RemainingQty() {
			fillQty = ro.order.RemainingQty()
		}
		ro.order.FilledQty += fillQty
		remainingTrade -= fillQty
		e.sendFillResponse(ro, fillQty, ev.Price, true, ev.LocalTimestamp)
		if ro.order.IsFilled() {
			consumed++
		}
	}
	if consumed > 0 {
		lv.orders = lv.orders[consumed:]
		e.book.removeLevelIfEmpty(side, idx)
	}
}

func (e *exchange) ProcessRecvOrder(now int64, waitForId *orders.OrderId) (bool, error) {
	observed := false
	for {
		msg, ok := e.fromLocal.PopIfReady(now)
		if !ok {
			break
		}
		e.handleRequest(msg, now)
		if waitForId != nil && msg.Id == *waitForId {
			observed = true
		}
	}
	return observed, nil
}

func (e *exchange) handleRequest(req orders.Order, now int64) {
	switch req.Req {
	case orders.ReqCancel:
		e.handleCancel(req, now)
	default:
		e.handleNew(req, now)
	}
}

func (e *exchange) handleNew(req orders.Order, now int64) {
	if _, exists := e.byId[req.Id]; exists {
		e.respond(req, orders.Rejected, 0, 0, false, now)
		return
	}

	marketable := req.Type == orders.Market
	legs, remaining := e.matcher.match(e.depth, req.Side, req.Price, req.Qty, marketable)

	var filled float64
	for i, leg := range legs {
		filled += leg.qty
		resp := req
		resp.FilledQty = filled
		resp.FillDeltaQty = leg.qty
		resp.FillPrice = leg.price
		resp.IsMaker = false
		if i == len(legs)-1 && remaining <= 1e-12 {
			resp.Status = orders.Filled
		} else {
			resp.Status = orders.PartiallyFilled
		}
		e.sendResponse(resp, now)
	}
	req.FilledQty = filled

	switch {
	case remaining <= 1e-12:
		return
	case req.Type == orders.Market || req.Tif == orders.IOC:
		// The filled portion was already reported leg by leg above; this
		// final response just cancels whatever remains unfilled.
		e.respond(req, orders.Canceled, 0, 0, false, now)
		return
	default:
		req.Qty = remaining + filled
		ro := e.restOrder(req, remaining)
		status := orders.Submitted
		if filled > 0 {
			status = orders.PartiallyFilled
		}
		resp := ro.order
		resp.Status = status
		e.sendResponse(resp, now)
	}
}

func (e *exchange) restOrder(req orders.Order, remainingQty float64) *restingOrder {
	var displayed float64
	if req.Side == orders.Buy {
		displayed = e.depth.BidQtyAt(req.Price)
	} else {
		displayed = e.depth.AskQtyAt(req.Price)
	}
	ro := &restingOrder{
		order: req,
		front: e.queue.NewOrder(displayed),
	}
	ro.order.Qty = remainingQty + req.FilledQty
	lv, idx := e.book.findLevel(req.Side, req.Price)
	if lv == nil {
		lv = e.book.insertLevel(req.Side, req.Price)
		idx = -1
	}
	_ = idx
	lv.orders = append(lv.orders, ro)
	e.byId[req.Id] = ro
	return ro
}

func (e *exchange) handleCancel(req orders.Order, now int64) {
	ro, ok := e.byId[req.Id]
	if !ok {
		e.respond(req, orders.Rejected, 0, 0, false, now)
		return
	}
	side := ro.order.Side
	lv, idx := e.book.findLevel(side, ro.order.Price)
	if lv != nil {
		for i, o := range lv.orders {
			if o.order.Id == req.Id {
				lv.orders = append(lv.orders[:i], lv.orders[i+1:]...)
				break
			}
		}
		e.book.removeLevelIfEmpty(side, idx)
	}
	delete(e.byId, req.Id)

	resp := ro.order
	resp.Status = orders.Canceled
	e.sendResponse(resp, now)
}

func (e *exchange) sendFillResponse(ro *restingOrder, fillQty, price float64, isMaker bool, now int64) {
	resp := ro.order
	resp.FillDeltaQty = fillQty
	resp.FillPrice = price
	resp.IsMaker = isMaker
	if ro.order.IsFilled() {
		resp.Status = orders.Filled
	} else {
		resp.Status = orders.PartiallyFilled
	}
	e.sendResponse(resp, now)
}

func (e *exchange) respond(req orders.Order, status orders.Status, fillQty, price float64, isMaker bool, now int64) {
	resp := req
	resp.Status = status
	resp.FillDeltaQty = fillQty
	resp.FillPrice = price
	resp.IsMaker = isMaker
	e.sendResponse(resp, now)
}

func (e *exchange) sendResponse(resp orders.Order, now int64) {
	response := e.latency.Response(now)
	resp.ExchTimestamp = now
	resp.LocalTimestamp = now + response
	e.toLocal.Append(resp, resp.LocalTimestamp)

	e.log.Debug().
		Uint64("order_id", resp.Id).
		Str("status", resp.Status.String()).
		Float64("fill_qty", resp.FillDeltaQty).
		Msg("exchange: order response")
}

func (e *exchange) EarliestSendOrderTimestamp() (int64, bool) {
	return e.toLocal.PeekEarliestReady()
}

func (e *exchange) EarliestRecvOrderTimestamp() (int64, bool) {
	return e.fromLocal.PeekEarliestReady()
}

// NoPartialFillExchange matches a marketable order against the top of the
// opposing book only if it can be filled in its entirety there; otherwise
// the order rests (GTC) or is cancelled (IOC/Market) untouched. This
// mirrors original_source's conservative default matching engine.
type NoPartialFillExchange struct{ *exchange }

// NewNoPartialFillExchange constructs a NoPartialFillExchange processor.
func NewNoPartialFillExchange(
	r *reader.Reader,
	d depth.L2MarketDepth,
	latency models.LatencyModel,
	queue models.QueueModel,
	fromLocal, toLocal *bus.OrderBus,
	log zerolog.Logger,
) *NoPartialFillExchange {
	return &NoPartialFillExchange{newExchange(r, d, latency, queue, noPartialFillMatcher{}, fromLocal, toLocal, log)}
}

// PartialFillExchange walks as many opposing price levels as needed,
// filling whatever liquidity is available and resting (or cancelling) only
// the unfilled remainder.
type PartialFillExchange struct{ *exchange }

// NewPartialFillExchange constructs a PartialFillExchange processor.
func NewPartialFillExchange(
	r *reader.Reader,
	d depth.L2MarketDepth,
	latency models.LatencyModel,
	queue models.QueueModel,
	fromLocal, toLocal *bus.OrderBus,
	log zerolog.Logger,
) *PartialFillExchange {
	return &PartialFillExchange{newExchange(r, d, latency, queue, partialFillMatcher{}, fromLocal, toLocal, log)}
}
