package backtest

import (
	"github.com/rishav/hftbacktest/internal/depth"
	"github.com/rishav/hftbacktest/internal/evs"
	"github.com/rishav/hftbacktest/internal/orders"
	"github.com/rishav/hftbacktest/internal/proc"
	"github.com/rishav/hftbacktest/internal/reader"
	"github.com/rishav/hftbacktest/internal/state"

	"github.com/rs/zerolog"
)

type waitMode int

const (
	waitNone waitMode = iota
	waitAny
	waitSpecified
)

// waitCondition tells the scheduling loop when to shorten its deadline
// mid-run: waitSpecified shortens it the instant the named order's
// response is observed; waitAny shortens it on any order response;
// nextFeed additionally shortens it on every LocalData event consumed
// (set by WaitNextFeed whether or not it includes order responses).
type waitCondition struct {
	mode     waitMode
	asset    int
	id       orders.OrderId
	nextFeed bool
}

func (w waitCondition) specifiedIdFor(asset int) (orders.OrderId, bool) {
	if w.mode == waitSpecified && w.asset == asset {
		return w.id, true
	}
	return 0, false
}

// core holds the state shared by every Bot implementation: the scheduler's
// own clock, the EventSet, and the parallel local/exchange processor
// vectors. Both Backtest and MultiAssetSingleExchangeBacktest embed it and
// get the full Bot surface by method promotion; they differ only in how
// their processors are constructed and stored.
type core struct {
	curTs       int64
	initialized bool

	evs    *evs.EventSet
	locals []proc.LocalProcessor
	exchs  []proc.Processor

	log zerolog.Logger
}

func newCore(locals []proc.LocalProcessor, exchs []proc.Processor, log zerolog.Logger) *core {
	return &core{
		curTs:  uninitializedTs,
		evs:    evs.New(len(locals)),
		locals: locals,
		exchs:  exchs,
		log:    log,
	}
}

func (c *core) NumAssets() int { return len(c.locals) }

func (c *core) CurrentTimestamp() int64 { return c.curTs }

func mapProcErr(err error, asset int, id uint64) error {
	switch err {
	case proc.ErrOrderIdExist:
		return newOrderError(ErrOrderIdExist, asset, id)
	case proc.ErrOrderRequestInProcess:
		return newOrderError(ErrOrderRequestInProcess, asset, id)
	case proc.ErrOrderNotFound:
		return newOrderError(ErrOrderNotFound, asset, id)
	case proc.ErrInvalidOrderRequest:
		return newOrderError(ErrInvalidOrderRequest, asset, id)
	case proc.ErrInvalidOrderStatus:
		return newOrderError(ErrInvalidOrderStatus, asset, id)
	default:
		return newDataError(asset, err)
	}
}

// ensureInitialized primes every processor's feed reader on first use and
// sets cur_ts to the earliest scheduled event. Returns false if there is
// no event anywhere (an entirely empty set of feeds).
func (c *core) ensureInitialized() (bool, error) {
	if c.initialized {
		return true, nil
	}

	earliest := uninitializedTs
	found := false

	for a := range c.locals {
		ts, err := c.locals[a].InitializeData()
		switch err {
		case nil:
			c.evs.UpdateLocalData(a, ts)
			if ts < earliest {
				earliest, found = ts, true
			}
		case proc.ErrEndOfData:
			c.evs.InvalidateLocalData(a)
		default:
			return false, newDataError(a, err)
		}

		ts2, err2 := c.exchs[a].InitializeData()
		switch err2 {
		case nil:
			c.evs.UpdateExchData(a, ts2)
			if ts2 < earliest {
				earliest, found = ts2, true
			}
		case proc.ErrEndOfData:
			c.evs.InvalidateExchData(a)
		default:
			return false, newDataError(a, err2)
		}
	}

	if !found {
		return false, nil
	}
	c.curTs = earliest
	c.initialized = true
	return true, nil
}

// refreshOrderCells refreshes the two order-stream cells for every asset
// from the current peek of that asset's own order buses, ahead of each
// pick. This is the "for each asset a: refresh evs.exch_order[a] and
// evs.local_order[a]" step that runs at the top of every loop iteration.
func (c *core) refreshOrderCells() {
	for a := range c.locals {
		ts, ok := c.locals[a].EarliestRecvOrderTimestamp()
		c.evs.UpdateLocalOrderOpt(a, ts, ok)

		ts2, ok2 := c.exchs[a].EarliestRecvOrderTimestamp()
		c.evs.UpdateExchOrderOpt(a, ts2, ok2)
	}
}

// runLoop is the central scheduling algorithm: repeatedly pick the
// earliest pending event across every asset and stream, dispatch it, and
// refresh the EventSet, until either the deadline is reached or the
// simulation is exhausted.
func (c *core) runLoop(deadline int64, wait waitCondition) (bool, error) {
	initOk, err := c.ensureInitialized()
	if err != nil {
		return false, err
	}
	if !initOk {
		return false, nil
	}

	for {
		c.refreshOrderCells()

		ev, found := c.evs.Next()
		if !found {
			return false, nil
		}
		if ev.Timestamp > deadline {
			c.curTs = deadline
			return true, nil
		}
		c.curTs = ev.Timestamp
		a := ev.AssetNo

		switch ev.Kind {
		case evs.LocalData:
			nextTs, _, perr := c.locals[a].ProcessData()
			switch perr {
			case nil:
				c.evs.UpdateLocalData(a, nextTs)
			case proc.ErrEndOfData:
				c.evs.InvalidateLocalData(a)
			default:
				return false, newDataError(a, perr)
			}
			if wait.nextFeed {
				deadline = ev.Timestamp
			}

		case evs.ExchData:
			nextTs, _, perr := c.exchs[a].ProcessData()
			switch perr {
			case nil:
				c.evs.UpdateExchData(a, nextTs)
			case proc.ErrEndOfData:
				c.evs.InvalidateExchData(a)
			default:
				return false, newDataError(a, perr)
			}
			ts, ok := c.exchs[a].EarliestSendOrderTimestamp()
			c.evs.UpdateLocalOrderOpt(a, ts, ok)

		case evs.ExchOrder:
			if _, perr := c.exchs[a].ProcessRecvOrder(ev.Timestamp, nil); perr != nil {
				return false, newDataError(a, perr)
			}
			ts, ok := c.exchs[a].EarliestRecvOrderTimestamp()
			c.evs.UpdateExchOrderOpt(a, ts, ok)

		case evs.LocalOrder:
			var waitForId *orders.OrderId
			if id, ok := wait.specifiedIdFor(a); ok {
				waitForId = &id
			}
			observed, perr := c.locals[a].ProcessRecvOrder(ev.Timestamp, waitForId)
			if perr != nil {
				return false, newDataError(a, perr)
			}
			if observed || wait.mode == waitAny {
				deadline = ev.Timestamp
			}
			ts, ok := c.locals[a].EarliestRecvOrderTimestamp()
			c.evs.UpdateLocalOrderOpt(a, ts, ok)
		}
	}
}

// --- Bot surface, shared by every embedder ---

func (c *core) SubmitBuyOrder(asset int, id orders.OrderId, price, qty float64, ot orders.OrdType, tif orders.TimeInForce, wait bool) (bool, error) {
	return c.submit(asset, id, orders.Buy, price, qty, ot, tif, wait)
}

func (c *core) SubmitSellOrder(asset int, id orders.OrderId, price, qty float64, ot orders.OrdType, tif orders.TimeInForce, wait bool) (bool, error) {
	return c.submit(asset, id, orders.Sell, price, qty, ot, tif, wait)
}

// SubmitOrder derives the order's side from the request itself. The
// reference implementation this was ported from hardcoded Sell here
// regardless of the request's side; this is fixed.
func (c *core) SubmitOrder(asset int, req orders.OrderRequest, wait bool) (bool, error) {
	return c.submit(asset, req.OrderId, req.Side, req.Price, req.Qty, req.OrderType, req.TimeInForce, wait)
}

func (c *core) submit(asset int, id orders.OrderId, side orders.Side, price, qty float64, ot orders.OrdType, tif orders.TimeInForce, wait bool) (bool, error) {
	if asset < 0 || asset >= len(c.locals) {
		return false, newOrderError(ErrInvalidOrderRequest, asset, id)
	}
	if _, err := c.ensureInitialized(); err != nil {
		return false, err
	}
	if err := c.locals[asset].SubmitOrder(id, side, price, qty, ot, tif, c.curTs); err != nil {
		return false, mapProcErr(err, asset, id)
	}
	if !wait {
		return true, nil
	}
	return c.runLoop(UntilEndOfData, waitCondition{mode: waitSpecified, asset: asset, id: id})
}

func (c *core) Cancel(asset int, id orders.OrderId, wait bool) (bool, error) {
	if asset < 0 || asset >= len(c.locals) {
		return false, newOrderError(ErrInvalidOrderRequest, asset, id)
	}
	if _, err := c.ensureInitialized(); err != nil {
		return false, err
	}
	if err := c.locals[asset].Cancel(id, c.curTs); err != nil {
		return false, mapProcErr(err, asset, id)
	}
	if !wait {
		return true, nil
	}
	return c.runLoop(UntilEndOfData, waitCondition{mode: waitSpecified, asset: asset, id: id})
}

func (c *core) WaitOrderResponse(asset int, id orders.OrderId, timeout int64) (bool, error) {
	if _, err := c.ensureInitialized(); err != nil {
		return false, err
	}
	return c.runLoop(addDeadline(c.curTs, timeout), waitCondition{mode: waitSpecified, asset: asset, id: id})
}

func (c *core) WaitNextFeed(includeOrderResp bool, timeout int64) (bool, error) {
	if _, err := c.ensureInitialized(); err != nil {
		return false, err
	}
	mode := waitNone
	if includeOrderResp {
		mode = waitAny
	}
	return c.runLoop(addDeadline(c.curTs, timeout), waitCondition{mode: mode, nextFeed: true})
}

func (c *core) Elapse(duration int64) (bool, error) {
	if _, err := c.ensureInitialized(); err != nil {
		return false, err
	}
	return c.runLoop(addDeadline(c.curTs, duration), waitCondition{})
}

// addDeadline adds timeout to now, saturating at UntilEndOfData instead of
// overflowing when timeout is itself the UntilEndOfData sentinel.
func addDeadline(now, timeout int64) int64 {
	if timeout >= UntilEndOfData-now || now >= UntilEndOfData {
		return UntilEndOfData
	}
	return now + timeout
}

func (c *core) ClearLastTrades(asset int)    { c.locals[asset].ClearLastTrades() }
func (c *core) ClearInactiveOrders(asset int) { c.locals[asset].ClearInactiveOrders() }

func (c *core) Depth(asset int) depth.MarketDepth              { return c.locals[asset].Depth() }
func (c *core) Trade(asset int) []reader.Event                 { return c.locals[asset].Trade() }
func (c *core) Orders(asset int) map[orders.OrderId]*orders.Order { return c.locals[asset].Orders() }
func (c *core) Position(asset int) float64                     { return c.locals[asset].Position() }
func (c *core) StateValues(asset int) *state.StateValues       { return c.locals[asset].StateValues() }

func (c *core) FeedLatency(asset int) (int64, int64, bool) {
	return c.locals[asset].FeedLatency()
}

func (c *core) OrderLatency(asset int) (int64, int64, int64, bool) {
	return c.locals[asset].OrderLatency()
}

func (c *core) Close() error {
	return nil
}
