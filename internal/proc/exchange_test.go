package proc

import (
	"testing"

	"github.com/rishav/hftbacktest/internal/bus"
	"github.com/rishav/hftbacktest/internal/depth"
	"github.com/rishav/hftbacktest/internal/logging"
	"github.com/rishav/hftbacktest/internal/models"
	"github.com/rishav/hftbacktest/internal/orders"
	"github.com/rishav/hftbacktest/internal/reader"
)

func newTestNoPartialFillExchange(events []reader.Event) (*NoPartialFillExchange, *bus.OrderBus, *bus.OrderBus) {
	r := reader.New([]reader.DataSource{reader.MemorySource(events)})
	d := depth.New(1, 1)
	fromLocal := bus.New()
	toLocal := bus.New()
	e := NewNoPartialFillExchange(r, d, models.ConstantLatency{}, models.RiskAverseQueueModel{}, fromLocal, toLocal, logging.Nop())
	return e, fromLocal, toLocal
}

func primeBook(t *testing.T, e *NoPartialFillExchange, events []reader.Event) {
	t.Helper()
	if _, err := e.InitializeData(); err != nil {
		t.Fatalf("InitializeData: %v", err)
	}
	for range events {
		if _, _, err := e.ProcessData(); err != nil && err != ErrEndOfData {
			t.Fatalf("ProcessData: %v", err)
		}
	}
}

func TestNoPartialFillExchangeRestsWhenDepthCannotCoverQty(t *testing.T) {
	events := []reader.Event{
		{ExchTimestamp: 0, Kind: reader.KindDepth, Side: orders.Sell, Price: 101, Qty: 1},
	}
	e, fromLocal, toLocal := newTestNoPartialFillExchange(events)
	primeBook(t, e, events)

	fromLocal.Append(orders.Order{Id: 1, Side: orders.Buy, Price: 101, Qty: 2, Type: orders.Limit, Tif: orders.GTC, Req: orders.ReqNew}, 0)
	if _, err := e.ProcessRecvOrder(0, nil); err != nil {
		t.Fatalf("ProcessRecvOrder: %v", err)
	}

	resp, ok := toLocal.PopIfReady(0)
	if !ok {
		t.Fatal("expected a response")
	}
	if resp.Status != orders.Submitted {
		t.Fatalf("expected the order to rest (depth only shows 1 of 2 needed), got status=%s", resp.Status)
	}
	if _, exists := e.byId[1]; !exists {
		t.Fatal("expected order 1 to be resting in the exchange's own book")
	}
}

func TestNoPartialFillExchangeFillsWhenDepthFullyCovers(t *testing.T) {
	events := []reader.Event{
		{ExchTimestamp: 0, Kind: reader.KindDepth, Side: orders.Sell, Price: 101, Qty: 1},
	}
	e, fromLocal, toLocal := newTestNoPartialFillExchange(events)
	primeBook(t, e, events)

	fromLocal.Append(orders.Order{Id: 2, Side: orders.Buy, Price: 101, Qty: 1, Type: orders.Limit, Tif: orders.IOC, Req: orders.ReqNew}, 0)
	if _, err := e.ProcessRecvOrder(0, nil); err != nil {
		t.Fatalf("ProcessRecvOrder: %v", err)
	}

	resp, ok := toLocal.PopIfReady(0)
	if !ok {
		t.Fatal("expected a response")
	}
	if resp.Status != orders.Filled || resp.FillPrice != 101 || resp.FillDeltaQty != 1 {
		t.Fatalf("expected Filled 1@101, got %+v", resp)
	}
	if _, ok := toLocal.PopIfReady(0); ok {
		t.Fatal("expected no further response once fully filled in one leg")
	}
}

func TestNoPartialFillExchangeCancelRemovesRestingOrder(t *testing.T) {
	e, fromLocal, toLocal := newTestNoPartialFillExchange(nil)
	if _, err := e.InitializeData(); err != nil && err != ErrEndOfData {
		t.Fatalf("InitializeData: %v", err)
	}

	fromLocal.Append(orders.Order{Id: 3, Side: orders.Buy, Price: 99, Qty: 1, Type: orders.Limit, Tif: orders.GTC, Req: orders.ReqNew}, 0)
	if _, err := e.ProcessRecvOrder(0, nil); err != nil {
		t.Fatalf("ProcessRecvOrder: %v", err)
	}
	if _, ok := toLocal.PopIfReady(0); !ok {
		t.Fatal("expected a Submitted response")
	}

	fromLocal.Append(orders.Order{Id: 3, Req: orders.ReqCancel}, 0)
	if _, err := e.ProcessRecvOrder(0, nil); err != nil {
		t.Fatalf("ProcessRecvOrder (cancel): %v", err)
	}
	resp, ok := toLocal.PopIfReady(0)
	if !ok || resp.Status != orders.Canceled {
		t.Fatalf("expected Canceled response, got %+v ok=%v", resp, ok)
	}
	if _, exists := e.byId[3]; exists {
		t.Fatal("expected order 3 removed from the exchange's own book")
	}
}

func TestNoPartialFillExchangeRejectsUnknownCancel(t *testing.T) {
	e, fromLocal, toLocal := newTestNoPartialFillExchange(nil)
	if _, err := e.InitializeData(); err != nil && err != ErrEndOfData {
		t.Fatalf("InitializeData: %v", err)
	}

	fromLocal.Append(orders.Order{Id: 99, Req: orders.ReqCancel}, 0)
	if _, err := e.ProcessRecvOrder(0, nil); err != nil {
		t.Fatalf("ProcessRecvOrder: %v", err)
	}
	resp, ok := toLocal.PopIfReady(0)
	if !ok || resp.Status != orders.Rejected {
		t.Fatalf("expected Rejected response for an unknown cancel target, got %+v ok=%v", resp, ok)
	}
}

func TestPartialFillExchangeWalksMultipleLevels(t *testing.T) {
	events := []reader.Event{
		{ExchTimestamp: 0, Kind: reader.KindDepth, Side: orders.Sell, Price: 101, Qty: 0.5},
		{ExchTimestamp: 0, Kind: reader.KindDepth, Side: orders.Sell, Price: 102, Qty: 1},
	}
	r := reader.New([]reader.DataSource{reader.MemorySource(events)})
	d := depth.New(1, 1)
	fromLocal := bus.New()
	toLocal := bus.New()
	e := NewPartialFillExchange(r, d, models.ConstantLatency{}, models.RiskAverseQueueModel{}, fromLocal, toLocal, logging.Nop())

	if _, err := e.InitializeData(); err != nil {
		t.Fatalf("InitializeData: %v", err)
	}
	for range events {
		if _, _, err := e.ProcessData(); err != nil && err != ErrEndOfData {
			t.Fatalf("ProcessData: %v", err)
		}
	}

	fromLocal.Append(orders.Order{Id: 4, Side: orders.Buy, Price: 102, Qty: 1, Type: orders.Limit, Tif: orders.IOC, Req: orders.ReqNew}, 0)
	if _, err := e.ProcessRecvOrder(0, nil); err != nil {
		t.Fatalf("ProcessRecvOrder: %v", err)
	}

	var legs []orders.Order
	for {
		resp, ok := toLocal.PopIfReady(0)
		if !ok {
			break
		}
		legs = append(legs, resp)
	}
	if len(legs) != 2 {
		t.Fatalf("expected 2 fill legs walking both levels, got %d: %+v", len(legs), legs)
	}
	if legs[0].FillPrice != 101 || legs[0].FillDeltaQty != 0.5 || legs[0].Status != orders.PartiallyFilled {
		t.Fatalf("expected first leg 0.5@101 PartiallyFilled, got %+v", legs[0])
	}
	if legs[1].FillPrice != 102 || legs[1].FillDeltaQty != 0.5 || legs[1].Status != orders.Filled {
		t.Fatalf("expected second leg 0.5@102 Filled, got %+v", legs[1])
	}
}

func TestPartialFillExchangeRestsUnfilledRemainderWhenGTC(t *testing.T) {
	events := []reader.Event{
		{ExchTimestamp: 0, Kind: reader.KindDepth, Side: orders.Sell, Price: 101, Qty: 1},
	}
	r := reader.New([]reader.DataSource{reader.MemorySource(events)})
	d := depth.New(1, 1)
	fromLocal := bus.New()
	toLocal := bus.New()
	e := NewPartialFillExchange(r, d, models.ConstantLatency{}, models.RiskAverseQueueModel{}, fromLocal, toLocal, logging.Nop())

	if _, err := e.InitializeData(); err != nil {
		t.Fatalf("InitializeData: %v", err)
	}
	if _, _, err := e.ProcessData(); err != nil && err != ErrEndOfData {
		t.Fatalf("ProcessData: %v", err)
	}

	fromLocal.Append(orders.Order{Id: 5, Side: orders.Buy, Price: 101, Qty: 2, Type: orders.Limit, Tif: orders.GTC, Req: orders.ReqNew}, 0)
	if _, err := e.ProcessRecvOrder(0, nil); err != nil {
		t.Fatalf("ProcessRecvOrder: %v", err)
	}

	var legs []orders.Order
	for {
		resp, ok := toLocal.PopIfReady(0)
		if !ok {
			break
		}
		legs = append(legs, resp)
	}
	if len(legs) != 2 {
		t.Fatalf("expected a fill leg plus a resting-remainder response, got %d: %+v", len(legs), legs)
	}
	if legs[0].FillDeltaQty != 1 || legs[0].Status != orders.PartiallyFilled {
		t.Fatalf("expected first leg to fill 1@101, got %+v", legs[0])
	}
	if legs[1].Status != orders.PartiallyFilled || legs[1].Qty != 2 {
		t.Fatalf("expected the unfilled remainder to rest carrying the original qty, got %+v", legs[1])
	}
	if _, exists := e.byId[5]; !exists {
		t.Fatal("expected the unfilled remainder to be tracked as a resting order")
	}
}
