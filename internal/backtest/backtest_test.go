package backtest

import (
	"testing"

	"github.com/rishav/hftbacktest/internal/logging"
	"github.com/rishav/hftbacktest/internal/models"
	"github.com/rishav/hftbacktest/internal/orders"
	"github.com/rishav/hftbacktest/internal/reader"
)

func buildTestBacktest(t *testing.T, events []reader.Event, latency models.LatencyModel, kind ExchangeKind) *Backtest {
	t.Helper()
	asset, err := NewAssetBuilder().
		DataSources(reader.MemorySource(events)).
		Depth(1, 1).
		Latency(latency).
		Asset(models.LinearAssetType{}).
		Queue(models.RiskAverseQueueModel{}).
		Exchange(kind).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return NewBacktest([]*Asset{asset}, logging.Nop())
}

// S1: a limit buy that doesn't cross the book rests, then is cancelled.
func TestScenarioSingleLimitRestAndCancel(t *testing.T) {
	events := []reader.Event{
		{ExchTimestamp: 0, LocalTimestamp: 0, Kind: reader.KindDepth, Side: orders.Buy, Price: 100, Qty: 2},
		{ExchTimestamp: 0, LocalTimestamp: 0, Kind: reader.KindDepth, Side: orders.Sell, Price: 101, Qty: 1},
	}
	bt := buildTestBacktest(t, events, models.ConstantLatency{}, NoPartialFill)

	if _, err := bt.SubmitBuyOrder(0, 1, 99, 1, orders.Limit, orders.GTC, true); err != nil {
		t.Fatalf("SubmitBuyOrder: %v", err)
	}
	o, ok := bt.Orders(0)[1]
	if !ok {
		t.Fatal("expected order 1 to be tracked")
	}
	if o.Status != orders.Submitted {
		t.Fatalf("expected order to rest as Submitted (doesn't cross 101), got %s", o.Status)
	}

	if _, err := bt.Cancel(0, 1, true); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	o, ok = bt.Orders(0)[1]
	if !ok || o.Status != orders.Canceled {
		t.Fatalf("expected order 1 Canceled, got %+v ok=%v", o, ok)
	}
}

// S2: a marketable IOC buy against a NoPartialFillExchange that can fully
// cover it fills immediately and pays the taker fee.
func TestScenarioMarketableBuyNoPartialFillTakerFee(t *testing.T) {
	events := []reader.Event{
		{ExchTimestamp: 0, LocalTimestamp: 0, Kind: reader.KindDepth, Side: orders.Sell, Price: 101, Qty: 2},
	}
	asset, err := NewAssetBuilder().
		DataSources(reader.MemorySource(events)).
		Depth(1, 1).
		Latency(models.ConstantLatency{}).
		Asset(models.LinearAssetType{}).
		Queue(models.RiskAverseQueueModel{}).
		Fees(0, 0.0005).
		Exchange(NoPartialFill).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	bt := NewBacktest([]*Asset{asset}, logging.Nop())

	if _, err := bt.SubmitBuyOrder(0, 1, 101, 2, orders.Limit, orders.IOC, true); err != nil {
		t.Fatalf("SubmitBuyOrder: %v", err)
	}
	if bt.Position(0) != 2 {
		t.Fatalf("expected position=2 after a fully filled taker buy, got %v", bt.Position(0))
	}
	sv := bt.StateValues(0)
	if sv.Balance >= 0 {
		t.Fatalf("expected a negative balance delta from the taker fee, got %v", sv.Balance)
	}
}

// S3: a marketable IOC buy against a PartialFillExchange walks two levels.
func TestScenarioPartialFillWalksBook(t *testing.T) {
	events := []reader.Event{
		{ExchTimestamp: 0, LocalTimestamp: 0, Kind: reader.KindDepth, Side: orders.Sell, Price: 101, Qty: 1},
		{ExchTimestamp: 0, LocalTimestamp: 0, Kind: reader.KindDepth, Side: orders.Sell, Price: 102, Qty: 1},
	}
	bt := buildTestBacktest(t, events, models.ConstantLatency{}, PartialFill)

	if _, err := bt.SubmitBuyOrder(0, 1, 102, 2, orders.Limit, orders.IOC, true); err != nil {
		t.Fatalf("SubmitBuyOrder: %v", err)
	}
	if bt.Position(0) != 2 {
		t.Fatalf("expected position=2 after walking both levels, got %v", bt.Position(0))
	}
}

// S4: two independent assets interleave through WaitNextFeed. Asset A has
// the earlier event, so the first WaitNextFeed call stops there; asset B's
// later event is picked up by the second call.
func TestScenarioTwoAssetInterleaving(t *testing.T) {
	eventsA := []reader.Event{
		{ExchTimestamp: 5, LocalTimestamp: 5, Kind: reader.KindDepth, Side: orders.Buy, Price: 100, Qty: 1},
	}
	eventsB := []reader.Event{
		{ExchTimestamp: 10, LocalTimestamp: 10, Kind: reader.KindDepth, Side: orders.Buy, Price: 200, Qty: 1},
	}

	assetA, err := NewAssetBuilder().
		DataSources(reader.MemorySource(eventsA)).
		Depth(1, 1).Latency(models.ConstantLatency{}).
		Asset(models.LinearAssetType{}).Queue(models.RiskAverseQueueModel{}).
		Exchange(NoPartialFill).Build()
	if err != nil {
		t.Fatalf("Build A: %v", err)
	}
	assetB, err := NewAssetBuilder().
		DataSources(reader.MemorySource(eventsB)).
		Depth(1, 1).Latency(models.ConstantLatency{}).
		Asset(models.LinearAssetType{}).Queue(models.RiskAverseQueueModel{}).
		Exchange(NoPartialFill).Build()
	if err != nil {
		t.Fatalf("Build B: %v", err)
	}
	bt := NewBacktest([]*Asset{assetA, assetB}, logging.Nop())

	if _, err := bt.WaitNextFeed(false, UntilEndOfData); err != nil {
		t.Fatalf("WaitNextFeed: %v", err)
	}
	if bt.CurrentTimestamp() != 5 {
		t.Fatalf("expected to stop at asset A's event ts=5, got %d", bt.CurrentTimestamp())
	}

	if _, err := bt.WaitNextFeed(false, UntilEndOfData); err != nil {
		t.Fatalf("WaitNextFeed: %v", err)
	}
	if bt.CurrentTimestamp() != 10 {
		t.Fatalf("expected to stop at asset B's event ts=10, got %d", bt.CurrentTimestamp())
	}
}

// S5: entry+response latency is observable and a waiting SubmitBuyOrder
// returns once cur_ts has advanced past both legs.
func TestScenarioLatencyObservability(t *testing.T) {
	events := []reader.Event{
		{ExchTimestamp: 0, LocalTimestamp: 0, Kind: reader.KindDepth, Side: orders.Sell, Price: 101, Qty: 5},
	}
	latency := models.ConstantLatency{EntryLatency: 3, ResponseLatency: 2}
	bt := buildTestBacktest(t, events, latency, NoPartialFill)

	if _, err := bt.SubmitBuyOrder(0, 1, 101, 1, orders.Limit, orders.IOC, true); err != nil {
		t.Fatalf("SubmitBuyOrder: %v", err)
	}
	if bt.CurrentTimestamp() < 5 {
		t.Fatalf("expected cur_ts >= 5 (entry 3 + response 2), got %d", bt.CurrentTimestamp())
	}
	entry, response, roundTrip, ok := bt.OrderLatency(0)
	if !ok {
		t.Fatal("expected order latency to be observable")
	}
	if entry != 3 || response != 2 || roundTrip != 5 {
		t.Fatalf("expected entry=3 response=2 roundTrip=5, got entry=%d response=%d roundTrip=%d", entry, response, roundTrip)
	}
}

// S6: one asset exhausts its feed early while another still has events;
// Elapse should not error out just because one side ran dry. Once every
// feed has ended before the deadline, Elapse reports exhaustion and
// cur_ts stays at the last event consumed.
func TestScenarioEndOfDataPerAsset(t *testing.T) {
	eventsA := []reader.Event{
		{ExchTimestamp: 0, LocalTimestamp: 0, Kind: reader.KindDepth, Side: orders.Buy, Price: 100, Qty: 1},
	}
	eventsB := []reader.Event{
		{ExchTimestamp: 0, LocalTimestamp: 0, Kind: reader.KindDepth, Side: orders.Buy, Price: 200, Qty: 1},
		{ExchTimestamp: 500, LocalTimestamp: 500, Kind: reader.KindDepth, Side: orders.Buy, Price: 201, Qty: 1},
	}
	assetA, err := NewAssetBuilder().
		DataSources(reader.MemorySource(eventsA)).
		Depth(1, 1).Latency(models.ConstantLatency{}).
		Asset(models.LinearAssetType{}).Queue(models.RiskAverseQueueModel{}).
		Exchange(NoPartialFill).Build()
	if err != nil {
		t.Fatalf("Build A: %v", err)
	}
	assetB, err := NewAssetBuilder().
		DataSources(reader.MemorySource(eventsB)).
		Depth(1, 1).Latency(models.ConstantLatency{}).
		Asset(models.LinearAssetType{}).Queue(models.RiskAverseQueueModel{}).
		Exchange(NoPartialFill).Build()
	if err != nil {
		t.Fatalf("Build B: %v", err)
	}
	bt := NewBacktest([]*Asset{assetA, assetB}, logging.Nop())

	finished, err := bt.Elapse(1000)
	if err != nil {
		t.Fatalf("Elapse: %v", err)
	}
	if finished {
		t.Fatal("expected Elapse to report exhaustion once both feeds ended before its deadline")
	}
	if bt.CurrentTimestamp() != 500 {
		t.Fatalf("expected cur_ts==500 (asset B's last event), got %d", bt.CurrentTimestamp())
	}
}

// Regression test for the submit-order side bug: the reference
// implementation this was ported from hardcoded Sell in SubmitOrder
// regardless of the request's side. Submitting a Buy-side OrderRequest
// must produce a buy, not a sell.
func TestSubmitOrderDerivesSide(t *testing.T) {
	events := []reader.Event{
		{ExchTimestamp: 0, LocalTimestamp: 0, Kind: reader.KindDepth, Side: orders.Sell, Price: 101, Qty: 5},
	}
	bt := buildTestBacktest(t, events, models.ConstantLatency{}, NoPartialFill)

	req := orders.OrderRequest{
		OrderId:     1,
		Side:        orders.Buy,
		Price:       101,
		Qty:         1,
		OrderType:   orders.Limit,
		TimeInForce: orders.IOC,
	}
	if _, err := bt.SubmitOrder(0, req, true); err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	if bt.Position(0) != 1 {
		t.Fatalf("expected a long position of 1 from a Buy request filling against the ask, got %v", bt.Position(0))
	}
}
