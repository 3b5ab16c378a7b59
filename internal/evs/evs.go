// Package evs implements the EventSet: a dense per-asset table of next-
// event timestamps across the four intent streams (local data, exchange
// data, local order response, exchange order request), from which the
// driver picks the next event to dispatch.
//
// A dense array is used instead of a heap because the number of assets is
// small (tens) and picks are frequent: a branch-predictable linear scan
// outperforms heap maintenance at this scale. Swapping in a heap would not
// change observable behavior (tie-breaking, invalidation) and is left as a
// possible future optimization, not attempted here.
package evs

// Kind identifies which of the four intent streams an event belongs to.
// Values are declared in dispatch-priority order: at equal timestamps,
// EXCH_DATA is dispatched before LOCAL_DATA, before EXCH_ORDER, before
// LOCAL_ORDER. This ordering exists so that state-updating market data is
// applied before order matching, and matching before the strategy observes
// the result, at the same simulated instant.
type Kind int

const (
	ExchData Kind = iota
	LocalData
	ExchOrder
	LocalOrder
)

func (k Kind) String() string {
	switch k {
	case ExchData:
		return "EXCH_DATA"
	case LocalData:
		return "LOCAL_DATA"
	case ExchOrder:
		return "EXCH_ORDER"
	case LocalOrder:
		return "LOCAL_ORDER"
	default:
		return "UNKNOWN"
	}
}

// Event is the (asset, kind, timestamp) triple Next returns.
type Event struct {
	AssetNo   int
	Kind      Kind
	Timestamp int64
}

// cell holds an optional next-timestamp; Valid is false when the stream is
// exhausted (EndOfData) or has not been primed yet.
type cell struct {
	ts    int64
	valid bool
}

// EventSet is a 4xN table of next-event cells, one column per asset.
type EventSet struct {
	localData []cell
	exchData  []cell
	localOrd  []cell
	exchOrd   []cell
}

// New creates an EventSet sized for numAssets, all cells empty.
func New(numAssets int) *EventSet {
	return &EventSet{
		localData: make([]cell, numAssets),
		exchData:  make([]cell, numAssets),
		localOrd:  make([]cell, numAssets),
		exchOrd:   make([]cell, numAssets),
	}
}

func (e *EventSet) UpdateLocalData(asset int, ts int64) { e.localData[asset] = cell{ts, true} }
func (e *EventSet) UpdateExchData(asset int, ts int64)  { e.exchData[asset] = cell{ts, true} }
func (e *EventSet) UpdateLocalOrder(asset int, ts int64) { e.localOrd[asset] = cell{ts, true} }
func (e *EventSet) UpdateExchOrder(asset int, ts int64)  { e.exchOrd[asset] = cell{ts, true} }

// UpdateLocalOrderOpt/UpdateExchOrderOpt set the cell from a (ts, ok) pair,
// invalidating it when ok is false — the common shape returned by
// OrderBus.PeekEarliestReady.
func (e *EventSet) UpdateLocalOrderOpt(asset int, ts int64, ok bool) {
	if ok {
		e.UpdateLocalOrder(asset, ts)
	} else {
		e.InvalidateLocalOrder(asset)
	}
}

func (e *EventSet) UpdateExchOrderOpt(asset int, ts int64, ok bool) {
	if ok {
		e.UpdateExchOrder(asset, ts)
	} else {
		e.InvalidateExchOrder(asset)
	}
}

func (e *EventSet) InvalidateLocalData(asset int)  { e.localData[asset] = cell{} }
func (e *EventSet) InvalidateExchData(asset int)   { e.exchData[asset] = cell{} }
func (e *EventSet) InvalidateLocalOrder(asset int) { e.localOrd[asset] = cell{} }
func (e *EventSet) InvalidateExchOrder(asset int)  { e.exchOrd[asset] = cell{} }

// Next scans all four streams across all assets and returns the event with
// the minimum timestamp, applying the dispatch priority on ties. It
// returns ok=false when every cell is empty (the simulation is exhausted).
func (e *EventSet) Next() (Event, bool) {
	best := Event{}
	found := false

	consider := func(asset int, kind Kind, c cell) {
		if !c.valid {
			return
		}
		if !found || c.ts < best.Timestamp || (c.ts == best.Timestamp && kind < best.Kind) {
			best = Event{AssetNo: asset, Kind: kind, Timestamp: c.ts}
			found = true
		}
	}

	n := len(e.localData)
	for a := 0; a < n; a++ {
		consider(a, ExchData, e.exchData[a])
		consider(a, LocalData, e.localData[a])
		consider(a, ExchOrder, e.exchOrd[a])
		consider(a, LocalOrder, e.localOrd[a])
	}
	return best, found
}
