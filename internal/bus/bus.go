// Package bus implements the OrderBus: a bounded-latency, one-direction
// mailbox between a paired local and exchange processor for one asset.
//
// An OrderBus is not a plain FIFO queue: each message carries its own
// ready_ts (the simulated time at which the recipient may observe it), and
// these can arrive out of ready_ts order when latencies differ per message
// (e.g. a cancel computed with a different latency than the new order it
// follows). Ordering is therefore by ready_ts, ties broken by insertion
// order — a "lazily ordered sequence", scanned rather than kept heap-sorted,
// since the number of in-flight messages on one bus is always small.
package bus

import "github.com/rishav/hftbacktest/internal/orders"

// Message is one timestamped order travelling across a bus.
type Message struct {
	Order   orders.Order
	ReadyTs int64
	seq     uint64
}

// OrderBus is owned jointly by exactly one local and one exchange processor
// for the same asset and the same direction (local->exch or exch->local).
type OrderBus struct {
	pending []Message
	nextSeq uint64
}

// New creates an empty order bus.
func New() *OrderBus {
	return &OrderBus{}
}

// Append places a message on the bus, ready to be observed at readyTs.
func (b *OrderBus) Append(order orders.Order, readyTs int64) {
	b.pending = append(b.pending, Message{Order: order, ReadyTs: readyTs, seq: b.nextSeq})
	b.nextSeq++
}

// PeekEarliestReady returns the ready_ts of the earliest pending message,
// or false if the bus is empty.
func (b *OrderBus) PeekEarliestReady() (int64, bool) {
	idx := b.earliestIndex()
	if idx < 0 {
		return 0, false
	}
	return b.pending[idx].ReadyTs, true
}

// PopIfReady removes and returns the earliest message if its ready_ts is
// at or before now. Otherwise it returns false without mutating the bus.
func (b *OrderBus) PopIfReady(now int64) (orders.Order, bool) {
	idx := b.earliestIndex()
	if idx < 0 || b.pending[idx].ReadyTs > now {
		return orders.Order{}, false
	}
	msg := b.pending[idx]
	b.pending = append(b.pending[:idx], b.pending[idx+1:]...)
	return msg.Order, true
}

// Len reports the number of in-flight messages.
func (b *OrderBus) Len() int {
	return len(b.pending)
}

func (b *OrderBus) earliestIndex() int {
	best := -1
	for i := range b.pending {
		if best < 0 ||
			b.pending[i].ReadyTs < b.pending[best].ReadyTs ||
			(b.pending[i].ReadyTs == b.pending[best].ReadyTs && b.pending[i].seq < b.pending[best].seq) {
			best = i
		}
	}
	return best
}
