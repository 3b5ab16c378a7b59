// Package reader implements the feed-reader contract: an iterator of
// Events in non-decreasing local-timestamp order per source, fed from
// either a filesystem path or an in-memory buffer. The on-disk encoding is
// opaque to the simulation core; this package chooses newline-delimited
// JSON, mirroring the teacher's use of encoding/json for its wire format.
package reader

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"os"

	"github.com/rishav/hftbacktest/internal/orders"
)

// ErrEndOfData is returned once a reader has exhausted every source.
var ErrEndOfData = errors.New("reader: end of data")

// Kind tags what an Event represents.
type Kind uint8

const (
	// KindDepth is a depth diff: Qty==0 removes the level at Price on Side.
	KindDepth Kind = iota
	// KindClear wipes every level on Side before a fresh snapshot begins.
	KindClear
	// KindTrade is a market trade print at Price/Qty; Side is the
	// aggressor side.
	KindTrade
)

// Event is one timestamped market datum, as read from a feed source.
type Event struct {
	ExchTimestamp  int64       `json:"exch_ts"`
	LocalTimestamp int64       `json:"local_ts"`
	Kind           Kind        `json:"kind"`
	Side           orders.Side `json:"side"`
	Price          float64     `json:"price"`
	Qty            float64     `json:"qty"`
	OrderId        uint64      `json:"order_id,omitempty"`
	HasOrderId     bool        `json:"has_order_id,omitempty"`
}

// DataSource is either a filesystem path or an in-memory buffer of events.
type DataSource interface {
	isDataSource()
}

// FileSource reads newline-delimited JSON Event records from a path.
type FileSource string

func (FileSource) isDataSource() {}

// MemorySource is a pre-built in-memory buffer of events, useful for tests
// and synthetic scenarios.
type MemorySource []Event

func (MemorySource) isDataSource() {}

// Reader concatenates one or more DataSources and exposes them as a single
// ordered stream. Files are opened lazily, one ahead of consumption, and
// closed as soon as they are exhausted.
type Reader struct {
	sources []DataSource
	srcIdx  int

	memIdx int

	file    *os.File
	scanner *bufio.Scanner

	pending   *Event
	opened    bool
}

// New creates a Reader over the given sources, read in order.
func New(sources []DataSource) *Reader {
	return &Reader{sources: sources}
}

// Next returns the next event in feed order, or ErrEndOfData once every
// source is exhausted.
func (r *Reader) Next() (Event, error) {
	for {
		if r.pending != nil {
			ev := *r.pending
			r.pending = nil
			return ev, nil
		}
		ev, err := r.advance()
		if err != nil {
			return Event{}, err
		}
		return ev, nil
	}
}

// Peek returns the next event without consuming it.
func (r *Reader) Peek() (Event, error) {
	if r.pending != nil {
		return *r.pending, nil
	}
	ev, err := r.advance()
	if err != nil {
		return Event{}, err
	}
	r.pending = &ev
	return ev, nil
}

func (r *Reader) advance() (Event, error) {
	for r.srcIdx < len(r.sources) {
		switch src := r.sources[r.srcIdx].(type) {
		case MemorySource:
			if r.memIdx < len(src) {
				ev := src[r.memIdx]
				r.memIdx++
				return ev, nil
			}
			r.memIdx = 0
			r.srcIdx++
		case FileSource:
			if !r.opened {
				f, err := os.Open(string(src))
				if err != nil {
					return Event{}, err
				}
				r.file = f
				r.scanner = bufio.NewScanner(f)
				r.scanner.Buffer(make([]byte, 64*1024), 1024*1024)
				r.opened = true
			}
			if r.scanner.Scan() {
				line := r.scanner.Bytes()
				if len(line) == 0 {
					continue
				}
				var ev Event
				if err := json.Unmarshal(line, &ev); err != nil {
					return Event{}, err
				}
				return ev, nil
			}
			if err := r.scanner.Err(); err != nil && err != io.EOF {
				return Event{}, err
			}
			r.closeFile()
			r.srcIdx++
		default:
			r.srcIdx++
		}
	}
	return Event{}, ErrEndOfData
}

func (r *Reader) closeFile() {
	if r.file != nil {
		_ = r.file.Close()
		r.file = nil
		r.scanner = nil
		r.opened = false
	}
}

// Close releases any open file handle. Idempotent.
func (r *Reader) Close() error {
	r.closeFile()
	return nil
}
