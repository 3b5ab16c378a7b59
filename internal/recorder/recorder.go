// Package recorder implements C7: an optional sink that samples an
// asset's trading state over simulated time for post-run analysis. It is
// a concrete stand-in for the "recorder that archives state snapshots"
// collaborator the distilled spec names only as an out-of-scope contract
// — the contract (a pluggable sample sink) is in scope even though no
// specific persistence format is mandated.
package recorder

import "github.com/rishav/hftbacktest/internal/state"

// Sample is one recorded observation of an asset's state at a point in
// simulated time.
type Sample struct {
	Timestamp int64
	Position  float64
	Balance   float64
	Equity    float64
	Values    state.StateValues
}

// Recorder receives samples as the local processor drains order responses.
// Implementations must not block or mutate simulated time.
type Recorder interface {
	Record(sample Sample)
}

// InMemory accumulates every sample it receives, for use in tests and
// short-lived CLI runs.
type InMemory struct {
	Samples []Sample
}

// NewInMemory creates an empty InMemory recorder.
func NewInMemory() *InMemory {
	return &InMemory{}
}

func (r *InMemory) Record(sample Sample) {
	r.Samples = append(r.Samples, sample)
}

// EquityCurve returns the recorded equity values in sample order.
func (r *InMemory) EquityCurve() []float64 {
	curve := make([]float64, len(r.Samples))
	for i, s := range r.Samples {
		curve[i] = s.Equity
	}
	return curve
}
