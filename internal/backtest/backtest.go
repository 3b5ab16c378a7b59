package backtest

import (
	"github.com/rishav/hftbacktest/internal/logging"
	"github.com/rishav/hftbacktest/internal/proc"

	"github.com/rs/zerolog"
)

// Backtest is the heterogeneous driver: each asset may use a different
// concrete LocalProcessor/Processor pair, boxed behind the proc
// interfaces, mirroring original_source's Backtest.
type Backtest struct {
	*core
}

// NewBacktest assembles a Backtest from pre-built Assets. Asset order
// determines asset index.
func NewBacktest(assets []*Asset, log zerolog.Logger) *Backtest {
	locals := make([]proc.LocalProcessor, len(assets))
	exchs := make([]proc.Processor, len(assets))
	for i, a := range assets {
		locals[i] = a.Local
		exchs[i] = a.Exch
	}
	return &Backtest{core: newCore(locals, exchs, log)}
}

// NewBacktestFromBuilders builds one Asset per builder and assembles them
// into a Backtest, failing on the first builder error.
func NewBacktestFromBuilders(builders []*AssetBuilder) (*Backtest, error) {
	assets := make([]*Asset, len(builders))
	for i, b := range builders {
		asset, err := b.Build()
		if err != nil {
			return nil, err
		}
		assets[i] = asset
	}
	return NewBacktest(assets, logging.Nop()), nil
}

var _ Bot = (*Backtest)(nil)
