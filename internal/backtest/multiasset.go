package backtest

import (
	"github.com/rishav/hftbacktest/internal/proc"

	"github.com/rs/zerolog"
)

// MultiAssetSingleExchangeBacktest is the homogeneous driver: every asset
// shares the same concrete Local/Exchange pair, generic over those
// concrete types instead of boxing them behind the proc interfaces. It
// satisfies the same Bot surface as Backtest (Design Note 9.1): the two
// drivers share their scheduling core and differ only in how strongly
// their processor storage is typed.
type MultiAssetSingleExchangeBacktest[L proc.LocalProcessor, E proc.Processor] struct {
	*core

	typedLocals []L
	typedExchs  []E
}

// NewMultiAssetSingleExchangeBacktest assembles a driver from parallel
// slices of the same concrete Local/Exchange type.
func NewMultiAssetSingleExchangeBacktest[L proc.LocalProcessor, E proc.Processor](locals []L, exchs []E, log zerolog.Logger) *MultiAssetSingleExchangeBacktest[L, E] {
	ifaceLocals := make([]proc.LocalProcessor, len(locals))
	ifaceExchs := make([]proc.Processor, len(exchs))
	for i, l := range locals {
		ifaceLocals[i] = l
	}
	for i, e := range exchs {
		ifaceExchs[i] = e
	}
	return &MultiAssetSingleExchangeBacktest[L, E]{
		core:        newCore(ifaceLocals, ifaceExchs, log),
		typedLocals: locals,
		typedExchs:  exchs,
	}
}

// TypedLocal returns the concrete local processor for an asset, for
// strategies that need model-specific accessors the Bot surface omits.
func (m *MultiAssetSingleExchangeBacktest[L, E]) TypedLocal(asset int) L {
	return m.typedLocals[asset]
}

// TypedExch returns the concrete exchange processor for an asset.
func (m *MultiAssetSingleExchangeBacktest[L, E]) TypedExch(asset int) E {
	return m.typedExchs[asset]
}

var _ Bot = (*MultiAssetSingleExchangeBacktest[proc.LocalProcessor, proc.Processor])(nil)
