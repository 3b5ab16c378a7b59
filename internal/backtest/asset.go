package backtest

import (
	"github.com/rishav/hftbacktest/internal/bus"
	"github.com/rishav/hftbacktest/internal/depth"
	"github.com/rishav/hftbacktest/internal/logging"
	"github.com/rishav/hftbacktest/internal/models"
	"github.com/rishav/hftbacktest/internal/proc"
	"github.com/rishav/hftbacktest/internal/reader"
	"github.com/rishav/hftbacktest/internal/recorder"
	"github.com/rishav/hftbacktest/internal/state"

	"github.com/rs/zerolog"
)

// ExchangeKind selects which matching engine an Asset's exchange side uses.
type ExchangeKind int

const (
	NoPartialFill ExchangeKind = iota
	PartialFill
)

// Asset is one wired (local, exchange) pair sharing two order buses, ready
// to be handed to a Backtest driver.
type Asset struct {
	Local proc.LocalProcessor
	Exch  proc.Processor
}

// AssetBuilder assembles one Asset. Every field marked required below must
// be set before Build; Build fails with a BuilderIncomplete error naming
// the first missing one.
type AssetBuilder struct {
	sources []reader.DataSource // required

	tickSize float64 // required, > 0
	lotSize  float64 // required, > 0

	latency models.LatencyModel // required
	asset   models.AssetType    // required
	queue   models.QueueModel   // required

	makerFee float64
	takerFee float64

	exchangeKind *ExchangeKind // required
	tradeLen     int

	recorder recorder.Recorder
	log      zerolog.Logger
}

// NewAssetBuilder returns an empty builder with a no-op logger.
func NewAssetBuilder() *AssetBuilder {
	return &AssetBuilder{log: logging.Nop(), tradeLen: 1}
}

func (b *AssetBuilder) DataSources(sources ...reader.DataSource) *AssetBuilder {
	b.sources = sources
	return b
}

func (b *AssetBuilder) Depth(tickSize, lotSize float64) *AssetBuilder {
	b.tickSize, b.lotSize = tickSize, lotSize
	return b
}

func (b *AssetBuilder) Latency(m models.LatencyModel) *AssetBuilder {
	b.latency = m
	return b
}

func (b *AssetBuilder) Asset(t models.AssetType) *AssetBuilder {
	b.asset = t
	return b
}

func (b *AssetBuilder) Queue(q models.QueueModel) *AssetBuilder {
	b.queue = q
	return b
}

func (b *AssetBuilder) Fees(makerFee, takerFee float64) *AssetBuilder {
	b.makerFee, b.takerFee = makerFee, takerFee
	return b
}

func (b *AssetBuilder) Exchange(kind ExchangeKind) *AssetBuilder {
	b.exchangeKind = &kind
	return b
}

func (b *AssetBuilder) TradeRingLength(n int) *AssetBuilder {
	b.tradeLen = n
	return b
}

func (b *AssetBuilder) Recorder(r recorder.Recorder) *AssetBuilder {
	b.recorder = r
	return b
}

func (b *AssetBuilder) Logger(log zerolog.Logger) *AssetBuilder {
	b.log = log
	return b
}

// Build validates the builder and wires a new Asset: two independent
// readers over the same data sources (one for each processor's own
// timestamp stream), two fresh order buses, and the concrete depth,
// latency, queue, and exchange-kind implementations selected above.
func (b *AssetBuilder) Build() (*Asset, error) {
	switch {
	case len(b.sources) == 0:
		return nil, newBuilderError("sources")
	case b.tickSize <= 0:
		return nil, newBuilderError("tick_size")
	case b.lotSize <= 0:
		return nil, newBuilderError("lot_size")
	case b.latency == nil:
		return nil, newBuilderError("latency")
	case b.asset == nil:
		return nil, newBuilderError("asset_type")
	case b.queue == nil:
		return nil, newBuilderError("queue_model")
	case b.exchangeKind == nil:
		return nil, newBuilderError("exchange_kind")
	}

	localReader := reader.New(b.sources)
	exchReader := reader.New(b.sources)

	localDepth := depth.New(b.tickSize, b.lotSize)
	exchDepth := depth.New(b.tickSize, b.lotSize)

	toExch := bus.New()
	fromExch := bus.New()

	st := state.New(b.asset, b.makerFee, b.takerFee)

	local := proc.NewLocal(localReader, localDepth, st, b.latency, b.tradeLen, toExch, fromExch, b.recorder, b.log)

	var exch proc.Processor
	switch *b.exchangeKind {
	case PartialFill:
		exch = proc.NewPartialFillExchange(exchReader, exchDepth, b.latency, b.queue, toExch, fromExch, b.log)
	default:
		exch = proc.NewNoPartialFillExchange(exchReader, exchDepth, b.latency, b.queue, toExch, fromExch, b.log)
	}

	return &Asset{Local: local, Exch: exch}, nil
}
