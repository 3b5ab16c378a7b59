// Package config loads a backtest scenario file with viper: which assets
// to replay, their fee schedule, latency model, and exchange kind. Dollar
// and percentage fields are parsed through shopspring/decimal so that user
// input like "0.0002" round-trips exactly; everything downstream of Build
// converts to the float64 the simulation core runs on.
package config

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/rishav/hftbacktest/internal/backtest"
	"github.com/rishav/hftbacktest/internal/models"
)

// AssetConfig describes one asset's scenario wiring.
type AssetConfig struct {
	Name         string          `mapstructure:"name"`
	DataPath     string          `mapstructure:"data_path"`
	TickSize     float64         `mapstructure:"tick_size"`
	LotSize      float64         `mapstructure:"lot_size"`
	AssetType    string          `mapstructure:"asset_type"` // "linear" | "inverse"
	ExchangeKind string          `mapstructure:"exchange_kind"` // "no_partial_fill" | "partial_fill"
	MakerFee     decimal.Decimal `mapstructure:"maker_fee"`
	TakerFee     decimal.Decimal `mapstructure:"taker_fee"`
	EntryLatency int64           `mapstructure:"entry_latency_ns"`
	ResponseLatency int64        `mapstructure:"response_latency_ns"`
	TradeRingLength int          `mapstructure:"trade_ring_length"`
}

// ScenarioConfig is the top-level scenario file shape.
type ScenarioConfig struct {
	LogLevel string        `mapstructure:"log_level"`
	Assets   []AssetConfig `mapstructure:"assets"`
}

// Load reads a scenario file (any format viper supports — yaml, json,
// toml) from path.
func Load(path string) (*ScenarioConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("log_level", "info")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg ScenarioConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks the scenario for the fields AssetBuilder.Build requires,
// surfacing mistakes before any processor is constructed.
func (c *ScenarioConfig) Validate() error {
	if len(c.Assets) == 0 {
		return fmt.Errorf("config: at least one asset is required")
	}
	for i, a := range c.Assets {
		if a.DataPath == "" {
			return fmt.Errorf("config: asset %d (%s): data_path is required", i, a.Name)
		}
		if a.TickSize <= 0 || a.LotSize <= 0 {
			return fmt.Errorf("config: asset %d (%s): tick_size and lot_size must be positive", i, a.Name)
		}
		switch strings.ToLower(a.AssetType) {
		case "linear", "inverse":
		default:
			return fmt.Errorf("config: asset %d (%s): asset_type must be linear or inverse", i, a.Name)
		}
		switch strings.ToLower(a.ExchangeKind) {
		case "no_partial_fill", "partial_fill":
		default:
			return fmt.Errorf("config: asset %d (%s): exchange_kind must be no_partial_fill or partial_fill", i, a.Name)
		}
	}
	return nil
}

// AssetTypeModel resolves the configured asset-type family to its concrete
// models.AssetType implementation.
func (a *AssetConfig) AssetTypeModel() models.AssetType {
	if strings.ToLower(a.AssetType) == "inverse" {
		return models.InverseAssetType{}
	}
	return models.LinearAssetType{}
}

// ExchangeKindValue resolves the configured exchange kind to the
// backtest.ExchangeKind enum.
func (a *AssetConfig) ExchangeKindValue() backtest.ExchangeKind {
	if strings.ToLower(a.ExchangeKind) == "partial_fill" {
		return backtest.PartialFill
	}
	return backtest.NoPartialFill
}

// LatencyModel builds the constant latency model configured for this asset.
func (a *AssetConfig) LatencyModel() models.LatencyModel {
	return models.ConstantLatency{EntryLatency: a.EntryLatency, ResponseLatency: a.ResponseLatency}
}

// MakerFeeFloat/TakerFeeFloat convert the user-typed decimal fee fraction
// (e.g. "0.0002" for 2bps) to the float64 the simulation core uses.
func (a *AssetConfig) MakerFeeFloat() float64 {
	f, _ := a.MakerFee.Float64()
	return f
}

func (a *AssetConfig) TakerFeeFloat() float64 {
	f, _ := a.TakerFee.Float64()
	return f
}
