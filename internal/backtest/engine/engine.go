package engine

import (
	"context"

	"github.com/quantframe-labs/intrascan/internal/marketdata"
	"github.com/quantframe-labs/intrascan/internal/signal"
	"github.com/quantframe-labs/intrascan/internal/types"
)

// Lifecycle callback types for backtest phases.
// Callbacks with an error return can abort execution by returning one.

// OnRunStartCallback is called once before the first symbol, with the
// run's unique identifier and the number of symbols to process.
type OnRunStartCallback func(runID string, totalSymbols int) error

// OnSymbolStartCallback is called when a symbol's replay begins.
type OnSymbolStartCallback func(symbolIndex int, symbol string, totalSymbols int) error

// OnSymbolEndCallback is called when a symbol's replay ends, whether it
// produced trades, produced none, or was skipped.
type OnSymbolEndCallback func(symbolIndex int, symbol string, result SymbolResult)

// OnRunEndCallback is called when the run completes (always called via defer).
type OnRunEndCallback func(summary types.RunSummary, err error)

// SymbolResult describes the outcome of one symbol's replay.
type SymbolResult struct {
	Symbol     string
	Trades     int
	Skipped    bool
	SkipReason string
}

// LifecycleCallbacks holds the lifecycle callback functions for the
// backtest engine. Nil fields are not invoked.
type LifecycleCallbacks struct {
	OnRunStart    *OnRunStartCallback
	OnSymbolStart *OnSymbolStartCallback
	OnSymbolEnd   *OnSymbolEndCallback
	OnRunEnd      *OnRunEndCallback
}

// Engine replays historical bars through the position lifecycle and
// produces a run summary plus the closed-trade sequence.
type Engine interface {
	// Initialize the engine with the given YAML configuration content.
	Initialize(config string) error
	// SetSymbols sets the universe for the run, in processing order.
	SetSymbols(symbols []string) error
	// SetResultsFolder sets the output directory for run artifacts
	// (summary.yaml, trades.csv).
	SetResultsFolder(folder string) error
	// SetProvider sets the bar provider. Provider failures skip the
	// affected symbol, they never abort the run.
	SetProvider(provider marketdata.Provider) error
	// SetPrimaryScorer sets the primary signal source. Optional: when
	// unset, the deterministic fallback scorer is used directly.
	SetPrimaryScorer(scorer signal.Scorer) error
	// Run replays every symbol sequentially and returns the summary.
	// The context is checked at symbol boundaries for cancellation.
	Run(ctx context.Context, callbacks LifecycleCallbacks) (types.RunSummary, error)
	// GetConfigSchema returns the JSON schema of the engine configuration.
	GetConfigSchema() (string, error)
}
