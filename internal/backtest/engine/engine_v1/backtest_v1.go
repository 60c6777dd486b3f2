package engine

import (
	"context"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v2"

	"github.com/quantframe-labs/intrascan/internal/backtest/engine"
	"github.com/quantframe-labs/intrascan/internal/indicator"
	"github.com/quantframe-labs/intrascan/internal/logger"
	"github.com/quantframe-labs/intrascan/internal/marketdata"
	"github.com/quantframe-labs/intrascan/internal/signal"
	"github.com/quantframe-labs/intrascan/internal/types"
	"github.com/quantframe-labs/intrascan/pkg/errors"
)

// Replay parameters, fixed engine policy like the lifecycle constants.
const (
	// WarmupOffsetBars skips the opening volatility of each session.
	WarmupOffsetBars = 10
	// MinBarsPerDay is the smallest session worth replaying.
	MinBarsPerDay = 10
	// OpeningRangeBars is the window for the session's opening range.
	OpeningRangeBars = 6
	// SignalWindowBars caps the sliding signal window at roughly one
	// full session of five-minute bars.
	SignalWindowBars = 78
)

type BacktestEngineV1 struct {
	config        BacktestConfig
	initialized   bool
	symbols       []string
	resultsFolder string
	provider      marketdata.Provider
	primaryScorer signal.Scorer
	log           *logger.Logger
	state         *BacktestState
}

func NewBacktestEngineV1() engine.Engine {
	return &BacktestEngineV1{
		config:        DefaultConfig(),
		initialized:   false,
		symbols:       nil,
		resultsFolder: "",
		provider:      nil,
		primaryScorer: nil,
		log:           nil,
		state:         nil,
	}
}

// Initialize parses and validates the YAML configuration content. An
// empty document means "use the defaults".
func (e *BacktestEngineV1) Initialize(config string) error {
	cfg := DefaultConfig()
	if strings.TrimSpace(config) != "" {
		if err := yaml.Unmarshal([]byte(config), &cfg); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse backtest config", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logger.NewLogger()
	if err != nil {
		return errors.Wrap(errors.ErrCodeUnknown, "failed to create logger", err)
	}

	e.config = cfg
	e.log = log
	e.initialized = true

	return nil
}

func (e *BacktestEngineV1) SetSymbols(symbols []string) error {
	if len(symbols) == 0 {
		return errors.New(errors.ErrCodeInvalidParameter, "no symbols provided")
	}

	e.symbols = symbols

	return nil
}

func (e *BacktestEngineV1) SetResultsFolder(folder string) error {
	if folder == "" {
		return errors.New(errors.ErrCodeInvalidParameter, "results folder is empty")
	}

	e.resultsFolder = folder

	return nil
}

func (e *BacktestEngineV1) SetProvider(provider marketdata.Provider) error {
	if provider == nil {
		return errors.New(errors.ErrCodeInvalidParameter, "provider is nil")
	}

	e.provider = provider

	return nil
}

func (e *BacktestEngineV1) SetPrimaryScorer(scorer signal.Scorer) error {
	e.primaryScorer = scorer

	return nil
}

func (e *BacktestEngineV1) GetConfigSchema() (string, error) {
	cfg := DefaultConfig()

	return cfg.GenerateSchemaJSON()
}

// Run replays every symbol sequentially. Provider failures and
// invariant violations skip the affected symbol; the run itself only
// aborts on cancellation. The summary reflects whatever completed.
func (e *BacktestEngineV1) Run(ctx context.Context, callbacks engine.LifecycleCallbacks) (summary types.RunSummary, err error) {
	if err := e.precondition(); err != nil {
		return types.RunSummary{}, err
	}

	symbols := e.symbols
	if e.config.MaxSymbols > 0 && len(symbols) > e.config.MaxSymbols {
		symbols = symbols[:e.config.MaxSymbols]
	}

	run := NewBacktestRun(e.config.InitialCapital)
	run.MarkRequested(len(symbols))

	e.state = NewBacktestState(e.log)
	if e.state == nil {
		return types.RunSummary{}, errors.New(errors.ErrCodeStateInitFailed, "failed to open state store")
	}

	defer e.state.Close()

	if err := e.state.Initialize(); err != nil {
		return types.RunSummary{}, err
	}

	defer func() {
		if callbacks.OnRunEnd != nil {
			(*callbacks.OnRunEnd)(summary, err)
		}
	}()

	if callbacks.OnRunStart != nil {
		if cbErr := (*callbacks.OnRunStart)(run.ID(), len(symbols)); cbErr != nil {
			return run.Summary(), cbErr
		}
	}

	for i, symbol := range symbols {
		// Cancellation is only honored between symbols: a symbol's
		// replay either completes or is skipped whole.
		if ctxErr := ctx.Err(); ctxErr != nil {
			e.log.Warn("run cancelled",
				zap.Int("symbols_done", i),
				zap.Int("symbols_total", len(symbols)))

			return run.Summary(), ctxErr
		}

		if callbacks.OnSymbolStart != nil {
			if cbErr := (*callbacks.OnSymbolStart)(i, symbol, len(symbols)); cbErr != nil {
				return run.Summary(), cbErr
			}
		}

		result := e.runSymbol(ctx, symbol, run)
		if result.Skipped {
			run.MarkSkipped(symbol, result.SkipReason)
			e.log.Warn("skipped symbol",
				zap.String("symbol", symbol),
				zap.String("reason", result.SkipReason))
		} else {
			run.MarkProcessed()
		}

		if callbacks.OnSymbolEnd != nil {
			(*callbacks.OnSymbolEnd)(i, symbol, result)
		}
	}

	summary = run.Summary()

	if e.resultsFolder != "" {
		if err := e.state.Write(e.resultsFolder); err != nil {
			return summary, err
		}

		summaryPath := filepath.Join(e.resultsFolder, "summary.yaml")
		if err := types.WriteRunSummary(summaryPath, summary); err != nil {
			return summary, err
		}
	}

	return summary, nil
}

func (e *BacktestEngineV1) precondition() error {
	if !e.initialized {
		return errors.New(errors.ErrCodeInvalidConfiguration, "engine is not initialized")
	}

	if len(e.symbols) == 0 {
		return errors.New(errors.ErrCodeInvalidParameter, "no symbols set")
	}

	if e.provider == nil {
		return errors.New(errors.ErrCodeInvalidParameter, "no provider set")
	}

	return nil
}

// runSymbol fetches one symbol's history and replays it day by day.
// Every failure path is contained: the result reports a skip and the
// run moves on. Trades recorded before a mid-symbol abort stay in the
// ledger; the abort only stops further processing of that symbol.
func (e *BacktestEngineV1) runSymbol(ctx context.Context, symbol string, run *BacktestRun) engine.SymbolResult {
	result := engine.SymbolResult{
		Symbol:     symbol,
		Trades:     0,
		Skipped:    false,
		SkipReason: "",
	}

	fetchCtx, cancel := context.WithTimeout(ctx, e.config.FetchTimeout)
	defer cancel()

	bars, err := e.provider.FetchBars(fetchCtx, symbol, e.config.MaxDays)
	if err != nil {
		result.Skipped = true
		result.SkipReason = err.Error()

		return result
	}

	bars = e.filterBars(bars)
	if len(bars) == 0 {
		result.Skipped = true
		result.SkipReason = "no bars in the configured period"

		return result
	}

	days, byDay := types.GroupByDay(bars)
	manager := NewPositionManager(symbol, e.config, run, e.primaryScorer, e.log)

	for _, day := range days {
		trades, err := e.replayDay(manager, byDay[day])
		result.Trades += trades

		if err != nil {
			result.Skipped = true
			result.SkipReason = err.Error()

			return result
		}
	}

	return result
}

// replayDay runs one session through the position manager and returns
// the number of trades closed. A position never survives the session:
// whatever is still open at the last bar is forced closed there.
func (e *BacktestEngineV1) replayDay(manager *PositionManager, dayBars []types.Bar) (int, error) {
	if len(dayBars) < MinBarsPerDay {
		return 0, nil
	}

	// The opening range is context for filters, not a gate.
	orHigh, orLow, orErr := indicator.OpeningRange(dayBars, OpeningRangeBars)
	if orErr == nil {
		e.log.Debug("opening range",
			zap.String("symbol", dayBars[0].Symbol),
			zap.Time("day", dayBars[0].Date()),
			zap.Float64("high", orHigh),
			zap.Float64("low", orLow))
	}

	trades := 0

	for i := WarmupOffsetBars; i < len(dayBars); i++ {
		bar := dayBars[i]

		if manager.HasOpenPosition() {
			trade, err := manager.EvaluateExits(bar, i)
			if err != nil {
				return trades, err
			}

			if trade != nil {
				if err := e.state.RecordTrade(*trade); err != nil {
					return trades, err
				}

				trades++
			}

			continue
		}

		start := i + 1 - SignalWindowBars
		if start < 0 {
			start = 0
		}

		if err := manager.TryEnter(dayBars[start:i+1], bar, i); err != nil {
			return trades, err
		}
	}

	trade, err := manager.ForceClose(dayBars[len(dayBars)-1])
	if err != nil {
		return trades, err
	}

	if trade != nil {
		if err := e.state.RecordTrade(*trade); err != nil {
			return trades, err
		}

		trades++
	}

	return trades, nil
}

// filterBars drops bars outside the configured start/end bounds.
func (e *BacktestEngineV1) filterBars(bars []types.Bar) []types.Bar {
	if e.config.StartTime.IsNone() && e.config.EndTime.IsNone() {
		return bars
	}

	filtered := make([]types.Bar, 0, len(bars))

	for _, bar := range bars {
		if e.config.StartTime.IsSome() && bar.Time.Before(e.config.StartTime.Unwrap()) {
			continue
		}

		if e.config.EndTime.IsSome() && bar.Time.After(e.config.EndTime.Unwrap()) {
			continue
		}

		filtered = append(filtered, bar)
	}

	return filtered
}
