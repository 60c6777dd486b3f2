package engine

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/quantframe-labs/intrascan/internal/types"
	"github.com/quantframe-labs/intrascan/pkg/errors"
)

// BacktestRun owns the mutable state of one backtest: the capital
// ledger, the closed-trade sequence, and the symbol counters. A run is
// never shared across engine instances; the ledger is kept in decimals
// so partial-exit settlements reconcile exactly against the trade sum.
type BacktestRun struct {
	id             string
	initialCapital decimal.Decimal
	capital        decimal.Decimal
	trades         []types.ClosedTrade
	requested      int
	processed      int
	skipped        map[string]string
}

func NewBacktestRun(initialCapital float64) *BacktestRun {
	capital := decimal.NewFromFloat(initialCapital)

	return &BacktestRun{
		id:             uuid.New().String(),
		initialCapital: capital,
		capital:        capital,
		trades:         nil,
		requested:      0,
		processed:      0,
		skipped:        make(map[string]string),
	}
}

func (r *BacktestRun) ID() string {
	return r.id
}

// Capital returns the current value of the ledger.
func (r *BacktestRun) Capital() float64 {
	capital, _ := r.capital.Float64()

	return capital
}

// Settle applies one trade settlement (partial or final) to the ledger.
func (r *BacktestRun) Settle(pnl float64) {
	r.capital = r.capital.Add(decimal.NewFromFloat(pnl))
}

// AppendTrade records a closed trade. The trade is validated first so a
// malformed record never reaches the summary.
func (r *BacktestRun) AppendTrade(trade types.ClosedTrade) error {
	if err := trade.Validate(); err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidTrade, err, "rejecting trade for %s", trade.Symbol)
	}

	r.trades = append(r.trades, trade)

	return nil
}

// Trades returns the closed trades in close order.
func (r *BacktestRun) Trades() []types.ClosedTrade {
	return r.trades
}

func (r *BacktestRun) MarkRequested(n int) {
	r.requested = n
}

func (r *BacktestRun) MarkProcessed() {
	r.processed++
}

func (r *BacktestRun) MarkSkipped(symbol, reason string) {
	r.skipped[symbol] = reason
}

// SkippedSymbols returns the skip reason per skipped symbol.
func (r *BacktestRun) SkippedSymbols() map[string]string {
	return r.skipped
}

// Summary folds the closed trades into a RunSummary and attaches the
// run identity and symbol counters.
func (r *BacktestRun) Summary() types.RunSummary {
	initial, _ := r.initialCapital.Float64()

	summary := types.Summarize(r.trades, initial)
	summary.ID = r.id
	summary.GeneratedAt = time.Now().UTC()
	summary.SymbolsRequested = r.requested
	summary.SymbolsProcessed = r.processed
	summary.SymbolsSkipped = len(r.skipped)

	return summary
}
