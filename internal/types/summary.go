package types

import (
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// RunSummary is derived from the full ClosedTrade sequence of a run.
// It is always recomputed fresh by Summarize, never mutated incrementally.
type RunSummary struct {
	// ID is the unique identifier for this backtest run.
	ID string `yaml:"id"`
	// GeneratedAt is when the summary was produced.
	GeneratedAt time.Time `yaml:"generated_at"`

	InitialCapital float64 `yaml:"initial_capital"`
	FinalCapital   float64 `yaml:"final_capital"`

	// SymbolsRequested counts every symbol handed to the run.
	// SymbolsProcessed excludes skipped symbols; a processed symbol may
	// still have produced zero trades.
	SymbolsRequested int `yaml:"symbols_requested"`
	SymbolsProcessed int `yaml:"symbols_processed"`
	SymbolsSkipped   int `yaml:"symbols_skipped"`

	NumberOfTrades        int     `yaml:"number_of_trades"`
	NumberOfWinningTrades int     `yaml:"number_of_winning_trades"`
	NumberOfLosingTrades  int     `yaml:"number_of_losing_trades"`
	WinRate               float64 `yaml:"win_rate"`

	TotalPnL     float64 `yaml:"total_pnl"`
	AvgPnL       float64 `yaml:"avg_pnl"`
	ProfitFactor float64 `yaml:"profit_factor"`
	AvgRMultiple float64 `yaml:"avg_r_multiple"`
	TotalFees    float64 `yaml:"total_fees"`

	AvgHoldMinutes int `yaml:"avg_hold_minutes"`

	// ExitReasons is the exit-reason histogram over all closed trades.
	ExitReasons map[ExitReason]int `yaml:"exit_reasons"`
}

// Summarize folds the closed-trade sequence into a RunSummary. It is a
// pure function: calling it twice on the same input yields the same output.
func Summarize(trades []ClosedTrade, initialCapital float64) RunSummary {
	summary := RunSummary{
		InitialCapital: initialCapital,
		FinalCapital:   initialCapital,
		ExitReasons:    make(map[ExitReason]int),
	}

	for _, reason := range AllExitReasons {
		summary.ExitReasons[reason] = 0
	}

	var grossProfit, grossLoss, totalR float64

	var totalHold int

	for _, trade := range trades {
		summary.NumberOfTrades++
		summary.TotalPnL += trade.PnL
		summary.TotalFees += trade.Commission
		totalR += trade.RMultiple
		totalHold += trade.HoldMinutes
		summary.ExitReasons[trade.ExitReason]++

		if trade.PnL > 0 {
			summary.NumberOfWinningTrades++
			grossProfit += trade.PnL
		} else {
			summary.NumberOfLosingTrades++
			grossLoss += -trade.PnL
		}
	}

	summary.FinalCapital = initialCapital + summary.TotalPnL

	if summary.NumberOfTrades > 0 {
		n := float64(summary.NumberOfTrades)
		summary.WinRate = float64(summary.NumberOfWinningTrades) / n
		summary.AvgPnL = summary.TotalPnL / n
		summary.AvgRMultiple = totalR / n
		summary.AvgHoldMinutes = totalHold / summary.NumberOfTrades
	}

	switch {
	case grossLoss > 0:
		summary.ProfitFactor = grossProfit / grossLoss
	case grossProfit > 0:
		summary.ProfitFactor = math.Inf(1)
	default:
		summary.ProfitFactor = 0
	}

	return summary
}

// WriteRunSummary writes the summary to a YAML file.
func WriteRunSummary(path string, summary RunSummary) error {
	data, err := yaml.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal run summary to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write run summary to file: %w", err)
	}

	return nil
}
