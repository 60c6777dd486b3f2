package engine

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"

	"github.com/quantframe-labs/intrascan/internal/logger"
	"github.com/quantframe-labs/intrascan/internal/types"
	"github.com/quantframe-labs/intrascan/pkg/errors"
)

// BacktestState persists the closed trades of a run in an in-memory
// DuckDB database. It is the query layer behind trade exports and the
// exit-reason breakdown; the capital ledger never lives here.
type BacktestState struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
}

func NewBacktestState(logger *logger.Logger) *BacktestState {
	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		logger.Error("Failed to open database", zap.Error(err))
		return nil
	}

	return &BacktestState{
		db:     db,
		logger: logger,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}
}

// Initialize creates the trades table.
func (b *BacktestState) Initialize() error {
	_, err := b.db.Exec(`
		CREATE TABLE IF NOT EXISTS trades (
			id TEXT PRIMARY KEY,
			symbol TEXT,
			direction TEXT,
			entry_time TIMESTAMP,
			exit_time TIMESTAMP,
			entry_price DOUBLE,
			exit_price DOUBLE,
			stop_loss DOUBLE,
			target DOUBLE,
			shares INTEGER,
			pnl DOUBLE,
			pnl_pct DOUBLE,
			r_multiple DOUBLE,
			commission DOUBLE,
			exit_reason TEXT,
			signal_score DOUBLE,
			confidence DOUBLE,
			entry_rsi DOUBLE,
			hold_minutes INTEGER
		)
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStateInitFailed, "failed to create trades table", err)
	}

	return nil
}

// RecordTrade inserts one closed trade.
func (b *BacktestState) RecordTrade(trade types.ClosedTrade) error {
	insertQuery := b.sq.
		Insert("trades").
		Columns(
			"id", "symbol", "direction", "entry_time", "exit_time",
			"entry_price", "exit_price", "stop_loss", "target", "shares",
			"pnl", "pnl_pct", "r_multiple", "commission", "exit_reason",
			"signal_score", "confidence", "entry_rsi", "hold_minutes",
		).
		Values(
			trade.ID, trade.Symbol, string(trade.Direction), trade.EntryTime, trade.ExitTime,
			trade.EntryPrice, trade.ExitPrice, trade.StopLoss, trade.Target, trade.Shares,
			trade.PnL, trade.PnLPct, trade.RMultiple, trade.Commission, string(trade.ExitReason),
			trade.SignalScore, trade.Confidence, trade.EntryRSI, trade.HoldMinutes,
		).
		RunWith(b.db)

	if _, err := insertQuery.Exec(); err != nil {
		return errors.Wrapf(errors.ErrCodeStateWriteFailed, err, "failed to insert trade %s", trade.ID)
	}

	return nil
}

// GetTrades returns all recorded trades in close order.
func (b *BacktestState) GetTrades() ([]types.ClosedTrade, error) {
	selectQuery := b.sq.
		Select(
			"id", "symbol", "direction", "entry_time", "exit_time",
			"entry_price", "exit_price", "stop_loss", "target", "shares",
			"pnl", "pnl_pct", "r_multiple", "commission", "exit_reason",
			"signal_score", "confidence", "entry_rsi", "hold_minutes",
		).
		From("trades").
		OrderBy("exit_time ASC").
		RunWith(b.db)

	rows, err := selectQuery.Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStateQueryFailed, "failed to query trades", err)
	}
	defer rows.Close()

	var trades []types.ClosedTrade

	for rows.Next() {
		var trade types.ClosedTrade

		var direction, exitReason string

		err := rows.Scan(
			&trade.ID,
			&trade.Symbol,
			&direction,
			&trade.EntryTime,
			&trade.ExitTime,
			&trade.EntryPrice,
			&trade.ExitPrice,
			&trade.StopLoss,
			&trade.Target,
			&trade.Shares,
			&trade.PnL,
			&trade.PnLPct,
			&trade.RMultiple,
			&trade.Commission,
			&exitReason,
			&trade.SignalScore,
			&trade.Confidence,
			&trade.EntryRSI,
			&trade.HoldMinutes,
		)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeStateQueryFailed, "failed to scan trade", err)
		}

		trade.Direction = types.Direction(direction)
		trade.ExitReason = types.ExitReason(exitReason)
		trades = append(trades, trade)
	}

	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStateQueryFailed, "error iterating trades", err)
	}

	return trades, nil
}

// ExitReasonCounts returns the exit-reason histogram over all trades.
func (b *BacktestState) ExitReasonCounts() (map[types.ExitReason]int, error) {
	countQuery := b.sq.
		Select("exit_reason", "COUNT(*)").
		From("trades").
		GroupBy("exit_reason").
		RunWith(b.db)

	rows, err := countQuery.Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStateQueryFailed, "failed to count exit reasons", err)
	}
	defer rows.Close()

	counts := make(map[types.ExitReason]int)
	for _, reason := range types.AllExitReasons {
		counts[reason] = 0
	}

	for rows.Next() {
		var reason string

		var count int

		if err := rows.Scan(&reason, &count); err != nil {
			return nil, errors.Wrap(errors.ErrCodeStateQueryFailed, "failed to scan exit reason count", err)
		}

		counts[types.ExitReason(reason)] = count
	}

	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStateQueryFailed, "error iterating exit reasons", err)
	}

	return counts, nil
}

// Cleanup resets the database state.
func (b *BacktestState) Cleanup() error {
	// Squirrel has no DROP syntax.
	_, err := b.db.Exec(`DROP TABLE IF EXISTS trades`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStateInitFailed, "failed to cleanup tables", err)
	}

	return b.Initialize()
}

// Write exports the trades to a CSV file in the given directory.
func (b *BacktestState) Write(path string) error {
	if err := os.MkdirAll(path, 0755); err != nil {
		return errors.Wrap(errors.ErrCodeStateWriteFailed, "failed to create results directory", err)
	}

	// Squirrel doesn't support COPY.
	tradesPath := filepath.Join(path, "trades.csv")

	_, err := b.db.Exec(fmt.Sprintf(`COPY (SELECT * FROM trades ORDER BY exit_time ASC) TO '%s' (FORMAT CSV, HEADER)`, tradesPath))
	if err != nil {
		return errors.Wrap(errors.ErrCodeStateWriteFailed, "failed to export trades to CSV", err)
	}

	b.logger.Info("Exported trades",
		zap.String("path", tradesPath),
	)

	return nil
}

// Close releases the underlying database.
func (b *BacktestState) Close() error {
	return b.db.Close()
}
