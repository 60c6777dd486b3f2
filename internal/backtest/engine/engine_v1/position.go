package engine

import (
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quantframe-labs/intrascan/internal/indicator"
	"github.com/quantframe-labs/intrascan/internal/logger"
	"github.com/quantframe-labs/intrascan/internal/signal"
	"github.com/quantframe-labs/intrascan/internal/types"
	"github.com/quantframe-labs/intrascan/pkg/errors"
)

// Lifecycle parameters. These are engine policy, not run configuration:
// changing them changes what a backtest means, so they are fixed here
// rather than exposed in BacktestConfig.
const (
	// ScoreThreshold is the absolute score a signal needs before the
	// engine takes a direction. Positive scores read as overbought.
	ScoreThreshold = 0.45
	// ConfidenceGate is the minimum signal confidence, inclusive.
	ConfidenceGate = 35.0
	// MinLookbackBars is the smallest window the signal source accepts.
	MinLookbackBars = 20

	LiquidityPeriod   = 20
	LiquidityFraction = 0.5

	TrendEMAPeriod     = 20
	TrendSlopeLookback = 5

	ATRPeriod     = 14
	ATRMultiplier = 4.0

	MaxNotionalPct = 0.20

	// TimeExitBars caps how long a position may be held, in bars.
	// 375 five-minute bars is five full NSE sessions.
	TimeExitBars = 375

	// Entry cutoff in exchange-local time: no new positions within two
	// hours of the 15:30 close.
	EntryCutoffHour   = 13
	EntryCutoffMinute = 30
)

// PositionManager owns the position state machine for a single symbol.
// At most one position is open at a time; every closure settles into
// the run's capital ledger and emits exactly one ClosedTrade.
type PositionManager struct {
	symbol   string
	config   BacktestConfig
	run      *BacktestRun
	log      *logger.Logger
	primary  signal.Scorer
	fallback signal.Scorer

	position *types.Position
	// partialPnL and partialCommission accumulate the settled partial
	// leg so the final ClosedTrade carries the whole position's
	// economics and the ledger reconciles exactly.
	partialPnL        float64
	partialCommission float64
}

func NewPositionManager(symbol string, config BacktestConfig, run *BacktestRun, primary signal.Scorer, log *logger.Logger) *PositionManager {
	return &PositionManager{
		symbol:            symbol,
		config:            config,
		run:               run,
		log:               log,
		primary:           primary,
		fallback:          signal.NewFallbackScorer(),
		position:          nil,
		partialPnL:        0,
		partialCommission: 0,
	}
}

func (m *PositionManager) HasOpenPosition() bool {
	return m.position != nil
}

// TryEnter evaluates the entry filters at the current bar and opens a
// position when all of them pass. A filter rejecting the bar is not an
// error; only an invariant violation is.
func (m *PositionManager) TryEnter(window []types.Bar, bar types.Bar, barIndex int) error {
	if m.position != nil {
		return errors.New(errors.ErrCodeInvariantViolation, "entry attempted with a position already open")
	}

	if !beforeCutoff(bar.Time) {
		return nil
	}

	if len(window) < MinLookbackBars {
		return nil
	}

	score, primaryErr := signal.ScoreOrFallback(m.primary, m.fallback, window, bar.Close, m.symbol)
	if primaryErr != nil {
		m.log.Warn("primary scorer failed, used fallback",
			zap.String("symbol", m.symbol),
			zap.Error(primaryErr))
	}

	direction, ok := directionFor(score)
	if !ok {
		return nil
	}

	avgVolume, err := indicator.AvgVolume(window, LiquidityPeriod)
	if err != nil || bar.Volume < LiquidityFraction*avgVolume {
		return nil
	}

	slope, err := indicator.EMASlope(window, TrendEMAPeriod, TrendSlopeLookback)
	if err != nil {
		return nil
	}

	if (direction == types.DirectionLong && slope < 0) ||
		(direction == types.DirectionShort && slope > 0) {
		return nil
	}

	atr, err := indicator.ATR(window, ATRPeriod)
	if err != nil || atr <= 0 {
		return nil
	}

	sign := direction.Sign()
	entryPrice := bar.Close * (1 + sign*m.config.EntrySlippagePct)
	riskPerShare := atr * ATRMultiplier
	stopLoss := entryPrice - sign*riskPerShare
	target := entryPrice + sign*riskPerShare

	shares, err := SizePosition(m.run.Capital(), entryPrice, stopLoss, m.config.RiskPerTrade, MaxNotionalPct)
	if err != nil {
		m.log.Debug("sizing rejected entry",
			zap.String("symbol", m.symbol),
			zap.Error(err))

		return nil
	}

	position := &types.Position{
		Symbol:        m.symbol,
		Direction:     direction,
		State:         types.PositionStateOpen,
		EntryPrice:    entryPrice,
		EntryTime:     bar.Time,
		EntryBarIndex: barIndex,
		StopLoss:      stopLoss,
		Target:        target,
		Shares:        shares,
		EntryShares:   shares,
		RiskPerShare:  riskPerShare,
		SignalScore:   score.Value,
		Confidence:    score.Confidence,
		EntryRSI:      score.RSI,
	}

	// Validate before the position becomes visible to exit evaluation:
	// a malformed position must never reach the ledger.
	if err := position.Validate(); err != nil {
		return err
	}

	m.position = position
	m.partialPnL = 0
	m.partialCommission = 0

	m.log.Debug("opened position",
		zap.String("symbol", m.symbol),
		zap.String("direction", string(direction)),
		zap.Float64("entry_price", entryPrice),
		zap.Float64("stop_loss", stopLoss),
		zap.Float64("target", target),
		zap.Int("shares", shares))

	return nil
}

// EvaluateExits runs the per-bar exit precedence for an open position:
// partial profit-taking, trailing stop, target/stop touch (target
// first), then the time cap. Returns the ClosedTrade when the position
// closed on this bar, nil otherwise.
func (m *PositionManager) EvaluateExits(bar types.Bar, barIndex int) (*types.ClosedTrade, error) {
	if m.position == nil {
		return nil, errors.New(errors.ErrCodeInvalidPosition, "exit evaluation without an open position")
	}

	pos := m.position
	sign := pos.Direction.Sign()
	favorable := favorableExtreme(bar, pos.Direction)

	// 1. Partial profit-taking, once per position. Fills at the exact
	// +1R level, settles immediately, and moves the stop to breakeven.
	if pos.State == types.PositionStateOpen && pos.UnrealizedPerShare(favorable) >= pos.RiskPerShare {
		partialLevel := pos.EntryPrice + sign*pos.RiskPerShare

		trade, err := m.takePartial(bar, partialLevel)
		if err != nil || trade != nil {
			return trade, err
		}
	}

	// 2. Trailing stop, only after the partial exit. At +2R the stop
	// ratchets to lock in +1R; it never moves against the position.
	if pos.State == types.PositionStatePartial && pos.UnrealizedPerShare(favorable) >= 2*pos.RiskPerShare {
		locked := pos.EntryPrice + sign*pos.RiskPerShare
		if pos.Direction == types.DirectionLong {
			pos.StopLoss = math.Max(pos.StopLoss, locked)
		} else {
			pos.StopLoss = math.Min(pos.StopLoss, locked)
		}
	}

	// 3. Target before stop when both levels sit inside the bar's
	// range. The real intrabar path is unknowable from OHLC; the
	// target-first policy is kept for compatibility with downstream
	// report consumers.
	if touched(bar, pos.Direction, pos.Target, true) {
		return m.closeRemaining(bar, pos.Target, types.ExitReasonTarget)
	}

	if touched(bar, pos.Direction, pos.StopLoss, false) {
		return m.closeRemaining(bar, pos.StopLoss, types.ExitReasonStop)
	}

	// 4. Time cap, an absolute override regardless of partial state.
	if barIndex-pos.EntryBarIndex >= TimeExitBars {
		return m.closeRemaining(bar, bar.Close, types.ExitReasonTimeExit)
	}

	return nil, nil
}

// ForceClose closes any open position at the bar's close with a time
// exit. Called at day end and at the end of the replay.
func (m *PositionManager) ForceClose(bar types.Bar) (*types.ClosedTrade, error) {
	if m.position == nil {
		return nil, nil
	}

	return m.closeRemaining(bar, bar.Close, types.ExitReasonTimeExit)
}

// takePartial closes half the shares (rounded up) at the given level.
// When no shares would remain, the position closes outright with
// reason PARTIAL_EXIT_COMPLETE instead of latching an empty partial.
func (m *PositionManager) takePartial(bar types.Bar, level float64) (*types.ClosedTrade, error) {
	pos := m.position

	partialShares := (pos.Shares + 1) / 2
	if partialShares >= pos.Shares {
		return m.closeRemaining(bar, level, types.ExitReasonPartialExitComplete)
	}

	pnl, commission := m.legEconomics(partialShares, level)
	m.run.Settle(pnl)
	m.partialPnL = pnl
	m.partialCommission = commission

	pos.Shares -= partialShares
	pos.StopLoss = pos.EntryPrice
	pos.State = types.PositionStatePartial

	m.log.Debug("partial exit",
		zap.String("symbol", m.symbol),
		zap.Int("shares", partialShares),
		zap.Float64("level", level),
		zap.Float64("pnl", pnl))

	return nil, nil
}

// closeRemaining exits every remaining share at the given level,
// settles the leg, and emits the position's single ClosedTrade. The
// trade's pnl and commission include any earlier partial leg. The
// record is validated before the ledger moves, so a malformed trade
// never leaves settled capital behind.
func (m *PositionManager) closeRemaining(bar types.Bar, level float64, reason types.ExitReason) (*types.ClosedTrade, error) {
	pos := m.position

	legPnL, legCommission := m.legEconomics(pos.Shares, level)

	pnl := m.partialPnL + legPnL
	commission := m.partialCommission + legCommission
	entryNotional := pos.EntryPrice * float64(pos.EntryShares)
	riskNotional := pos.RiskPerShare * float64(pos.EntryShares)

	trade := &types.ClosedTrade{
		ID:          uuid.New().String(),
		Symbol:      pos.Symbol,
		Direction:   pos.Direction,
		EntryTime:   pos.EntryTime,
		ExitTime:    bar.Time,
		EntryPrice:  pos.EntryPrice,
		ExitPrice:   m.exitFill(level),
		StopLoss:    pos.StopLoss,
		Target:      pos.Target,
		Shares:      pos.EntryShares,
		PnL:         pnl,
		PnLPct:      pnl / entryNotional,
		RMultiple:   pnl / riskNotional,
		Commission:  commission,
		ExitReason:  reason,
		SignalScore: pos.SignalScore,
		Confidence:  pos.Confidence,
		EntryRSI:    pos.EntryRSI,
		HoldMinutes: int(bar.Time.Sub(pos.EntryTime).Minutes()),
	}

	if err := trade.Validate(); err != nil {
		return nil, err
	}

	m.run.Settle(legPnL)

	if err := m.run.AppendTrade(*trade); err != nil {
		return nil, err
	}

	m.position = nil
	m.partialPnL = 0
	m.partialCommission = 0

	m.log.Debug("closed position",
		zap.String("symbol", m.symbol),
		zap.String("reason", string(reason)),
		zap.Float64("pnl", pnl),
		zap.Float64("r_multiple", trade.RMultiple))

	return trade, nil
}

// legEconomics prices an exit of the given share count at level with
// exit-side slippage, net of both-leg commission on those shares. Pure:
// the caller decides when the result hits the ledger.
func (m *PositionManager) legEconomics(shares int, level float64) (pnl float64, commission float64) {
	pos := m.position
	fill := m.exitFill(level)
	qty := float64(shares)

	gross := (fill - pos.EntryPrice) * pos.Direction.Sign() * qty
	commission = m.config.CommissionRate * qty * (pos.EntryPrice + fill)
	pnl = gross - commission

	return pnl, commission
}

// exitFill applies exit-side slippage in the adverse direction: longs
// sell lower, shorts cover higher.
func (m *PositionManager) exitFill(level float64) float64 {
	return level * (1 - m.position.Direction.Sign()*m.config.ExitSlippagePct)
}

func directionFor(score signal.Score) (types.Direction, bool) {
	if score.Confidence < ConfidenceGate {
		return "", false
	}

	switch {
	case score.Value >= ScoreThreshold:
		// Positive scores flag overbought conditions: fade them.
		return types.DirectionShort, true
	case score.Value <= -ScoreThreshold:
		return types.DirectionLong, true
	default:
		return "", false
	}
}

// beforeCutoff reports whether the bar opens early enough in the
// session to start a new position, in the bar's own location.
func beforeCutoff(t time.Time) bool {
	cutoff := time.Date(t.Year(), t.Month(), t.Day(), EntryCutoffHour, EntryCutoffMinute, 0, 0, t.Location())

	return t.Before(cutoff)
}

// favorableExtreme is the bar price furthest in the position's favor.
func favorableExtreme(bar types.Bar, direction types.Direction) float64 {
	if direction == types.DirectionLong {
		return bar.High
	}

	return bar.Low
}

// touched reports whether the bar's range reached the given level on
// the side that matters: the favorable side for targets, the adverse
// side for stops.
func touched(bar types.Bar, direction types.Direction, level float64, favorable bool) bool {
	long := direction == types.DirectionLong
	if favorable == long {
		return bar.High >= level
	}

	return bar.Low <= level
}
