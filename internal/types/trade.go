package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/quantframe-labs/intrascan/pkg/errors"
)

type Direction string

type PositionState string

type ExitReason string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

const (
	// PositionStateOpen is a freshly opened position with its full size.
	PositionStateOpen PositionState = "OPEN"
	// PositionStatePartial is an open position after the one-shot partial
	// exit: half the shares are gone and the stop sits at breakeven.
	PositionStatePartial PositionState = "PARTIAL"
)

const (
	ExitReasonTarget              ExitReason = "TARGET"
	ExitReasonStop                ExitReason = "STOP"
	ExitReasonTimeExit            ExitReason = "TIME_EXIT"
	ExitReasonPartialExitComplete ExitReason = "PARTIAL_EXIT_COMPLETE"
	ExitReasonVWAPRecross         ExitReason = "VWAP_RECROSS"
)

// AllExitReasons lists every reason the summary histogram reports,
// including reasons retained for report compatibility.
var AllExitReasons = []ExitReason{
	ExitReasonTarget,
	ExitReasonStop,
	ExitReasonTimeExit,
	ExitReasonPartialExitComplete,
	ExitReasonVWAPRecross,
}

// Sign returns +1 for long and -1 for short. Multiplying a raw price move
// by Sign yields the direction-adjusted profit per share.
func (d Direction) Sign() float64 {
	if d == DirectionShort {
		return -1
	}

	return 1
}

// Position is the single open position for a symbol. It is owned
// exclusively by the position lifecycle manager while open; the direction
// and provenance fields never change after entry.
type Position struct {
	Symbol    string    `yaml:"symbol" csv:"symbol" validate:"required"`
	Direction Direction `yaml:"direction" csv:"direction" validate:"required,oneof=LONG SHORT"`
	State     PositionState `yaml:"state" csv:"state" validate:"required,oneof=OPEN PARTIAL"`

	// EntryPrice is the post-slippage fill price.
	EntryPrice    float64   `yaml:"entry_price" csv:"entry_price" validate:"gt=0"`
	EntryTime     time.Time `yaml:"entry_time" csv:"entry_time" validate:"required"`
	EntryBarIndex int       `yaml:"entry_bar_index" csv:"entry_bar_index" validate:"gte=0"`

	// StopLoss trails; Target is fixed at entry.
	StopLoss float64 `yaml:"stop_loss" csv:"stop_loss" validate:"gt=0"`
	Target   float64 `yaml:"target" csv:"target" validate:"gt=0"`

	// Shares is reduced by partial exits. EntryShares is the size at entry
	// and anchors the R-multiple denominator.
	Shares       int     `yaml:"shares" csv:"shares" validate:"gt=0"`
	EntryShares  int     `yaml:"entry_shares" csv:"entry_shares" validate:"gt=0"`
	RiskPerShare float64 `yaml:"risk_per_share" csv:"risk_per_share" validate:"gt=0"`

	// Signal provenance, immutable after entry.
	SignalScore float64 `yaml:"signal_score" csv:"signal_score"`
	Confidence  float64 `yaml:"confidence" csv:"confidence"`
	EntryRSI    float64 `yaml:"entry_rsi" csv:"entry_rsi"`
}

// UnrealizedPerShare returns the direction-adjusted open profit per share
// at the given price.
func (p *Position) UnrealizedPerShare(price float64) float64 {
	return (price - p.EntryPrice) * p.Direction.Sign()
}

// Validate checks the struct tags plus the stop/target orientation
// invariant: a long's stop must sit below its target, a short's above.
func (p *Position) Validate() error {
	validate := validator.New()
	if err := validate.Struct(p); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPosition, "invalid position", err)
	}

	switch p.Direction {
	case DirectionLong:
		if p.StopLoss >= p.Target {
			return errors.Newf(errors.ErrCodeInvariantViolation,
				"long stop %.2f is not below target %.2f", p.StopLoss, p.Target)
		}
	case DirectionShort:
		if p.StopLoss <= p.Target {
			return errors.Newf(errors.ErrCodeInvariantViolation,
				"short stop %.2f is not above target %.2f", p.StopLoss, p.Target)
		}
	}

	if p.Shares > p.EntryShares {
		return errors.Newf(errors.ErrCodeInvariantViolation,
			"shares %d exceed entry shares %d", p.Shares, p.EntryShares)
	}

	return nil
}

// ClosedTrade is the immutable record emitted once per position closure.
// The collection of ClosedTrades for a run is the sole input to the
// run summary.
type ClosedTrade struct {
	ID        string    `yaml:"id" csv:"id" validate:"required,uuid"`
	Symbol    string    `yaml:"symbol" csv:"symbol" validate:"required"`
	Direction Direction `yaml:"direction" csv:"direction" validate:"required,oneof=LONG SHORT"`

	EntryTime time.Time `yaml:"entry_time" csv:"entry_time" validate:"required"`
	ExitTime  time.Time `yaml:"exit_time" csv:"exit_time" validate:"required"`

	// Entry/exit prices are post-slippage fills.
	EntryPrice float64 `yaml:"entry_price" csv:"entry_price" validate:"gt=0"`
	ExitPrice  float64 `yaml:"exit_price" csv:"exit_price" validate:"gt=0"`
	StopLoss   float64 `yaml:"stop_loss" csv:"stop_loss" validate:"gt=0"`
	Target     float64 `yaml:"target" csv:"target" validate:"gt=0"`
	Shares     int     `yaml:"shares" csv:"shares" validate:"gt=0"`

	// PnL is net of commission on both legs.
	PnL        float64    `yaml:"pnl" csv:"pnl"`
	PnLPct     float64    `yaml:"pnl_pct" csv:"pnl_pct"`
	RMultiple  float64    `yaml:"r_multiple" csv:"r_multiple"`
	Commission float64    `yaml:"commission" csv:"commission" validate:"gte=0"`
	ExitReason ExitReason `yaml:"exit_reason" csv:"exit_reason" validate:"required,oneof=TARGET STOP TIME_EXIT PARTIAL_EXIT_COMPLETE VWAP_RECROSS"`

	SignalScore float64 `yaml:"signal_score" csv:"signal_score"`
	Confidence  float64 `yaml:"confidence" csv:"confidence"`
	EntryRSI    float64 `yaml:"entry_rsi" csv:"entry_rsi"`

	HoldMinutes int `yaml:"hold_minutes" csv:"hold_minutes" validate:"gte=0"`
}

// Validate validates the ClosedTrade struct.
func (t *ClosedTrade) Validate() error {
	validate := validator.New()
	if err := validate.Struct(t); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidTrade, "invalid closed trade", err)
	}

	if t.ExitTime.Before(t.EntryTime) {
		return errors.Newf(errors.ErrCodeInvariantViolation,
			"trade %s exits at %s before entry at %s", t.ID, t.ExitTime, t.EntryTime)
	}

	return nil
}
