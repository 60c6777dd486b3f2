package types

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"github.com/quantframe-labs/intrascan/pkg/errors"
)

type TradeTestSuite struct {
	suite.Suite
}

func TestTradeSuite(t *testing.T) {
	suite.Run(t, new(TradeTestSuite))
}

func validLongPosition() Position {
	return Position{
		Symbol:        "RELIANCE",
		Direction:     DirectionLong,
		State:         PositionStateOpen,
		EntryPrice:    100,
		EntryTime:     time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC),
		EntryBarIndex: 12,
		StopLoss:      96,
		Target:        104,
		Shares:        200,
		EntryShares:   200,
		RiskPerShare:  4,
		SignalScore:   -0.6,
		Confidence:    55,
		EntryRSI:      28,
	}
}

func (suite *TradeTestSuite) TestDirectionSign() {
	suite.Equal(1.0, DirectionLong.Sign())
	suite.Equal(-1.0, DirectionShort.Sign())
}

func (suite *TradeTestSuite) TestUnrealizedPerShare() {
	long := validLongPosition()
	suite.InDelta(4.0, long.UnrealizedPerShare(104), 1e-9)
	suite.InDelta(-2.0, long.UnrealizedPerShare(98), 1e-9)

	short := validLongPosition()
	short.Direction = DirectionShort
	short.StopLoss = 104
	short.Target = 96
	suite.InDelta(4.0, short.UnrealizedPerShare(96), 1e-9)
	suite.InDelta(-3.0, short.UnrealizedPerShare(103), 1e-9)
}

func (suite *TradeTestSuite) TestPositionValidate() {
	tests := []struct {
		name    string
		mutate  func(p *Position)
		errCode errors.ErrorCode
		wantErr bool
	}{
		{name: "valid long", mutate: func(p *Position) {}, wantErr: false},
		{
			name: "valid short",
			mutate: func(p *Position) {
				p.Direction = DirectionShort
				p.StopLoss = 104
				p.Target = 96
			},
			wantErr: false,
		},
		{
			name:    "zero shares",
			mutate:  func(p *Position) { p.Shares = 0 },
			errCode: errors.ErrCodeInvalidPosition,
			wantErr: true,
		},
		{
			name:    "long stop above target",
			mutate:  func(p *Position) { p.StopLoss = 105 },
			errCode: errors.ErrCodeInvariantViolation,
			wantErr: true,
		},
		{
			name: "short stop below target",
			mutate: func(p *Position) {
				p.Direction = DirectionShort
				p.StopLoss = 95
				p.Target = 96
			},
			errCode: errors.ErrCodeInvariantViolation,
			wantErr: true,
		},
		{
			name:    "shares exceed entry shares",
			mutate:  func(p *Position) { p.Shares = 300 },
			errCode: errors.ErrCodeInvariantViolation,
			wantErr: true,
		},
		{
			name:    "unknown state",
			mutate:  func(p *Position) { p.State = "CLOSED" },
			errCode: errors.ErrCodeInvalidPosition,
			wantErr: true,
		},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			position := validLongPosition()
			tc.mutate(&position)

			err := position.Validate()
			if tc.wantErr {
				suite.Error(err)
				suite.True(errors.HasCode(err, tc.errCode))
			} else {
				suite.NoError(err)
			}
		})
	}
}

func validClosedTrade() ClosedTrade {
	entry := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)

	return ClosedTrade{
		ID:          uuid.NewString(),
		Symbol:      "RELIANCE",
		Direction:   DirectionLong,
		EntryTime:   entry,
		ExitTime:    entry.Add(45 * time.Minute),
		EntryPrice:  100,
		ExitPrice:   104,
		StopLoss:    96,
		Target:      104,
		Shares:      200,
		PnL:         780,
		PnLPct:      0.039,
		RMultiple:   0.975,
		Commission:  20,
		ExitReason:  ExitReasonTarget,
		SignalScore: -0.6,
		Confidence:  55,
		EntryRSI:    28,
		HoldMinutes: 45,
	}
}

func (suite *TradeTestSuite) TestClosedTradeValidate() {
	trade := validClosedTrade()
	suite.NoError(trade.Validate())
}

func (suite *TradeTestSuite) TestClosedTradeValidateRejects() {
	tests := []struct {
		name   string
		mutate func(t *ClosedTrade)
	}{
		{"missing id", func(t *ClosedTrade) { t.ID = "" }},
		{"bad exit reason", func(t *ClosedTrade) { t.ExitReason = "GUT_FEELING" }},
		{"zero shares", func(t *ClosedTrade) { t.Shares = 0 }},
		{"exit before entry", func(t *ClosedTrade) { t.ExitTime = t.EntryTime.Add(-time.Minute) }},
		{"negative commission", func(t *ClosedTrade) { t.Commission = -1 }},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			trade := validClosedTrade()
			tc.mutate(&trade)
			suite.Error(trade.Validate())
		})
	}
}
