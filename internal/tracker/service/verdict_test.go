package service

import (
	"testing"

	"prism-insight/internal/tracker/dto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCandidateVerdict(t *testing.T) {
	tests := []struct {
		name    string
		resp    *dto.CandidateOracleResponse
		action  dto.VerdictAction
		score   int
		wantErr bool
	}{
		{name: "buy", resp: &dto.CandidateOracleResponse{Decision: "BUY", BuyScore: 8, TargetPrice: 1200, StopLoss: 900}, action: dto.ActionBuy, score: 8},
		{name: "lowercase watch", resp: &dto.CandidateOracleResponse{Decision: " watch ", BuyScore: 6}, action: dto.ActionWatch, score: 6},
		{name: "fractional score floored", resp: &dto.CandidateOracleResponse{Decision: "SKIP", BuyScore: 7.9}, action: dto.ActionSkip, score: 7},
		{name: "unknown decision", resp: &dto.CandidateOracleResponse{Decision: "HOLD", BuyScore: 8}, wantErr: true},
		{name: "score too high", resp: &dto.CandidateOracleResponse{Decision: "BUY", BuyScore: 11}, wantErr: true},
		{name: "score zero", resp: &dto.CandidateOracleResponse{Decision: "BUY", BuyScore: 0.5}, wantErr: true},
		{name: "negative stop", resp: &dto.CandidateOracleResponse{Decision: "BUY", BuyScore: 8, StopLoss: -1}, wantErr: true},
		{name: "stop above target", resp: &dto.CandidateOracleResponse{Decision: "BUY", BuyScore: 8, TargetPrice: 900, StopLoss: 950}, wantErr: true},
		{name: "nil", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := ValidateCandidateVerdict(tt.resp)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidVerdict)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.action, v.Action)
			assert.Equal(t, tt.score, v.Score)
		})
	}
}

func TestValidateHoldingVerdict(t *testing.T) {
	t.Run("sell with default reason", func(t *testing.T) {
		v, err := ValidateHoldingVerdict(&dto.HoldingOracleResponse{ShouldSell: true, Confidence: 8})
		require.NoError(t, err)
		assert.True(t, v.ShouldSell())
		assert.Equal(t, "sell recommended by decision oracle", v.Reason)
		assert.Nil(t, v.Adjustment)
	})

	t.Run("hold with adjustment", func(t *testing.T) {
		v, err := ValidateHoldingVerdict(&dto.HoldingOracleResponse{
			Confidence: 6.5,
			PortfolioAdjustment: dto.PortfolioAdjustment{
				Needed:         true,
				NewTargetPrice: 1500,
				Urgency:        " HIGH ",
				Reason:         "momentum",
			},
		})
		require.NoError(t, err)
		assert.False(t, v.ShouldSell())
		assert.Equal(t, 6, v.Confidence)
		require.NotNil(t, v.Adjustment)
		assert.Equal(t, 1500.0, v.Adjustment.NewTargetPrice)
		assert.Zero(t, v.Adjustment.NewStopLoss)
		assert.Equal(t, "high", v.Adjustment.Urgency)
	})

	t.Run("adjustment without prices ignored", func(t *testing.T) {
		v, err := ValidateHoldingVerdict(&dto.HoldingOracleResponse{
			Confidence:          5,
			PortfolioAdjustment: dto.PortfolioAdjustment{Needed: true},
		})
		require.NoError(t, err)
		assert.Nil(t, v.Adjustment)
	})

	t.Run("confidence out of range", func(t *testing.T) {
		_, err := ValidateHoldingVerdict(&dto.HoldingOracleResponse{Confidence: 12})
		assert.ErrorIs(t, err, ErrInvalidVerdict)
	})
}
