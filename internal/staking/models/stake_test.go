package models_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"soulledger/internal/staking/models"
	id "soulledger/pkg/domain"
	dErrors "soulledger/pkg/domain-errors"
)

type StakeSuite struct {
	suite.Suite
	now    time.Time
	staker id.Address
}

func TestStakeSuite(t *testing.T) {
	suite.Run(t, new(StakeSuite))
}

func (s *StakeSuite) SetupTest() {
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.staker = id.MustAddress("0x52908400098527886E0F7030069857D2E4169EE7")
}

func (s *StakeSuite) TestConstruction() {
	stake, err := models.NewStake(s.staker, 7, models.KindSurvive, 50, 24*time.Hour, s.now)
	s.Require().NoError(err)
	s.Equal(id.SoulID(7), stake.SoulID)
	s.Equal(models.KindSurvive, stake.Kind)
	s.Equal(uint64(50), stake.Amount)
	s.Equal(s.now, stake.CreatedAt)
	s.Equal(s.now.Add(24*time.Hour), stake.ExpiresAt)
	s.False(stake.Resolved)
}

func (s *StakeSuite) TestConstructionRejectsInvariantViolations() {
	tests := []struct {
		name     string
		staker   id.Address
		soulID   id.SoulID
		kind     models.Kind
		amount   uint64
		duration time.Duration
	}{
		{name: "empty staker", soulID: 7, kind: models.KindDie, amount: 50, duration: time.Hour},
		{name: "empty soul", staker: s.staker, kind: models.KindDie, amount: 50, duration: time.Hour},
		{name: "bad kind", staker: s.staker, soulID: 7, kind: "MAYBE", amount: 50, duration: time.Hour},
		{name: "zero amount", staker: s.staker, soulID: 7, kind: models.KindDie, duration: time.Hour},
		{name: "oversized amount", staker: s.staker, soulID: 7, kind: models.KindDie, amount: math.MaxUint64, duration: time.Hour},
		{name: "zero duration", staker: s.staker, soulID: 7, kind: models.KindDie, amount: 50},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := models.NewStake(tt.staker, tt.soulID, tt.kind, tt.amount, tt.duration, s.now)
			s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
		})
	}
}

func (s *StakeSuite) TestResolveExactlyOnceAfterExpiry() {
	stake, err := models.NewStake(s.staker, 7, models.KindSurvive, 50, time.Hour, s.now)
	s.Require().NoError(err)

	err = stake.CanResolve(s.now.Add(30 * time.Minute))
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	expiry := s.now.Add(time.Hour)
	s.Require().NoError(stake.CanResolve(expiry))
	stake.ApplyResolution(true, 63, expiry)
	s.True(stake.Resolved)
	s.True(stake.Won)
	s.Equal(uint64(63), stake.Payout)

	err = stake.CanResolve(expiry)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *StakeSuite) TestKind() {
	kind, err := models.ParseKind("SURVIVE")
	s.Require().NoError(err)
	s.Equal(models.KindSurvive, kind)
	s.Equal(models.KindDie, kind.Opposite())
	s.Equal(models.KindSurvive, models.KindDie.Opposite())

	_, err = models.ParseKind("survive")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestComputePayout(t *testing.T) {
	tests := []struct {
		name        string
		amount      uint64
		winningPool uint64
		losingPool  uint64
		feeBps      uint64
		want        models.Payout
	}{
		{
			name: "spec worked example", amount: 50, winningPool: 300, losingPool: 100, feeBps: 500,
			want: models.Payout{Share: 16, Gross: 66, Fee: 3, Net: 63},
		},
		{
			name: "no opposition pays back the stake less fee", amount: 50, winningPool: 50, losingPool: 0, feeBps: 500,
			want: models.Payout{Share: 0, Gross: 50, Fee: 2, Net: 48},
		},
		{
			name: "zero fee", amount: 100, winningPool: 200, losingPool: 200, feeBps: 0,
			want: models.Payout{Share: 100, Gross: 200, Fee: 0, Net: 200},
		},
		{
			name: "share truncates toward zero", amount: 1, winningPool: 3, losingPool: 2, feeBps: 500,
			want: models.Payout{Share: 0, Gross: 1, Fee: 0, Net: 1},
		},
		{
			name: "large pools do not overflow", amount: math.MaxInt64, winningPool: math.MaxInt64, losingPool: math.MaxInt64, feeBps: 500,
			want: models.Payout{Share: math.MaxInt64, Gross: 2 * uint64(math.MaxInt64), Fee: 2 * uint64(math.MaxInt64) / 20, Net: 2*uint64(math.MaxInt64) - 2*uint64(math.MaxInt64)/20},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := models.ComputePayout(tt.amount, tt.winningPool, tt.losingPool, tt.feeBps)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got.Gross, got.Fee+got.Net)
		})
	}
}

func TestPoolOdds(t *testing.T) {
	pool := models.NewPool(7)
	assert.Equal(t, models.NeutralOdds, pool.Odds())

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	pool.Grow(models.KindSurvive, 300, now)
	pool.Grow(models.KindDie, 100, now)
	assert.Equal(t, uint64(75), pool.Odds())
	assert.Equal(t, uint64(400), pool.Total())
	assert.Equal(t, uint64(300), pool.Side(models.KindSurvive))

	pool.Shrink(models.KindSurvive, 50, now)
	pool.Shrink(models.KindDie, 16, now)
	assert.Equal(t, uint64(250), pool.SurvivePool)
	assert.Equal(t, uint64(84), pool.DiePool)

	// Shrinking past zero saturates instead of underflowing.
	pool.Shrink(models.KindDie, 1000, now)
	assert.Zero(t, pool.DiePool)
}
