package stake_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"soulledger/internal/staking/models"
	stakestore "soulledger/internal/staking/store/stake"
	id "soulledger/pkg/domain"
	dErrors "soulledger/pkg/domain-errors"
	"soulledger/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *stakestore.InMemoryStore
	now   time.Time
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = stakestore.NewInMemoryStore()
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func (s *InMemoryStoreSuite) addr(n byte) id.Address {
	return id.MustAddress(fmt.Sprintf("0x%040x", n))
}

func (s *InMemoryStoreSuite) place(soulID id.SoulID, kind models.Kind, amount uint64) *models.Stake {
	stake, err := models.NewStake(s.addr(7), soulID, kind, amount, time.Hour, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(context.Background(), stake))
	return stake
}

func (s *InMemoryStoreSuite) TestCreateAssignsSequentialIDs() {
	first := s.place(1, models.KindSurvive, 100)
	second := s.place(1, models.KindDie, 200)
	other := s.place(2, models.KindSurvive, 300)

	s.Equal(id.StakeID(1), first.ID)
	s.Equal(id.StakeID(2), second.ID)
	s.Equal(id.StakeID(3), other.ID)

	bySoul, err := s.store.FindBySoul(context.Background(), 1)
	s.Require().NoError(err)
	s.Require().Len(bySoul, 2)
	s.Equal(uint64(100), bySoul[0].Amount)
	s.Equal(uint64(200), bySoul[1].Amount)
}

func (s *InMemoryStoreSuite) TestFindUnknown() {
	s.place(1, models.KindSurvive, 100)

	_, err := s.store.Find(context.Background(), 99)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestFindReturnsCopies() {
	placed := s.place(1, models.KindSurvive, 100)

	found, err := s.store.Find(context.Background(), placed.ID)
	s.Require().NoError(err)
	found.Amount = 999

	again, err := s.store.Find(context.Background(), placed.ID)
	s.Require().NoError(err)
	s.Equal(uint64(100), again.Amount)
}

func (s *InMemoryStoreSuite) TestExecuteValidatesBeforeMutating() {
	placed := s.place(1, models.KindSurvive, 100)
	expiry := s.now.Add(time.Hour)

	_, err := s.store.Execute(context.Background(), placed.ID,
		func(stake *models.Stake) error { return stake.CanResolve(s.now) },
		func(stake *models.Stake) { stake.ApplyResolution(true, 50, s.now) },
	)
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	resolved, err := s.store.Execute(context.Background(), placed.ID,
		func(stake *models.Stake) error { return stake.CanResolve(expiry) },
		func(stake *models.Stake) { stake.ApplyResolution(true, 50, expiry) },
	)
	s.Require().NoError(err)
	s.True(resolved.Resolved)

	stored, err := s.store.Find(context.Background(), placed.ID)
	s.Require().NoError(err)
	s.True(stored.Resolved)
	s.Equal(uint64(50), stored.Payout)
}

func (s *InMemoryStoreSuite) TestPoolMaterializedOnFirstUse() {
	empty, err := s.store.FindPool(context.Background(), 1)
	s.Require().NoError(err)
	s.Zero(empty.Total())

	grown, err := s.store.ExecutePool(context.Background(), 1,
		func(pool *models.Pool) error { return nil },
		func(pool *models.Pool) { pool.Grow(models.KindSurvive, 300, s.now) },
	)
	s.Require().NoError(err)
	s.Equal(uint64(300), grown.SurvivePool)

	found, err := s.store.FindPool(context.Background(), 1)
	s.Require().NoError(err)
	s.Equal(uint64(300), found.SurvivePool)
}

func (s *InMemoryStoreSuite) TestExecutePoolValidationLeavesNothingWritten() {
	boom := fmt.Errorf("rejected")
	_, err := s.store.ExecutePool(context.Background(), 1,
		func(pool *models.Pool) error { return boom },
		func(pool *models.Pool) { pool.Grow(models.KindSurvive, 300, s.now) },
	)
	s.ErrorIs(err, boom)

	found, err := s.store.FindPool(context.Background(), 1)
	s.Require().NoError(err)
	s.Zero(found.Total())
}

func (s *InMemoryStoreSuite) TestCountOpen() {
	first := s.place(1, models.KindSurvive, 100)
	s.place(1, models.KindDie, 200)

	open, err := s.store.CountOpen(context.Background())
	s.Require().NoError(err)
	s.Equal(2, open)

	expiry := s.now.Add(time.Hour)
	_, err = s.store.Execute(context.Background(), first.ID,
		func(stake *models.Stake) error { return stake.CanResolve(expiry) },
		func(stake *models.Stake) { stake.ApplyResolution(false, 0, expiry) },
	)
	s.Require().NoError(err)

	open, err = s.store.CountOpen(context.Background())
	s.Require().NoError(err)
	s.Equal(1, open)
}
