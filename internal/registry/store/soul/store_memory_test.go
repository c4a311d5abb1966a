package soul_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"soulledger/internal/registry/models"
	soulstore "soulledger/internal/registry/store/soul"
	id "soulledger/pkg/domain"
	"soulledger/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *soulstore.InMemoryStore
	now   time.Time
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = soulstore.NewInMemoryStore()
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func (s *InMemoryStoreSuite) addr(n byte) id.Address {
	return id.MustAddress(fmt.Sprintf("0x%040x", n))
}

func (s *InMemoryStoreSuite) hash(n byte) id.ContentHash {
	return id.MustContentHash(fmt.Sprintf("0x%064x", n))
}

func (s *InMemoryStoreSuite) mint(agent, creator id.Address, h id.ContentHash) *models.Soul {
	soul, err := models.NewSoul(agent, creator, "ipfs://doc", h, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreateIfUnique(context.Background(), soul))
	return soul
}

func (s *InMemoryStoreSuite) TestSequentialIDs() {
	first := s.mint(s.addr(1), s.addr(9), s.hash(1))
	second := s.mint(s.addr(2), s.addr(9), s.hash(2))

	s.Equal(id.SoulID(1), first.ID)
	s.Equal(id.SoulID(2), second.ID)
}

func (s *InMemoryStoreSuite) TestMintUniqueness() {
	ctx := context.Background()
	s.mint(s.addr(1), s.addr(9), s.hash(1))

	s.Run("duplicate live agent conflicts", func() {
		dup, err := models.NewSoul(s.addr(1), s.addr(9), "ipfs://doc", s.hash(2), s.now)
		s.Require().NoError(err)
		err = s.store.CreateIfUnique(ctx, dup)
		s.Require().ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("duplicate content hash rejected", func() {
		dup, err := models.NewSoul(s.addr(2), s.addr(9), "ipfs://doc", s.hash(1), s.now)
		s.Require().NoError(err)
		err = s.store.CreateIfUnique(ctx, dup)
		s.Require().ErrorIs(err, sentinel.ErrAlreadyUsed)
	})

	s.Run("hash stays burned after the soul dies", func() {
		_, err := s.store.Execute(ctx, 1,
			func(soul *models.Soul) error { return nil },
			func(soul *models.Soul) { soul.ApplyDeath(0, "", s.now) },
		)
		s.Require().NoError(err)

		dup, err := models.NewSoul(s.addr(3), s.addr(9), "ipfs://doc", s.hash(1), s.now)
		s.Require().NoError(err)
		s.Require().ErrorIs(s.store.CreateIfUnique(ctx, dup), sentinel.ErrAlreadyUsed)
	})

	s.Run("agent frees up after death", func() {
		next, err := models.NewSoul(s.addr(1), s.addr(9), "ipfs://doc", s.hash(3), s.now)
		s.Require().NoError(err)
		s.Require().NoError(s.store.CreateIfUnique(ctx, next))
	})
}

func (s *InMemoryStoreSuite) TestRetiringCarveOut() {
	ctx := context.Background()
	old := s.mint(s.addr(1), s.addr(9), s.hash(1))

	// Rebirth with the same agent: the successor is inserted while the old
	// soul is still live, carved out by the retiring list.
	successor, err := models.NewSoul(s.addr(1), s.addr(9), "ipfs://doc2", s.hash(2), s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreateIfUnique(ctx, successor, old.ID))

	_, err = s.store.Execute(ctx, old.ID,
		func(soul *models.Soul) error { return soul.CanRebirth(s.addr(9), false) },
		func(soul *models.Soul) { soul.ApplyRebirth(s.now) },
	)
	s.Require().NoError(err)

	// The agent index must point at the successor, not be cleared by the
	// old soul's retirement.
	live, err := s.store.FindLiveByAgent(ctx, s.addr(1))
	s.Require().NoError(err)
	s.Equal(successor.ID, live.ID)
}

func (s *InMemoryStoreSuite) TestFindUnknown() {
	_, err := s.store.FindByID(context.Background(), 404)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.store.FindLiveByAgent(context.Background(), s.addr(7))
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestExecuteValidationBlocksMutation() {
	ctx := context.Background()
	soul := s.mint(s.addr(1), s.addr(9), s.hash(1))

	_, err := s.store.Execute(ctx, soul.ID,
		func(soul *models.Soul) error { return soul.CanDelist(s.addr(9)) },
		func(soul *models.Soul) { soul.ApplyDelisting(s.now) },
	)
	s.Require().Error(err)

	got, err := s.store.FindByID(ctx, soul.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusAlive, got.Status)
}

func (s *InMemoryStoreSuite) TestReadsAreCopies() {
	ctx := context.Background()
	soul := s.mint(s.addr(1), s.addr(9), s.hash(1))

	got, err := s.store.FindByID(ctx, soul.ID)
	s.Require().NoError(err)
	got.Status = models.StatusDead

	again, err := s.store.FindByID(ctx, soul.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusAlive, again.Status)
}

func (s *InMemoryStoreSuite) TestCountByStatusAndList() {
	ctx := context.Background()
	s.mint(s.addr(1), s.addr(9), s.hash(1))
	second := s.mint(s.addr(2), s.addr(9), s.hash(2))

	_, err := s.store.Execute(ctx, second.ID,
		func(soul *models.Soul) error { return nil },
		func(soul *models.Soul) { soul.ApplyDeath(0, "", s.now) },
	)
	s.Require().NoError(err)

	counts, err := s.store.CountByStatus(ctx)
	s.Require().NoError(err)
	s.Equal(1, counts[models.StatusAlive])
	s.Equal(1, counts[models.StatusDead])

	all, err := s.store.List(ctx, 0)
	s.Require().NoError(err)
	s.Len(all, 2)
	s.Equal(id.SoulID(1), all[0].ID)

	one, err := s.store.List(ctx, 1)
	s.Require().NoError(err)
	s.Len(one, 1)
}
