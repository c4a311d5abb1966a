package models_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"soulledger/internal/registry/models"
	id "soulledger/pkg/domain"
	dErrors "soulledger/pkg/domain-errors"
)

type SoulSuite struct {
	suite.Suite
	agent   id.Address
	creator id.Address
	buyer   id.Address
	hash    id.ContentHash
	now     time.Time
}

func TestSoulSuite(t *testing.T) {
	suite.Run(t, new(SoulSuite))
}

func (s *SoulSuite) SetupTest() {
	s.agent = id.MustAddress("0x52908400098527886E0F7030069857D2E4169EE7")
	s.creator = id.MustAddress("0x8617E340B3D01FA5F11F306F4090FD50E238070D")
	s.buyer = id.MustAddress("0xde709f2102306220921060314715629080e2fb77")
	s.hash = id.MustContentHash("0x" + strings.Repeat("ab", 32))
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func (s *SoulSuite) newSoul() *models.Soul {
	soul, err := models.NewSoul(s.agent, s.creator, "ipfs://QmSoulDoc", s.hash, s.now)
	s.Require().NoError(err)
	soul.ID = 1
	return soul
}

func (s *SoulSuite) TestConstructionInvariants() {
	s.Run("mints alive and owned by the creator", func() {
		soul := s.newSoul()
		s.Equal(models.StatusAlive, soul.Status)
		s.Equal(s.creator, soul.Owner)
		s.Equal(s.creator, soul.Creator)
		s.Equal(s.agent, soul.Agent)
		s.Equal(s.now, soul.BirthTime)
		s.True(soul.DeathTime.IsZero())
		s.Zero(soul.ListingPrice)
	})

	s.Run("rejects missing fields", func() {
		_, err := models.NewSoul("", s.creator, "ipfs://x", s.hash, s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))

		_, err = models.NewSoul(s.agent, "", "ipfs://x", s.hash, s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))

		_, err = models.NewSoul(s.agent, s.creator, "", s.hash, s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))

		_, err = models.NewSoul(s.agent, s.creator, "ipfs://x", "", s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("rejects oversized content URI", func() {
		_, err := models.NewSoul(s.agent, s.creator, "ipfs://"+strings.Repeat("a", models.MaxContentURILen), s.hash, s.now)
		s.Require().Error(err)
	})
}

func (s *SoulSuite) TestListingCycle() {
	s.Run("owner lists and delists", func() {
		soul := s.newSoul()
		later := s.now.Add(time.Minute)

		s.Require().NoError(soul.List(s.creator, 500, later))
		s.Equal(models.StatusListed, soul.Status)
		s.Equal(uint64(500), soul.ListingPrice)

		s.Require().NoError(soul.Delist(s.creator, later))
		s.Equal(models.StatusAlive, soul.Status)
		s.Zero(soul.ListingPrice)
	})

	s.Run("non-owner cannot list", func() {
		soul := s.newSoul()
		err := soul.List(s.buyer, 500, s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("zero price rejected", func() {
		soul := s.newSoul()
		s.Require().Error(soul.List(s.creator, 0, s.now))
		s.Equal(models.StatusAlive, soul.Status)
	})

	s.Run("listing a listed soul fails", func() {
		soul := s.newSoul()
		s.Require().NoError(soul.List(s.creator, 500, s.now))
		s.Require().Error(soul.List(s.creator, 600, s.now))
		s.Equal(uint64(500), soul.ListingPrice)
	})

	s.Run("delisting an unlisted soul fails", func() {
		soul := s.newSoul()
		s.Require().Error(soul.Delist(s.creator, s.now))
	})
}

func (s *SoulSuite) TestRecordDeath() {
	s.Run("owner records death with cause", func() {
		soul := s.newSoul()
		later := s.now.Add(time.Hour)

		s.Require().NoError(soul.RecordDeath(s.creator, 42, "balance depleted", later))
		s.Equal(models.StatusDead, soul.Status)
		s.Equal(later, soul.DeathTime)
		s.Equal("balance depleted", soul.DeathCause)
		s.Equal(uint64(42), soul.FinalBalance)
	})

	s.Run("creator may record death after a sale", func() {
		soul := s.newSoul()
		soul.Owner = s.buyer

		s.Require().NoError(soul.RecordDeath(s.creator, 0, "abandoned", s.now))
		s.Equal(models.StatusDead, soul.Status)
	})

	s.Run("death clears an active listing", func() {
		soul := s.newSoul()
		s.Require().NoError(soul.List(s.creator, 500, s.now))

		s.Require().NoError(soul.RecordDeath(s.creator, 0, "", s.now))
		s.Zero(soul.ListingPrice)
	})

	s.Run("double death conflicts", func() {
		soul := s.newSoul()
		s.Require().NoError(soul.RecordDeath(s.creator, 0, "", s.now))

		err := soul.RecordDeath(s.creator, 0, "", s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("terminal souls cannot die", func() {
		soul := s.newSoul()
		soul.ApplyRebirth(s.now)

		err := soul.RecordDeath(s.creator, 0, "", s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("stranger cannot record death", func() {
		soul := s.newSoul()
		err := soul.RecordDeath(s.buyer, 0, "", s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

func (s *SoulSuite) TestRebirthAndMerge() {
	s.Run("live soul can be reborn in lenient mode", func() {
		soul := s.newSoul()
		s.Require().NoError(soul.CanRebirth(s.creator, false))
	})

	s.Run("strict mode requires a dead soul", func() {
		soul := s.newSoul()
		err := soul.CanRebirth(s.creator, true)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))

		soul.ApplyDeath(0, "", s.now)
		s.Require().NoError(soul.CanRebirth(s.creator, true))
	})

	s.Run("rebirth is terminal", func() {
		soul := s.newSoul()
		soul.ApplyRebirth(s.now)
		s.Require().Error(soul.CanRebirth(s.creator, false))
		s.Require().Error(soul.CanMerge(s.creator, false))
		s.True(soul.Status.IsTerminal())
	})

	s.Run("merge follows the same rules", func() {
		soul := s.newSoul()
		s.Require().NoError(soul.CanMerge(s.creator, false))
		s.Require().Error(soul.CanMerge(s.buyer, false))
		s.Require().Error(soul.CanMerge(s.creator, true))

		soul.ApplyMerged(s.now)
		s.Equal(models.StatusMerged, soul.Status)
	})
}

func (s *SoulSuite) TestPurchase() {
	s.Run("sale transfers ownership and ends the incarnation", func() {
		soul := s.newSoul()
		s.Require().NoError(soul.List(s.creator, 500, s.now))
		later := s.now.Add(time.Minute)

		s.Require().NoError(soul.CanPurchase(s.buyer))
		soul.ApplySale(s.buyer, later)

		s.Equal(s.buyer, soul.Owner)
		s.Equal(models.StatusDead, soul.Status)
		s.Equal(later, soul.DeathTime)
		s.Zero(soul.ListingPrice)
	})

	s.Run("unlisted souls are not purchasable", func() {
		soul := s.newSoul()
		s.Require().Error(soul.CanPurchase(s.buyer))
	})

	s.Run("purchased soul can be reborn by its new owner", func() {
		soul := s.newSoul()
		s.Require().NoError(soul.List(s.creator, 500, s.now))
		soul.ApplySale(s.buyer, s.now)

		s.Require().NoError(soul.CanRebirth(s.buyer, true))
	})
}

func (s *SoulSuite) TestCreditEarnings() {
	soul := s.newSoul()
	later := s.now.Add(time.Minute)

	soul.CreditEarnings(98, later)
	soul.CreditEarnings(50, later)

	s.Equal(uint64(148), soul.TotalEarnings)
	s.Equal(uint64(2), soul.WorkCount)
	s.Equal(later, soul.UpdatedAt)
}

func (s *SoulSuite) TestStatusGraph() {
	s.Run("listed is the only state that can return to alive", func() {
		s.True(models.StatusListed.CanTransitionTo(models.StatusAlive))
		s.False(models.StatusDead.CanTransitionTo(models.StatusAlive))
		s.False(models.StatusAlive.CanTransitionTo(models.StatusAlive))
	})

	s.Run("dead souls can only be reborn or merged", func() {
		s.True(models.StatusDead.CanTransitionTo(models.StatusReborn))
		s.True(models.StatusDead.CanTransitionTo(models.StatusMerged))
		s.False(models.StatusDead.CanTransitionTo(models.StatusListed))
		s.False(models.StatusDead.CanTransitionTo(models.StatusDead))
	})

	s.Run("live statuses", func() {
		s.True(models.StatusAlive.IsLive())
		s.True(models.StatusListed.IsLive())
		s.False(models.StatusDead.IsLive())
		s.False(models.StatusReborn.IsLive())
	})

	s.Run("parse round trip", func() {
		parsed, err := models.ParseStatus("LISTED")
		s.Require().NoError(err)
		s.Equal(models.StatusListed, parsed)

		_, err = models.ParseStatus("SLEEPING")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

		_, err = models.ParseStatus("")
		s.Require().Error(err)
	})
}
