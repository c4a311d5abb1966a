package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"soulledger/internal/registry/models"
	"soulledger/internal/registry/service"
	lineagestore "soulledger/internal/registry/store/lineage"
	soulstore "soulledger/internal/registry/store/soul"
	id "soulledger/pkg/domain"
	dErrors "soulledger/pkg/domain-errors"
	"soulledger/pkg/platform/events"
	eventsmemory "soulledger/pkg/platform/events/store/memory"
	"soulledger/pkg/platform/events/publisher"
	"soulledger/pkg/requestcontext"
)

type RegistryServiceSuite struct {
	suite.Suite
	souls   *soulstore.InMemoryStore
	lineage *lineagestore.InMemoryStore
	events  *eventsmemory.InMemoryStore
	service *service.Service
	ctx     context.Context
	now     time.Time

	owner    id.Address
	agent    id.Address
	stranger id.Address
}

func TestRegistryServiceSuite(t *testing.T) {
	suite.Run(t, new(RegistryServiceSuite))
}

func (s *RegistryServiceSuite) SetupTest() {
	s.souls = soulstore.NewInMemoryStore()
	s.lineage = lineagestore.NewInMemoryStore()
	s.events = eventsmemory.NewInMemoryStore()
	s.service = service.New(s.souls, s.lineage,
		service.WithEvents(publisher.NewPublisher(s.events)),
	)

	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.owner = id.MustAddress("0x52908400098527886E0F7030069857D2E4169EE7")
	s.agent = id.MustAddress("0x8617E340B3D01FA5F11F306F4090FD50E238070D")
	s.stranger = id.MustAddress("0xde709f2102306220921060314715629080e2fb77")
}

func (s *RegistryServiceSuite) hash(n int) id.ContentHash {
	return id.MustContentHash(fmt.Sprintf("0x%064x", n))
}

func (s *RegistryServiceSuite) addr(n int) id.Address {
	return id.MustAddress(fmt.Sprintf("0x%040x", n))
}

func (s *RegistryServiceSuite) mint() *models.Soul {
	soul, err := s.service.Mint(s.ctx, s.agent, s.owner, "ipfs://QmDoc", s.hash(1))
	s.Require().NoError(err)
	return soul
}

func (s *RegistryServiceSuite) lastEvent() events.Event {
	recent, err := s.events.ListRecent(context.Background(), 1)
	s.Require().NoError(err)
	s.Require().NotEmpty(recent)
	return recent[0]
}

func (s *RegistryServiceSuite) TestMint() {
	s.Run("assigns sequential ids and emits", func() {
		soul := s.mint()
		s.Equal(id.SoulID(1), soul.ID)
		s.Equal(models.StatusAlive, soul.Status)
		s.Equal(s.owner, soul.Owner)
		s.Equal(s.now, soul.BirthTime)

		event := s.lastEvent()
		s.Equal(events.KindSoulMinted, event.Kind)
		s.Equal(soul.ID, event.SoulID)
		s.Equal(s.owner, event.Actor)
		s.Equal(s.now, event.Timestamp)
	})

	s.Run("rejects a second live soul per agent", func() {
		_, err := s.service.Mint(s.ctx, s.agent, s.owner, "ipfs://QmDoc", s.hash(2))
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		s.Contains(err.Error(), "live soul")
	})

	s.Run("rejects a reused content hash", func() {
		_, err := s.service.Mint(s.ctx, s.addr(5), s.owner, "ipfs://QmDoc", s.hash(1))
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		s.Contains(err.Error(), "content hash")
	})

	s.Run("frees the agent slot after death", func() {
		_, err := s.service.RecordDeath(s.ctx, s.owner, 1, 0, "wound down")
		s.Require().NoError(err)

		soul, err := s.service.Mint(s.ctx, s.agent, s.owner, "ipfs://QmDoc2", s.hash(3))
		s.Require().NoError(err)
		s.Equal(id.SoulID(2), soul.ID)
	})

	s.Run("requires a creator", func() {
		_, err := s.service.Mint(s.ctx, s.agent, "", "ipfs://QmDoc", s.hash(4))
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *RegistryServiceSuite) TestListingLifecycle() {
	soul := s.mint()

	s.Run("owner lists with reason on the event", func() {
		listed, err := s.service.List(s.ctx, s.owner, soul.ID, 500, "retiring the agent")
		s.Require().NoError(err)
		s.Equal(models.StatusListed, listed.Status)
		s.Equal(uint64(500), listed.ListingPrice)

		event := s.lastEvent()
		s.Equal(events.KindSoulListed, event.Kind)
		s.Equal(uint64(500), event.Amount)
		s.Equal("retiring the agent", event.Reason)
	})

	s.Run("stranger cannot delist", func() {
		_, err := s.service.Delist(s.ctx, s.stranger, soul.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("owner delists back to alive", func() {
		delisted, err := s.service.Delist(s.ctx, s.owner, soul.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusAlive, delisted.Status)
		s.Zero(delisted.ListingPrice)
		s.Equal(events.KindSoulDelisted, s.lastEvent().Kind)
	})

	s.Run("unknown soul is not found", func() {
		_, err := s.service.List(s.ctx, s.owner, 404, 500, "")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *RegistryServiceSuite) TestRecordDeath() {
	soul := s.mint()

	updated, err := s.service.RecordDeath(s.ctx, s.owner, soul.ID, 1200, "balance depleted")
	s.Require().NoError(err)
	s.Equal(models.StatusDead, updated.Status)
	s.Equal("balance depleted", updated.DeathCause)
	s.Equal(uint64(1200), updated.FinalBalance)

	event := s.lastEvent()
	s.Equal(events.KindSoulDied, event.Kind)
	s.Equal(uint64(1200), event.Amount)
	s.Equal("balance depleted", event.Reason)

	_, err = s.service.RecordDeath(s.ctx, s.owner, soul.ID, 0, "")
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *RegistryServiceSuite) TestRebirth() {
	s.Run("lenient mode rebirths a live soul", func() {
		soul := s.mint()
		next := s.addr(20)

		successor, err := s.service.Rebirth(s.ctx, s.owner, soul.ID, next, "ipfs://QmDoc2", s.hash(2))
		s.Require().NoError(err)
		s.Equal(id.SoulID(2), successor.ID)
		s.Equal(models.StatusAlive, successor.Status)
		s.Equal(s.owner, successor.Owner)

		old, err := s.service.Get(s.ctx, soul.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusReborn, old.Status)

		children, err := s.service.Lineage(s.ctx, soul.ID)
		s.Require().NoError(err)
		s.Equal([]id.SoulID{successor.ID}, children)

		event := s.lastEvent()
		s.Equal(events.KindSoulReborn, event.Kind)
		s.Equal(successor.ID, event.SoulID)
		s.Equal(soul.ID.String(), event.Reference)
	})

	s.Run("same agent can carry over to the successor", func() {
		soul, err := s.service.Mint(s.ctx, s.addr(30), s.owner, "ipfs://QmDoc3", s.hash(3))
		s.Require().NoError(err)

		successor, err := s.service.Rebirth(s.ctx, s.owner, soul.ID, s.addr(30), "ipfs://QmDoc4", s.hash(4))
		s.Require().NoError(err)

		live, err := s.service.GetByAgent(s.ctx, s.addr(30))
		s.Require().NoError(err)
		s.Equal(successor.ID, live.ID)
	})

	s.Run("only the owner can rebirth", func() {
		soul, err := s.service.Mint(s.ctx, s.addr(31), s.owner, "ipfs://QmDoc5", s.hash(5))
		s.Require().NoError(err)

		_, err = s.service.Rebirth(s.ctx, s.stranger, soul.ID, s.addr(32), "ipfs://QmDoc6", s.hash(6))
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

func (s *RegistryServiceSuite) TestStrictLifecycle() {
	strict := service.New(s.souls, s.lineage, service.WithStrictLifecycle(true))

	soul := s.mint()
	_, err := strict.Rebirth(s.ctx, s.owner, soul.ID, s.addr(40), "ipfs://QmDoc2", s.hash(2))
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	_, err = s.service.RecordDeath(s.ctx, s.owner, soul.ID, 0, "")
	s.Require().NoError(err)

	_, err = strict.Rebirth(s.ctx, s.owner, soul.ID, s.addr(40), "ipfs://QmDoc2", s.hash(2))
	s.Require().NoError(err)
}

func (s *RegistryServiceSuite) TestMerge() {
	first, err := s.service.Mint(s.ctx, s.addr(50), s.owner, "ipfs://QmA", s.hash(50))
	s.Require().NoError(err)
	second, err := s.service.Mint(s.ctx, s.addr(51), s.owner, "ipfs://QmB", s.hash(51))
	s.Require().NoError(err)

	s.Run("rejects self merge", func() {
		_, err := s.service.Merge(s.ctx, s.owner, first.ID, first.ID, s.addr(52), "ipfs://QmM", s.hash(52))
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("requires ownership of both", func() {
		_, err := s.service.Merge(s.ctx, s.stranger, first.ID, second.ID, s.addr(52), "ipfs://QmM", s.hash(52))
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("merges into one successor with two lineage edges", func() {
		merged, err := s.service.Merge(s.ctx, s.owner, first.ID, second.ID, s.addr(52), "ipfs://QmM", s.hash(52))
		s.Require().NoError(err)
		s.Equal(models.StatusAlive, merged.Status)

		for _, parent := range []id.SoulID{first.ID, second.ID} {
			got, err := s.service.Get(s.ctx, parent)
			s.Require().NoError(err)
			s.Equal(models.StatusMerged, got.Status)

			children, err := s.service.Lineage(s.ctx, parent)
			s.Require().NoError(err)
			s.Equal([]id.SoulID{merged.ID}, children)
		}

		event := s.lastEvent()
		s.Equal(events.KindSoulMerged, event.Kind)
		s.Equal(merged.ID, event.SoulID)
	})

	s.Run("merged souls admit no further transitions", func() {
		_, err := s.service.List(s.ctx, s.owner, first.ID, 100, "")
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func (s *RegistryServiceSuite) TestHistory() {
	// Chain: 1 -> 2 -> merged(4) <- 3
	first := s.mint()
	second, err := s.service.Rebirth(s.ctx, s.owner, first.ID, s.addr(60), "ipfs://Qm2", s.hash(60))
	s.Require().NoError(err)
	third, err := s.service.Mint(s.ctx, s.addr(61), s.owner, "ipfs://Qm3", s.hash(61))
	s.Require().NoError(err)
	merged, err := s.service.Merge(s.ctx, s.owner, second.ID, third.ID, s.addr(62), "ipfs://Qm4", s.hash(62))
	s.Require().NoError(err)

	ancestors, err := s.service.History(s.ctx, merged.ID)
	s.Require().NoError(err)

	ids := make([]id.SoulID, len(ancestors))
	for i, ancestor := range ancestors {
		ids[i] = ancestor.ID
	}
	// Nearest generation first: both parents, then the grandparent.
	s.Equal([]id.SoulID{second.ID, third.ID, first.ID}, ids)

	s.Run("root has no history", func() {
		ancestors, err := s.service.History(s.ctx, first.ID)
		s.Require().NoError(err)
		s.Empty(ancestors)
	})
}

func (s *RegistryServiceSuite) TestStats() {
	s.mint()
	second, err := s.service.Mint(s.ctx, s.addr(70), s.owner, "ipfs://Qm2", s.hash(70))
	s.Require().NoError(err)
	_, err = s.service.RecordDeath(s.ctx, s.owner, second.ID, 0, "")
	s.Require().NoError(err)

	stats, err := s.service.Stats(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, stats.TotalSouls)
	s.Equal(1, stats.ByStatus[models.StatusAlive])
	s.Equal(1, stats.ByStatus[models.StatusDead])
	s.Zero(stats.ByStatus[models.StatusListed])
}

func (s *RegistryServiceSuite) TestRecordSale() {
	soul := s.mint()
	_, err := s.service.List(s.ctx, s.owner, soul.ID, 500, "")
	s.Require().NoError(err)

	buyer := s.addr(80)
	sale, err := s.service.RecordSale(s.ctx, soul.ID, buyer)
	s.Require().NoError(err)
	s.Equal(s.owner, sale.Seller)
	s.Equal(uint64(500), sale.Price)
	s.Equal(buyer, sale.Soul.Owner)
	s.Equal(models.StatusDead, sale.Soul.Status)
	s.Zero(sale.Soul.ListingPrice)

	s.Run("second sale fails, nothing listed", func() {
		_, err := s.service.RecordSale(s.ctx, soul.ID, s.addr(81))
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func (s *RegistryServiceSuite) TestCreditEarnings() {
	soul := s.mint()

	s.Require().NoError(s.service.CreditEarnings(s.ctx, soul.ID, 98))
	s.Require().NoError(s.service.CreditEarnings(s.ctx, soul.ID, 2))
	s.Require().NoError(s.service.CreditEarnings(s.ctx, soul.ID, 0))

	got, err := s.service.Get(s.ctx, soul.ID)
	s.Require().NoError(err)
	s.Equal(uint64(100), got.TotalEarnings)
	s.Equal(uint64(2), got.WorkCount)
}
