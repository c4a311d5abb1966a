package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"soulledger/internal/treasury/models"
	"soulledger/internal/treasury/service"
	accountstore "soulledger/internal/treasury/store/account"
	id "soulledger/pkg/domain"
	dErrors "soulledger/pkg/domain-errors"
	"soulledger/pkg/platform/events"
	eventsmemory "soulledger/pkg/platform/events/store/memory"
	"soulledger/pkg/platform/events/publisher"
	"soulledger/pkg/requestcontext"
)

type TreasuryServiceSuite struct {
	suite.Suite
	accounts *accountstore.InMemoryStore
	events   *eventsmemory.InMemoryStore
	service  *service.Service
	ctx      context.Context
	now      time.Time

	admin id.Address
	alice id.Address
	bob   id.Address
}

func TestTreasuryServiceSuite(t *testing.T) {
	suite.Run(t, new(TreasuryServiceSuite))
}

func (s *TreasuryServiceSuite) SetupTest() {
	s.accounts = accountstore.NewInMemoryStore()
	s.events = eventsmemory.NewInMemoryStore()
	s.service = service.New(s.accounts,
		service.WithEvents(publisher.NewPublisher(s.events)),
	)

	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.admin = id.MustAddress("0x52908400098527886E0F7030069857D2E4169EE7")
	s.alice = id.MustAddress("0x8617E340B3D01FA5F11F306F4090FD50E238070D")
	s.bob = id.MustAddress("0xde709f2102306220921060314715629080e2fb77")
}

func (s *TreasuryServiceSuite) deposit(address id.Address, amount uint64) *models.Account {
	account, err := s.service.Deposit(s.ctx, s.admin, address, amount)
	s.Require().NoError(err)
	return account
}

func (s *TreasuryServiceSuite) lastEvent() events.Event {
	recent, err := s.events.ListRecent(context.Background(), 1)
	s.Require().NoError(err)
	s.Require().NotEmpty(recent)
	return recent[0]
}

func (s *TreasuryServiceSuite) TestDeposit() {
	s.Run("creates the account and emits", func() {
		account := s.deposit(s.alice, 100)
		s.Equal(uint64(100), account.Balance)
		s.Equal(s.now, account.CreatedAt)

		event := s.lastEvent()
		s.Equal(events.KindAccountDeposited, event.Kind)
		s.Equal(s.admin, event.Actor)
		s.Equal(s.alice.String(), event.Subject)
		s.Equal(uint64(100), event.Amount)
	})

	s.Run("accumulates", func() {
		account := s.deposit(s.alice, 50)
		s.Equal(uint64(150), account.Balance)
	})

	s.Run("zero amount rejected", func() {
		_, err := s.service.Deposit(s.ctx, s.admin, s.alice, 0)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("missing caller unauthorized", func() {
		_, err := s.service.Deposit(s.ctx, "", s.alice, 10)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *TreasuryServiceSuite) TestWithdraw() {
	s.deposit(s.alice, 100)

	s.Run("debits the caller and emits", func() {
		account, err := s.service.Withdraw(s.ctx, s.alice, 40)
		s.Require().NoError(err)
		s.Equal(uint64(60), account.Balance)

		event := s.lastEvent()
		s.Equal(events.KindAccountWithdrawn, event.Kind)
		s.Equal(s.alice, event.Actor)
		s.Equal(uint64(40), event.Amount)
	})

	s.Run("insufficient balance rejected", func() {
		_, err := s.service.Withdraw(s.ctx, s.alice, 61)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
		s.Contains(err.Error(), "insufficient balance")
	})

	s.Run("unknown account holds nothing", func() {
		_, err := s.service.Withdraw(s.ctx, s.bob, 1)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))

		// The failed withdrawal must not have created the account.
		account, err := s.service.Balance(s.ctx, s.bob)
		s.Require().NoError(err)
		s.Equal(uint64(0), account.Balance)
	})
}

func (s *TreasuryServiceSuite) TestFreezeLifecycle() {
	s.deposit(s.alice, 100)

	s.Run("freeze blocks funds movement", func() {
		account, err := s.service.Freeze(s.ctx, s.admin, s.alice)
		s.Require().NoError(err)
		s.True(account.Frozen)
		s.Equal(events.KindAccountFrozen, s.lastEvent().Kind)

		_, err = s.service.Withdraw(s.ctx, s.alice, 10)
		s.Require().Error(err)
		s.Contains(err.Error(), "frozen")

		_, err = s.service.Deposit(s.ctx, s.admin, s.alice, 10)
		s.Require().Error(err)
	})

	s.Run("double freeze conflicts", func() {
		_, err := s.service.Freeze(s.ctx, s.admin, s.alice)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("unfreeze restores movement", func() {
		account, err := s.service.Unfreeze(s.ctx, s.admin, s.alice)
		s.Require().NoError(err)
		s.False(account.Frozen)
		s.Equal(events.KindAccountUnfrozen, s.lastEvent().Kind)

		_, err = s.service.Withdraw(s.ctx, s.alice, 10)
		s.Require().NoError(err)
	})

	s.Run("unfreezing an unknown account conflicts without creating it", func() {
		_, err := s.service.Unfreeze(s.ctx, s.admin, s.bob)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("freezing an unknown account creates it", func() {
		account, err := s.service.Freeze(s.ctx, s.admin, s.bob)
		s.Require().NoError(err)
		s.True(account.Frozen)
		s.Equal(uint64(0), account.Balance)
	})
}

func (s *TreasuryServiceSuite) TestBalanceReads() {
	s.Run("unknown address reads as zero", func() {
		account, err := s.service.Balance(s.ctx, s.alice)
		s.Require().NoError(err)
		s.Equal(uint64(0), account.Balance)
		s.False(account.Frozen)
	})

	s.Run("reserved accounts readable", func() {
		escrow, err := s.service.EscrowBalance(s.ctx)
		s.Require().NoError(err)
		s.Equal(id.EscrowAddress, escrow.Address)

		platform, err := s.service.PlatformBalance(s.ctx)
		s.Require().NoError(err)
		s.Equal(id.PlatformAddress, platform.Address)
	})
}

func (s *TreasuryServiceSuite) TestTransfer() {
	s.deposit(s.alice, 100)

	s.Run("moves funds", func() {
		err := s.service.Transfer(s.ctx, s.alice, s.bob, 30)
		s.Require().NoError(err)

		from, err := s.service.Balance(s.ctx, s.alice)
		s.Require().NoError(err)
		s.Equal(uint64(70), from.Balance)

		to, err := s.service.Balance(s.ctx, s.bob)
		s.Require().NoError(err)
		s.Equal(uint64(30), to.Balance)
	})

	s.Run("insufficient funds leaves both untouched", func() {
		err := s.service.Transfer(s.ctx, s.alice, s.bob, 71)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))

		from, err := s.service.Balance(s.ctx, s.alice)
		s.Require().NoError(err)
		s.Equal(uint64(70), from.Balance)
	})
}

func (s *TreasuryServiceSuite) TestSettle() {
	s.deposit(s.alice, 100)

	s.Run("later legs spend earlier receipts", func() {
		moves := []models.Move{
			{From: s.alice, To: id.EscrowAddress, Amount: 100},
			{From: id.EscrowAddress, To: s.bob, Amount: 98},
			{From: id.EscrowAddress, To: id.PlatformAddress, Amount: 2},
		}
		s.Require().NoError(s.service.CanSettle(s.ctx, moves))
		s.Require().NoError(s.service.Settle(s.ctx, moves))

		bob, err := s.service.Balance(s.ctx, s.bob)
		s.Require().NoError(err)
		s.Equal(uint64(98), bob.Balance)

		platform, err := s.service.PlatformBalance(s.ctx)
		s.Require().NoError(err)
		s.Equal(uint64(2), platform.Balance)

		escrow, err := s.service.EscrowBalance(s.ctx)
		s.Require().NoError(err)
		s.Equal(uint64(0), escrow.Balance)
	})

	s.Run("one bad leg aborts the whole batch", func() {
		s.deposit(s.alice, 10)
		err := s.service.Settle(s.ctx, []models.Move{
			{From: s.alice, To: s.bob, Amount: 5},
			{From: s.alice, To: s.bob, Amount: 6},
		})
		s.Require().Error(err)

		alice, err := s.service.Balance(s.ctx, s.alice)
		s.Require().NoError(err)
		s.Equal(uint64(10), alice.Balance)
	})

	s.Run("frozen destination rejects the batch", func() {
		_, err := s.service.Freeze(s.ctx, s.admin, s.bob)
		s.Require().NoError(err)

		err = s.service.Settle(s.ctx, []models.Move{
			{From: s.alice, To: s.bob, Amount: 1},
		})
		s.Require().Error(err)
		s.Contains(err.Error(), "frozen")

		err = s.service.CanSettle(s.ctx, []models.Move{
			{From: s.alice, To: s.bob, Amount: 1},
		})
		s.Require().Error(err)
	})

	s.Run("settlement emits no event", func() {
		before, err := s.events.ListRecent(context.Background(), 100)
		s.Require().NoError(err)

		s.Require().NoError(s.service.Transfer(s.ctx, s.alice, id.EscrowAddress, 1))

		after, err := s.events.ListRecent(context.Background(), 100)
		s.Require().NoError(err)
		s.Len(after, len(before))
	})

	s.Run("can settle reports without writing", func() {
		alice, err := s.service.Balance(s.ctx, s.alice)
		s.Require().NoError(err)

		s.Require().NoError(s.service.CanSettle(s.ctx, []models.Move{
			{From: s.alice, To: id.EscrowAddress, Amount: alice.Balance},
		}))

		again, err := s.service.Balance(s.ctx, s.alice)
		s.Require().NoError(err)
		s.Equal(alice.Balance, again.Balance)
	})
}
