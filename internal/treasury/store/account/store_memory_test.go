package account_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"soulledger/internal/treasury/models"
	accountstore "soulledger/internal/treasury/store/account"
	id "soulledger/pkg/domain"
	dErrors "soulledger/pkg/domain-errors"
	"soulledger/pkg/platform/sentinel"
	"soulledger/pkg/requestcontext"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *accountstore.InMemoryStore
	ctx   context.Context
	now   time.Time
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = accountstore.NewInMemoryStore()
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func (s *InMemoryStoreSuite) addr(n byte) id.Address {
	return id.MustAddress(fmt.Sprintf("0x%040x", n))
}

func (s *InMemoryStoreSuite) credit(address id.Address, amount uint64) {
	err := s.store.ExecuteBatch(s.ctx, []id.Address{address},
		func(accounts map[id.Address]*models.Account) error {
			return accounts[address].CanCredit(amount)
		},
		func(accounts map[id.Address]*models.Account) {
			accounts[address].ApplyCredit(amount, s.now)
		},
	)
	s.Require().NoError(err)
}

func (s *InMemoryStoreSuite) TestFindUnknown() {
	_, err := s.store.Find(s.ctx, s.addr(1))
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestBatchMaterializesMissingAccounts() {
	s.credit(s.addr(1), 100)

	got, err := s.store.Find(s.ctx, s.addr(1))
	s.Require().NoError(err)
	s.Equal(uint64(100), got.Balance)
	s.Equal(s.now, got.CreatedAt)
	s.False(got.Frozen)
}

func (s *InMemoryStoreSuite) TestValidationFailureWritesNothing() {
	s.credit(s.addr(1), 50)

	from, to := s.addr(1), s.addr(2)
	err := s.store.ExecuteBatch(s.ctx, []id.Address{from, to},
		func(accounts map[id.Address]*models.Account) error {
			return accounts[from].CanDebit(100)
		},
		func(accounts map[id.Address]*models.Account) {
			accounts[from].ApplyDebit(100, s.now)
			accounts[to].ApplyCredit(100, s.now)
		},
	)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	got, err := s.store.Find(s.ctx, from)
	s.Require().NoError(err)
	s.Equal(uint64(50), got.Balance)

	// The destination was only materialized, never persisted.
	_, err = s.store.Find(s.ctx, to)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestBatchMovesFunds() {
	s.credit(s.addr(1), 100)

	from, to := s.addr(1), s.addr(2)
	err := s.store.ExecuteBatch(s.ctx, []id.Address{from, to},
		func(accounts map[id.Address]*models.Account) error {
			return accounts[from].CanDebit(30)
		},
		func(accounts map[id.Address]*models.Account) {
			accounts[from].ApplyDebit(30, s.now)
			accounts[to].ApplyCredit(30, s.now)
		},
	)
	s.Require().NoError(err)

	fromAcct, err := s.store.Find(s.ctx, from)
	s.Require().NoError(err)
	s.Equal(uint64(70), fromAcct.Balance)

	toAcct, err := s.store.Find(s.ctx, to)
	s.Require().NoError(err)
	s.Equal(uint64(30), toAcct.Balance)
}

func (s *InMemoryStoreSuite) TestDuplicateAddressesCollapse() {
	address := s.addr(1)
	err := s.store.ExecuteBatch(s.ctx, []id.Address{address, address},
		func(accounts map[id.Address]*models.Account) error {
			s.Len(accounts, 1)
			return nil
		},
		func(accounts map[id.Address]*models.Account) {
			accounts[address].ApplyCredit(10, s.now)
		},
	)
	s.Require().NoError(err)

	got, err := s.store.Find(s.ctx, address)
	s.Require().NoError(err)
	s.Equal(uint64(10), got.Balance)
}

func (s *InMemoryStoreSuite) TestReadsAreCopies() {
	s.credit(s.addr(1), 10)

	got, err := s.store.Find(s.ctx, s.addr(1))
	s.Require().NoError(err)
	got.Balance = 0

	again, err := s.store.Find(s.ctx, s.addr(1))
	s.Require().NoError(err)
	s.Equal(uint64(10), again.Balance)
}

func (s *InMemoryStoreSuite) TestCount() {
	s.credit(s.addr(1), 1)
	s.credit(s.addr(2), 1)

	err := s.store.ExecuteBatch(s.ctx, []id.Address{s.addr(2)},
		func(accounts map[id.Address]*models.Account) error {
			return accounts[s.addr(2)].CanFreeze()
		},
		func(accounts map[id.Address]*models.Account) {
			accounts[s.addr(2)].ApplyFreeze(s.now)
		},
	)
	s.Require().NoError(err)

	total, frozen, err := s.store.Count(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, total)
	s.Equal(1, frozen)
}
