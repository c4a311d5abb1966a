package models_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"soulledger/internal/treasury/models"
	id "soulledger/pkg/domain"
	dErrors "soulledger/pkg/domain-errors"
)

type AccountSuite struct {
	suite.Suite
	address id.Address
	now     time.Time
}

func TestAccountSuite(t *testing.T) {
	suite.Run(t, new(AccountSuite))
}

func (s *AccountSuite) SetupTest() {
	s.address = id.MustAddress("0x52908400098527886E0F7030069857D2E4169EE7")
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func (s *AccountSuite) newAccount(balance uint64) *models.Account {
	account, err := models.NewAccount(s.address, s.now)
	s.Require().NoError(err)
	account.Balance = balance
	return account
}

func (s *AccountSuite) TestConstructionInvariants() {
	s.Run("rejects empty address", func() {
		_, err := models.NewAccount("", s.now)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("starts unfrozen with zero balance", func() {
		account, err := models.NewAccount(s.address, s.now)
		s.Require().NoError(err)
		s.Equal(uint64(0), account.Balance)
		s.False(account.Frozen)
		s.Equal(s.now, account.CreatedAt)
	})

	s.Run("accepts reserved ledger addresses", func() {
		account, err := models.NewAccount(id.EscrowAddress, s.now)
		s.Require().NoError(err)
		s.Equal(id.EscrowAddress, account.Address)
	})
}

func (s *AccountSuite) TestDebit() {
	s.Run("subtracts from balance", func() {
		account := s.newAccount(100)
		later := s.now.Add(time.Minute)

		s.Require().NoError(account.Debit(40, later))
		s.Equal(uint64(60), account.Balance)
		s.Equal(later, account.UpdatedAt)
	})

	s.Run("rejects insufficient balance", func() {
		account := s.newAccount(10)
		err := account.Debit(11, s.now)
		s.Require().Error(err)
		s.Contains(err.Error(), "insufficient balance")
		s.Equal(uint64(10), account.Balance)
	})

	s.Run("rejects zero amount", func() {
		account := s.newAccount(10)
		s.Require().Error(account.CanDebit(0))
	})

	s.Run("allows draining to exactly zero", func() {
		account := s.newAccount(10)
		s.Require().NoError(account.Debit(10, s.now))
		s.Equal(uint64(0), account.Balance)
	})

	s.Run("frozen account cannot send", func() {
		account := s.newAccount(100)
		s.Require().NoError(account.Freeze(s.now))

		err := account.CanDebit(1)
		s.Require().Error(err)
		s.Contains(err.Error(), "frozen")
	})
}

func (s *AccountSuite) TestCredit() {
	s.Run("adds to balance", func() {
		account := s.newAccount(5)
		s.Require().NoError(account.Credit(7, s.now))
		s.Equal(uint64(12), account.Balance)
	})

	s.Run("rejects balances beyond the bigint cap", func() {
		account := s.newAccount(models.MaxBalance - 1)
		err := account.CanCredit(2)
		s.Require().Error(err)
		s.Contains(err.Error(), "overflow")

		s.Require().NoError(account.CanCredit(1))

		err = account.CanCredit(math.MaxUint64)
		s.Require().Error(err)
	})

	s.Run("rejects zero amount", func() {
		account := s.newAccount(0)
		s.Require().Error(account.CanCredit(0))
	})

	s.Run("frozen account cannot receive", func() {
		account := s.newAccount(0)
		s.Require().NoError(account.Freeze(s.now))

		err := account.CanCredit(1)
		s.Require().Error(err)
		s.Contains(err.Error(), "frozen")
	})
}

func (s *AccountSuite) TestFreezeTransitions() {
	s.Run("freeze then unfreeze restores spending", func() {
		account := s.newAccount(50)

		s.Require().NoError(account.Freeze(s.now))
		s.True(account.Frozen)
		s.Require().Error(account.CanDebit(1))

		s.Require().NoError(account.Unfreeze(s.now.Add(time.Hour)))
		s.False(account.Frozen)
		s.Require().NoError(account.CanDebit(1))
	})

	s.Run("freezing twice fails", func() {
		account := s.newAccount(0)
		s.Require().NoError(account.Freeze(s.now))
		s.Require().Error(account.Freeze(s.now))
	})

	s.Run("unfreezing an unfrozen account fails", func() {
		account := s.newAccount(0)
		s.Require().Error(account.Unfreeze(s.now))
	})
}

func (s *AccountSuite) TestClone() {
	account := s.newAccount(100)
	copied := account.Clone()

	copied.Balance = 1
	copied.Frozen = true

	s.Equal(uint64(100), account.Balance)
	s.False(account.Frozen)
}

func (s *AccountSuite) TestMoveValidate() {
	other := id.MustAddress("0x8617E340B3D01FA5F11F306F4090FD50E238070D")

	s.Run("accepts a regular leg", func() {
		s.Require().NoError(models.Move{From: s.address, To: other, Amount: 1}.Validate())
	})

	s.Run("accepts payer equal to payee", func() {
		s.Require().NoError(models.Move{From: s.address, To: s.address, Amount: 5}.Validate())
	})

	s.Run("rejects missing addresses and zero amounts", func() {
		s.Require().Error(models.Move{To: other, Amount: 1}.Validate())
		s.Require().Error(models.Move{From: s.address, Amount: 1}.Validate())
		s.Require().Error(models.Move{From: s.address, To: other}.Validate())
	})
}
