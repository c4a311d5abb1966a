package models_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"soulledger/internal/market/models"
	id "soulledger/pkg/domain"
	dErrors "soulledger/pkg/domain-errors"
)

type GraveyardEntrySuite struct {
	suite.Suite
	now time.Time
}

func TestGraveyardEntrySuite(t *testing.T) {
	suite.Run(t, new(GraveyardEntrySuite))
}

func (s *GraveyardEntrySuite) SetupTest() {
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func (s *GraveyardEntrySuite) TestConstruction() {
	entry, err := models.NewGraveyardEntry(7, 500, s.now)
	s.Require().NoError(err)
	s.Equal(id.SoulID(7), entry.SoulID)
	s.Equal(uint64(500), entry.FinalBalance)
	s.True(entry.Resurrectable)
	s.Equal(s.now, entry.ArchivedAt)

	_, err = models.NewGraveyardEntry(0, 500, s.now)
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func (s *GraveyardEntrySuite) TestResurrectExactlyOnce() {
	entry, err := models.NewGraveyardEntry(7, 500, s.now)
	s.Require().NoError(err)

	s.Require().NoError(entry.Resurrect())
	s.False(entry.Resurrectable)

	err = entry.Resurrect()
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *GraveyardEntrySuite) TestClone() {
	entry, err := models.NewGraveyardEntry(7, 500, s.now)
	s.Require().NoError(err)

	copied := entry.Clone()
	copied.ApplyResurrection()
	s.True(entry.Resurrectable)
}
