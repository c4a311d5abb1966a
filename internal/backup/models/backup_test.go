package models_test

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"soulledger/internal/backup/models"
	id "soulledger/pkg/domain"
	dErrors "soulledger/pkg/domain-errors"
)

type BackupSuite struct {
	suite.Suite
	now  time.Time
	hash id.ContentHash
}

func TestBackupSuite(t *testing.T) {
	suite.Run(t, new(BackupSuite))
}

func (s *BackupSuite) SetupTest() {
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.hash = id.MustContentHash(fmt.Sprintf("0x%064x", 1))
}

func (s *BackupSuite) TestNewBackup() {
	backup, err := models.NewBackup(1, "ipfs://QmSnap", s.hash, models.TypeManual, "fp:v1", 500, s.now)
	s.Require().NoError(err)

	s.Equal(models.TypeManual, backup.Type)
	s.Equal(uint64(500), backup.EarningsAtBackup)
	s.True(backup.IsValid)
	s.Zero(backup.Index)
}

func (s *BackupSuite) TestNewBackupInvariants() {
	cases := []struct {
		name        string
		soulID      id.SoulID
		contentURI  string
		hash        id.ContentHash
		backupType  models.BackupType
		fingerprint string
	}{
		{"empty soul id", 0, "ipfs://QmSnap", s.hash, models.TypeAuto, ""},
		{"empty content URI", 1, "", s.hash, models.TypeAuto, ""},
		{"oversized content URI", 1, strings.Repeat("u", models.MaxContentURILen+1), s.hash, models.TypeAuto, ""},
		{"empty content hash", 1, "ipfs://QmSnap", "", models.TypeAuto, ""},
		{"unknown type", 1, "ipfs://QmSnap", s.hash, models.BackupType("hourly"), ""},
		{"oversized fingerprint", 1, "ipfs://QmSnap", s.hash, models.TypeAuto, strings.Repeat("f", models.MaxFingerprintLen+1)},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			_, err := models.NewBackup(tc.soulID, tc.contentURI, tc.hash, tc.backupType, tc.fingerprint, 0, s.now)
			s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
		})
	}
}

func (s *BackupSuite) TestInvalidateExactlyOnce() {
	backup, err := models.NewBackup(1, "ipfs://QmSnap", s.hash, models.TypeAuto, "", 0, s.now)
	s.Require().NoError(err)

	s.Require().NoError(backup.CanInvalidate())
	backup.ApplyInvalidation()
	s.False(backup.IsValid)

	err = backup.CanInvalidate()
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *BackupSuite) TestParseBackupType() {
	for _, raw := range []string{"auto", "manual", "critical"} {
		parsed, err := models.ParseBackupType(raw)
		s.Require().NoError(err)
		s.Equal(raw, parsed.String())
	}

	_, err := models.ParseBackupType("hourly")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

	s.True(models.TypeAuto.RateLimited())
	s.False(models.TypeManual.RateLimited())
	s.False(models.TypeCritical.RateLimited())
}
