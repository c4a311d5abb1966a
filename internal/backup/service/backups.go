package service

import (
	"context"
	"errors"
	"strconv"

	"soulledger/internal/backup/models"
	id "soulledger/pkg/domain"
	dErrors "soulledger/pkg/domain-errors"
	"soulledger/pkg/platform/sentinel"
	"soulledger/pkg/requestcontext"
)

// CreateBackup appends a content version to the soul's history. The caller
// must be the owner or an authorized backupper. Auto backups enforce the
// minimum interval since the previous entry; manual and critical backups
// bypass it. When valid history exceeds the retention cap the single oldest
// valid entry is invalidated in the same transaction.
func (s *Service) CreateBackup(ctx context.Context, caller id.Address, soulID id.SoulID, contentURI string, contentHash id.ContentHash, backupType models.BackupType, fingerprint string, earnings uint64) (*models.Backup, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if err := requireSoulID(soulID); err != nil {
		return nil, err
	}

	var backup *models.Backup
	// Spans the history, the guardian set and the registry, so the
	// transaction runs keyless and memory mode serializes globally.
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		now := requestcontext.Now(txCtx)

		soul, err := s.registry.Get(txCtx, soulID)
		if err != nil {
			return err
		}
		if err := s.requireWriter(txCtx, caller, soul); err != nil {
			return err
		}

		if backupType.RateLimited() {
			latest, err := s.backups.Latest(txCtx, soulID)
			switch {
			case err == nil:
				if since := now.Sub(latest.CreatedAt); since < s.minInterval {
					return dErrors.Newf(dErrors.CodeInvariantViolation, "auto backup too soon: %s since the last backup, minimum is %s", since, s.minInterval)
				}
			case errors.Is(err, sentinel.ErrNotFound):
				// first backup, nothing to space against
			default:
				return wrapBackupErr(err)
			}
		}

		created, err := models.NewBackup(soulID, contentURI, contentHash, backupType, fingerprint, earnings, now)
		if err != nil {
			return err
		}
		if err := s.backups.Append(txCtx, created); err != nil {
			return wrapBackupErr(err)
		}

		if err := s.enforceRetention(txCtx, soulID); err != nil {
			return err
		}
		if err := s.emitter.emitBackupCreated(txCtx, created, caller); err != nil {
			return err
		}
		backup = created
		return nil
	})
	if err != nil {
		s.metrics.IncrementBackup(backupType.String(), outcome(err))
		return nil, err
	}

	s.metrics.IncrementBackup(backup.Type.String(), "ok")
	return backup, nil
}

// enforceRetention invalidates the single oldest valid entry once valid
// history exceeds the cap. The entry stays queryable; only recovery stops
// offering it.
func (s *Service) enforceRetention(ctx context.Context, soulID id.SoulID) error {
	valid, err := s.backups.CountValid(ctx, soulID)
	if err != nil {
		return wrapBackupErr(err)
	}
	if valid <= s.maxHistory {
		return nil
	}

	oldest, err := s.backups.OldestValid(ctx, soulID)
	if err != nil {
		return wrapBackupErr(err)
	}
	_, err = s.backups.Execute(ctx, soulID, oldest.Index,
		func(backup *models.Backup) error { return backup.CanInvalidate() },
		func(backup *models.Backup) { backup.ApplyInvalidation() },
	)
	if err != nil {
		return wrapBackupErr(err)
	}
	s.metrics.IncrementInvalidation()
	return nil
}

// RecordCrossChainBackup appends an audit record asserting replication to
// another chain. The caller must be the owner or an authorized backupper; no
// replication or verification is performed.
func (s *Service) RecordCrossChainBackup(ctx context.Context, caller id.Address, soulID id.SoulID, targetChainID uint64, contentURI string, contentHash id.ContentHash) (*models.CrossChainBackup, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if err := requireSoulID(soulID); err != nil {
		return nil, err
	}

	var record *models.CrossChainBackup
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		soul, err := s.registry.Get(txCtx, soulID)
		if err != nil {
			return err
		}
		if err := s.requireWriter(txCtx, caller, soul); err != nil {
			return err
		}

		created, err := models.NewCrossChainBackup(soulID, targetChainID, contentURI, contentHash, requestcontext.Now(txCtx))
		if err != nil {
			return err
		}
		if err := s.backups.AppendCrossChain(txCtx, created); err != nil {
			return wrapBackupErr(err)
		}
		if err := s.emitter.emitCrossChainBackup(txCtx, created, caller); err != nil {
			return err
		}
		record = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementCrossChain(strconv.FormatUint(record.TargetChainID, 10))
	return record, nil
}
