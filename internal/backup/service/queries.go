package service

import (
	"context"

	"soulledger/internal/backup/models"
	id "soulledger/pkg/domain"
)

// GetBackups returns the soul's full history in index order, invalidated
// entries included.
func (s *Service) GetBackups(ctx context.Context, soulID id.SoulID) ([]*models.Backup, error) {
	if err := requireSoulID(soulID); err != nil {
		return nil, err
	}
	if _, err := s.registry.Get(ctx, soulID); err != nil {
		return nil, err
	}
	backups, err := s.backups.FindBySoul(ctx, soulID)
	if err != nil {
		return nil, wrapBackupErr(err)
	}
	return backups, nil
}

// ValidBackups returns the soul's recovery candidates in index order.
func (s *Service) ValidBackups(ctx context.Context, soulID id.SoulID) ([]*models.Backup, error) {
	if err := requireSoulID(soulID); err != nil {
		return nil, err
	}
	if _, err := s.registry.Get(ctx, soulID); err != nil {
		return nil, err
	}
	backups, err := s.backups.FindValid(ctx, soulID)
	if err != nil {
		return nil, wrapBackupErr(err)
	}
	return backups, nil
}

// GetCrossChain returns the soul's cross-chain audit records in index order.
func (s *Service) GetCrossChain(ctx context.Context, soulID id.SoulID) ([]*models.CrossChainBackup, error) {
	if err := requireSoulID(soulID); err != nil {
		return nil, err
	}
	if _, err := s.registry.Get(ctx, soulID); err != nil {
		return nil, err
	}
	records, err := s.backups.FindCrossChain(ctx, soulID)
	if err != nil {
		return nil, wrapBackupErr(err)
	}
	return records, nil
}

// GetRecovery returns one recovery request by id.
func (s *Service) GetRecovery(ctx context.Context, requestID id.RecoveryID) (*models.RecoveryRequest, error) {
	if err := requireRecoveryID(requestID); err != nil {
		return nil, err
	}
	request, err := s.recovery.FindRequest(ctx, requestID)
	if err != nil {
		return nil, wrapRecoveryErr(err)
	}
	return request, nil
}

// GetGuardians returns the soul's guardian set, the empty default when the
// owner never configured one.
func (s *Service) GetGuardians(ctx context.Context, soulID id.SoulID) (*models.Guardians, error) {
	if err := requireSoulID(soulID); err != nil {
		return nil, err
	}
	if _, err := s.registry.Get(ctx, soulID); err != nil {
		return nil, err
	}
	set, err := s.recovery.FindGuardians(ctx, soulID)
	if err != nil {
		return nil, wrapRecoveryErr(err)
	}
	return set, nil
}
