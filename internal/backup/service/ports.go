package service

import (
	"context"

	registrymodels "soulledger/internal/registry/models"
	id "soulledger/pkg/domain"
)

// Registry is the slice of the identity registry the backup ledger needs.
// Ownership checks read soul state through it; the ledger never touches
// registry state directly, and the registry joins the backup transaction
// through the context.
type Registry interface {
	Get(ctx context.Context, soulID id.SoulID) (*registrymodels.Soul, error)
}
