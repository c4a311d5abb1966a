package service

import (
	"context"

	registrymodels "soulledger/internal/registry/models"
	treasurymodels "soulledger/internal/treasury/models"
	id "soulledger/pkg/domain"
)

// Cross-slice ports. The marketplace orchestrates trades but never touches
// soul or account state directly: the registry stays the sole writer of souls
// and the treasury the sole mover of funds. Both join the marketplace's
// transaction through the context.

// Registry is the slice of the identity registry a settlement needs.
type Registry interface {
	Get(ctx context.Context, soulID id.SoulID) (*registrymodels.Soul, error)
	RecordSale(ctx context.Context, soulID id.SoulID, buyer id.Address) (*registrymodels.Sale, error)
	CreditEarnings(ctx context.Context, soulID id.SoulID, amount uint64) error
}

// Treasury moves internal funds. CanSettle simulates a batch without
// writing; Settle applies it under account locks.
type Treasury interface {
	CanSettle(ctx context.Context, moves []treasurymodels.Move) error
	Settle(ctx context.Context, moves []treasurymodels.Move) error
}
