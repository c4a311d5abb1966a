package service

import (
	"context"

	registrymodels "soulledger/internal/registry/models"
	treasurymodels "soulledger/internal/treasury/models"
	id "soulledger/pkg/domain"
)

// Cross-slice ports. The prediction market reads soul status through the
// registry and moves funds through the treasury; it never touches either
// slice's state directly. Both join the staking transaction through the
// context.

// Registry is the slice of the identity registry a wager needs.
type Registry interface {
	Get(ctx context.Context, soulID id.SoulID) (*registrymodels.Soul, error)
}

// Treasury moves internal funds. CanSettle simulates a batch without
// writing; Settle applies it under account locks.
type Treasury interface {
	CanSettle(ctx context.Context, moves []treasurymodels.Move) error
	Settle(ctx context.Context, moves []treasurymodels.Move) error
}

// OddsCache serves survival odds reads without hitting the stores. A nil
// cache disables caching; cache failures degrade to store reads.
type OddsCache interface {
	Get(ctx context.Context, soulID id.SoulID) (uint64, bool, error)
	Set(ctx context.Context, soulID id.SoulID, odds uint64) error
	Invalidate(ctx context.Context, soulID id.SoulID) error
}
