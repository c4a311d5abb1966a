package events

import (
	"context"
	"time"

	id "soulledger/pkg/domain"
)

// EventCategory classifies ledger events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers ownership and fund movements. These form the
	// financial audit trail and require tamper-proof storage and long retention.
	// Examples: mints, purchases, fragment repayments, deposits.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to account safety and forensics.
	// These feed into alerting pipelines.
	// Examples: recovery workflow steps, guardian changes, account freezes.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine lifecycle activity useful for
	// indexers and operational visibility. These can be sampled.
	// Examples: listings, stakes, backups, pool updates.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic on every state-changing operation. Keep
// it transport-agnostic so stores and sinks can fan out; external observers
// (indexers, UIs) consume these rather than reading internal state.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	Kind      Kind
	// SoulID is the affected aggregate. Zero for account-level events.
	SoulID id.SoulID
	// Actor is the wallet that invoked the operation.
	Actor id.Address
	// Subject names the counterparty or secondary entity: the seller on a
	// purchase, the guardian on an approval, the debtor on a fragment.
	Subject string
	// Amount is the value moved, when the operation moves value.
	Amount uint64
	// Reference carries a secondary identifier: stake id, fragment index,
	// recovery request id, backup index, or target chain id.
	Reference string
	Reason    string
	RequestID string
}

// Kind names one state-changing operation.
type Kind string

const (
	// Registry events
	KindSoulMinted   Kind = "soul.minted"
	KindSoulListed   Kind = "soul.listed"
	KindSoulDelisted Kind = "soul.delisted"
	KindSoulDied     Kind = "soul.died"
	KindSoulReborn   Kind = "soul.reborn"
	KindSoulMerged   Kind = "soul.merged"

	// Marketplace events
	KindSoulPurchased         Kind = "soul.purchased"
	KindFragmentCreated       Kind = "fragment.created"
	KindFragmentRepaid        Kind = "fragment.repaid"
	KindGraveyardArchived     Kind = "graveyard.archived"
	KindGraveyardResurrected  Kind = "graveyard.resurrected"
	KindMarketplaceFeeUpdated Kind = "fee.market_updated"

	// Staking events
	KindStakeCreated      Kind = "stake.created"
	KindStakeResolved     Kind = "stake.resolved"
	KindPoolUpdated       Kind = "pool.updated"
	KindStakingFeeUpdated Kind = "fee.staking_updated"

	// Backup ledger events
	KindBackupCreated     Kind = "backup.created"
	KindCrossChainBackup  Kind = "backup.crosschain"
	KindRecoveryRequested Kind = "recovery.requested"
	KindRecoveryApproved  Kind = "recovery.approved"
	KindRecoveryExecuted  Kind = "recovery.executed"
	KindGuardianAdded     Kind = "guardian.added"
	KindGuardianRemoved   Kind = "guardian.removed"

	// Treasury events
	KindAccountDeposited Kind = "account.deposited"
	KindAccountWithdrawn Kind = "account.withdrawn"
	KindAccountFrozen    Kind = "account.frozen"
	KindAccountUnfrozen  Kind = "account.unfrozen"
)

// kindCategories maps each event kind to its category.
// Compliance: ownership and fund movements, long retention required.
// Security: recovery and account-safety actions, alerting integration.
// Operations: routine lifecycle activity, can be sampled.
var kindCategories = map[Kind]EventCategory{
	// Compliance events - the financial audit trail
	KindSoulMinted:           CategoryCompliance,
	KindSoulPurchased:        CategoryCompliance,
	KindSoulReborn:           CategoryCompliance,
	KindSoulMerged:           CategoryCompliance,
	KindFragmentRepaid:       CategoryCompliance,
	KindGraveyardResurrected: CategoryCompliance,
	KindAccountDeposited:     CategoryCompliance,
	KindAccountWithdrawn:     CategoryCompliance,

	// Security events - recovery workflow and account safety
	KindRecoveryRequested:     CategorySecurity,
	KindRecoveryApproved:      CategorySecurity,
	KindRecoveryExecuted:      CategorySecurity,
	KindGuardianAdded:         CategorySecurity,
	KindGuardianRemoved:       CategorySecurity,
	KindAccountFrozen:         CategorySecurity,
	KindAccountUnfrozen:       CategorySecurity,
	KindMarketplaceFeeUpdated: CategorySecurity,
	KindStakingFeeUpdated:     CategorySecurity,

	// Operations events - routine lifecycle, can be sampled
	KindSoulListed:        CategoryOperations,
	KindSoulDelisted:      CategoryOperations,
	KindSoulDied:          CategoryOperations,
	KindFragmentCreated:   CategoryOperations,
	KindGraveyardArchived: CategoryOperations,
	KindStakeCreated:      CategoryOperations,
	KindStakeResolved:     CategoryOperations,
	KindPoolUpdated:       CategoryOperations,
	KindBackupCreated:     CategoryOperations,
	KindCrossChainBackup:  CategoryOperations,
}

// Category returns the EventCategory for this event kind.
// Unknown kinds default to CategoryOperations.
func (k Kind) Category() EventCategory {
	if cat, ok := kindCategories[k]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists ledger events. The postgres implementation writes to the
// transactional outbox so event emission commits atomically with the state
// change that caused it.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySoul(ctx context.Context, soulID id.SoulID) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}
