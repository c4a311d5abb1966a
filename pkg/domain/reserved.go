package domain

// Reserved ledger-internal account addresses. They deliberately do not
// match the 0x wallet form, so ParseAddress can never produce them and no
// external caller can deposit to, withdraw from, or list souls under them.
const (
	// EscrowAddress holds staked funds between placement and resolution.
	EscrowAddress Address = "ledger:escrow"

	// PlatformAddress accumulates staking platform fees.
	PlatformAddress Address = "ledger:platform"
)

// IsReserved reports whether a is a ledger-internal account address.
func IsReserved(a Address) bool {
	return a == EscrowAddress || a == PlatformAddress
}
