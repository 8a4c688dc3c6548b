package escrow

import "time"

// Status is the lifecycle state of an escrow account. Transitions are
// PENDING_PAYMENT -> PENDING_CLAIM -> CLAIMED, with PENDING_PAYMENT and
// PENDING_CLAIM also able to terminate in EXPIRED or FAILED. Terminal states
// admit no further transitions.
type Status string

const (
	StatusPendingPayment Status = "PENDING_PAYMENT"
	StatusPendingClaim   Status = "PENDING_CLAIM"
	StatusClaimed        Status = "CLAIMED"
	StatusExpired        Status = "EXPIRED"
	StatusFailed         Status = "FAILED"
)

// AssetNative denotes the network's native asset; anything else is "CODE:ISSUER".
const AssetNative = "native"

// Account is a single-use custodial escrow account on the ledger. The sealed
// signing seed is owned exclusively by this record and is never logged or
// returned across the API boundary.
type Account struct {
	ID              string
	Address         string
	EncryptedSecret string
	FundingSource   string
	Amount          string
	Asset           string
	Status          Status

	// CredentialFingerprint is the one-way digest of the active claim
	// credential; empty until issuance. At most one is active per account.
	CredentialFingerprint string

	// Destination and ClaimedAt are set at commit point of a redemption and
	// cleared again if the sweep is rolled back.
	Destination string
	ClaimedAt   *time.Time

	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time

	Metadata map[string]string
}
