package escrow

import (
	"time"

	"github.com/claimlink/claimlink/internal/credential"
)

// CheckClaimable reports whether the account is eligible for credential
// verification or redemption at the given instant. The switch is closed over
// the lifecycle enum; an unrecognised status is rejected rather than ignored.
func CheckClaimable(account Account, now time.Time) error {
	switch account.Status {
	case StatusClaimed:
		return ErrAlreadyRedeemed
	case StatusExpired:
		// An expired escrow is indistinguishable from a revoked credential
		// to the holder: no longer claimable.
		return credential.ErrInvalid
	case StatusPendingPayment:
		return ErrNotFunded
	case StatusFailed:
		return ErrAccountFailed
	case StatusPendingClaim:
		if now.After(account.ExpiresAt) {
			return credential.ErrInvalid
		}
		return nil
	default:
		return ErrInvalidState
	}
}
