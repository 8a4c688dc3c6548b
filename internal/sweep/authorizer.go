package sweep

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/stellar/go/strkey"
)

// ErrAuthorizationFailed wraps every authorizer failure uniformly: the
// orchestrator does not retry within a redemption attempt regardless of cause.
var ErrAuthorizationFailed = errors.New("sweep authorization failed")

// Authorization is the attestation permitting a sweep.
type Authorization struct {
	Authorized   bool
	Token        string
	AuthorizedAt time.Time
}

// Authorizer obtains authorization for a transfer before funds move. The
// local implementation below is a placeholder for an external authorization
// authority and is deliberately kept behind this interface.
type Authorizer interface {
	Authorize(ctx context.Context, source, destination string) (Authorization, error)
}

// LocalAuthorizer computes an HMAC-SHA256 attestation binding
// (source, destination, timestamp). Deterministic for identical inputs
// including the timestamp; the token is fixed-length hex.
type LocalAuthorizer struct {
	key []byte
	now func() time.Time
}

// NewLocalAuthorizer builds an authorizer keyed with the provided secret.
func NewLocalAuthorizer(key []byte) *LocalAuthorizer {
	return &LocalAuthorizer{key: key, now: time.Now}
}

// Authorize attests the transfer, rejecting malformed addresses.
func (a *LocalAuthorizer) Authorize(_ context.Context, source, destination string) (Authorization, error) {
	if !strkey.IsValidEd25519PublicKey(source) || !strkey.IsValidEd25519PublicKey(destination) {
		return Authorization{}, fmt.Errorf("%w: malformed address", ErrAuthorizationFailed)
	}

	ts := a.now().UTC()
	mac := hmac.New(sha256.New, a.key)
	fmt.Fprintf(mac, "%s|%s|%d", source, destination, ts.Unix())

	return Authorization{
		Authorized:   true,
		Token:        hex.EncodeToString(mac.Sum(nil)),
		AuthorizedAt: ts,
	}, nil
}
