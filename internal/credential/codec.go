package credential

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TypeClaim is the discriminator carried by claim credentials.
const TypeClaim = "claim"

var (
	// ErrMalformed indicates the credential failed structural or signature checks.
	ErrMalformed = errors.New("credential malformed")

	// ErrExpired indicates the credential's own expiry has passed.
	ErrExpired = errors.New("credential expired")

	// ErrInvalid indicates the credential decoded cleanly but is not usable:
	// wrong type, or no account is bound to it.
	ErrInvalid = errors.New("credential invalid")
)

// Claims is the payload embedded in a claim credential.
type Claims struct {
	Address string `json:"address"`
	Type    string `json:"type"`
	jwt.RegisteredClaims
}

// Codec issues and verifies claim credentials. Verification is stateless:
// storage eligibility is the caller's concern, keyed by Fingerprint.
type Codec struct {
	secret []byte
	now    func() time.Time
}

// NewCodec builds a codec signing with the provided secret.
func NewCodec(secret []byte) *Codec {
	return &Codec{secret: secret, now: time.Now}
}

// Issue produces a signed credential binding the escrow's public identity for ttl.
func (c *Codec) Issue(address string, ttl time.Duration) (string, error) {
	now := c.now().UTC()
	claims := Claims{
		Address: address,
		Type:    TypeClaim,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// Verify checks signature, expiry and type, returning the decoded claims.
// A credential presented exactly at its expiry instant is still accepted.
func (c *Codec) Verify(credential, expectedType string) (Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(credential, &claims, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithoutClaimsValidation())
	if err != nil {
		return Claims{}, ErrMalformed
	}

	if claims.ExpiresAt == nil || c.now().UTC().After(claims.ExpiresAt.Time) {
		return Claims{}, ErrExpired
	}

	if claims.Type != expectedType || claims.Address == "" {
		return Claims{}, ErrInvalid
	}

	return claims, nil
}

// Fingerprint returns the one-way digest stored in place of the credential.
// The same digest is used at issuance and lookup; it is never reversible.
func Fingerprint(credential string) string {
	sum := sha256.Sum256([]byte(credential))
	return hex.EncodeToString(sum[:])
}
