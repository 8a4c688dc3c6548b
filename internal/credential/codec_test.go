package credential

import (
	"errors"
	"strings"
	"testing"
	"time"
)

const testAddress = "GBRPYHIL2CI3FNQ4BXLFMNDLFJUNPU2HY3ZMFSHONUCEOASW7QC7OX2H"

func TestIssueVerifyRoundTrip(t *testing.T) {
	codec := NewCodec([]byte("test-secret"))

	cred, err := codec.Issue(testAddress, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := codec.Verify(cred, TypeClaim)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Address != testAddress {
		t.Fatalf("expected address %s got %s", testAddress, claims.Address)
	}
	if claims.Type != TypeClaim {
		t.Fatalf("expected type %q got %q", TypeClaim, claims.Type)
	}
}

func TestVerifyExpiryBoundary(t *testing.T) {
	codec := NewCodec([]byte("test-secret"))
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	codec.now = func() time.Time { return issued }

	cred, err := codec.Issue(testAddress, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	// Exactly at expiry the credential is still accepted.
	codec.now = func() time.Time { return issued.Add(time.Hour) }
	if _, err := codec.Verify(cred, TypeClaim); err != nil {
		t.Fatalf("verify at expiry: %v", err)
	}

	codec.now = func() time.Time { return issued.Add(time.Hour + time.Second) }
	if _, err := codec.Verify(cred, TypeClaim); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired got %v", err)
	}
}

func TestVerifyWrongType(t *testing.T) {
	codec := NewCodec([]byte("test-secret"))
	cred, err := codec.Issue(testAddress, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := codec.Verify(cred, "refund"); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid got %v", err)
	}
}

func TestVerifyMalformed(t *testing.T) {
	codec := NewCodec([]byte("test-secret"))

	if _, err := codec.Verify("not-a-token", TypeClaim); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed got %v", err)
	}

	cred, err := codec.Issue(testAddress, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	other := NewCodec([]byte("different-secret"))
	if _, err := other.Verify(cred, TypeClaim); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for wrong key got %v", err)
	}
}

func TestFingerprintDeterministic(t *testing.T) {
	codec := NewCodec([]byte("test-secret"))
	cred, err := codec.Issue(testAddress, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	fp := Fingerprint(cred)
	if fp != Fingerprint(cred) {
		t.Fatalf("fingerprint not deterministic")
	}
	if len(fp) != 64 {
		t.Fatalf("expected 64 hex chars got %d", len(fp))
	}
	if strings.Contains(fp, ".") {
		t.Fatalf("fingerprint leaks token structure: %s", fp)
	}
	if Fingerprint(cred+"x") == fp {
		t.Fatalf("different credentials share a fingerprint")
	}
}
