package escrow

import (
	"context"
	"testing"
	"time"

	"github.com/claimlink/claimlink/internal/credential"
	"github.com/claimlink/claimlink/internal/ledger"
	"github.com/claimlink/claimlink/internal/logging"
	"github.com/claimlink/claimlink/internal/secrets"
)

const testIssuer = "GBRPYHIL2CI3FNQ4BXLFMNDLFJUNPU2HY3ZMFSHONUCEOASW7QC7OX2H"

func newTestService(t *testing.T, autoFund bool) (*Service, Repository, ledger.Client, *credential.Codec) {
	t.Helper()
	client := ledger.NewInMemory()
	cipher, err := secrets.NewNaClCipher([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("build cipher: %v", err)
	}
	codec := credential.NewCodec([]byte("credential-secret"))
	repo := NewMemoryRepository()
	service := NewService(repo, client, cipher, codec, nil, logging.Discard(), autoFund)
	return service, repo, client, codec
}

func TestCreateIssuesOneTimeCredential(t *testing.T) {
	service, repo, _, codec := newTestService(t, false)
	ctx := context.Background()

	result, err := service.Create(ctx, CreateInput{Amount: "100", Asset: "native", TTL: time.Hour})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if result.Account.Amount != "100.0000000" {
		t.Fatalf("amount not normalized to 7-digit scale: %s", result.Account.Amount)
	}
	if result.Account.Status != StatusPendingPayment {
		t.Fatalf("expected PENDING_PAYMENT got %s", result.Account.Status)
	}
	if result.Credential == "" {
		t.Fatalf("missing claim credential")
	}

	claims, err := codec.Verify(result.Credential, credential.TypeClaim)
	if err != nil {
		t.Fatalf("issued credential does not verify: %v", err)
	}
	if claims.Address != result.Account.Address {
		t.Fatalf("credential bound to %s, account is %s", claims.Address, result.Account.Address)
	}

	stored, err := repo.GetByFingerprint(ctx, credential.Fingerprint(result.Credential))
	if err != nil {
		t.Fatalf("fingerprint lookup: %v", err)
	}
	if stored.ID != result.Account.ID {
		t.Fatalf("fingerprint resolves to wrong account")
	}
	if stored.EncryptedSecret == "" {
		t.Fatalf("signing seed not sealed")
	}
}

func TestCreateAutoFundPromotes(t *testing.T) {
	service, repo, client, _ := newTestService(t, true)
	ctx := context.Background()

	result, err := service.Create(ctx, CreateInput{Amount: "25.5000000", Asset: "native", TTL: time.Hour})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if result.Account.Status != StatusPendingClaim {
		t.Fatalf("expected PENDING_CLAIM got %s", result.Account.Status)
	}

	stored, err := repo.Get(ctx, result.Account.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != StatusPendingClaim {
		t.Fatalf("stored status %s", stored.Status)
	}

	balance, err := client.BalanceOf(ctx, result.Account.Address, "native")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != "25.5000000" {
		t.Fatalf("escrow not funded on ledger: %s", balance)
	}
}

func TestCreateRejectsBadInput(t *testing.T) {
	service, _, _, _ := newTestService(t, false)
	ctx := context.Background()

	cases := []CreateInput{
		{Amount: "", Asset: "native", TTL: time.Hour},
		{Amount: "-1", Asset: "native", TTL: time.Hour},
		{Amount: "0", Asset: "native", TTL: time.Hour},
		{Amount: "abc", Asset: "native", TTL: time.Hour},
		{Amount: "10", Asset: "USD", TTL: time.Hour},
		{Amount: "10", Asset: "USD:not-an-issuer", TTL: time.Hour},
		{Amount: "10", Asset: "TOOLONGASSETCODE:" + testIssuer, TTL: time.Hour},
	}
	for _, input := range cases {
		if _, err := service.Create(ctx, input); err == nil {
			t.Fatalf("expected rejection for %+v", input)
		}
	}
}

func TestNormalizeAmount(t *testing.T) {
	cases := map[string]string{
		"100":         "100.0000000",
		"100.5":       "100.5000000",
		"0.0000001":   "0.0000001",
		"100.0000000": "100.0000000",
	}
	for in, want := range cases {
		got, err := NormalizeAmount(in)
		if err != nil {
			t.Fatalf("normalize %q: %v", in, err)
		}
		if got != want {
			t.Fatalf("normalize %q: expected %q got %q", in, want, got)
		}
	}
}

func TestValidateAsset(t *testing.T) {
	if err := ValidateAsset("native"); err != nil {
		t.Fatalf("native: %v", err)
	}
	if err := ValidateAsset("USD:" + testIssuer); err != nil {
		t.Fatalf("credit asset: %v", err)
	}
	for _, asset := range []string{"", "USD", "USD:bogus", ":" + testIssuer, "US$:" + testIssuer} {
		if err := ValidateAsset(asset); err == nil {
			t.Fatalf("expected rejection for %q", asset)
		}
	}
}
