package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stellar/go/clients/horizonclient"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/txnbuild"
)

// HorizonClient talks to a Stellar Horizon server.
type HorizonClient struct {
	client     *horizonclient.Client
	passphrase string
	funding    *keypair.Full
}

// NewHorizonClient configures a Horizon-backed ledger client. fundingSeed is
// optional; without it FundNewAccount is unavailable.
func NewHorizonClient(horizonURL, networkPassphrase, fundingSeed string) (*HorizonClient, error) {
	if horizonURL == "" {
		return nil, fmt.Errorf("horizon url is required")
	}
	if networkPassphrase == "" {
		return nil, fmt.Errorf("network passphrase is required")
	}
	c := &HorizonClient{
		client:     &horizonclient.Client{HorizonURL: horizonURL},
		passphrase: networkPassphrase,
	}
	if fundingSeed != "" {
		kp, err := keypair.ParseFull(fundingSeed)
		if err != nil {
			return nil, fmt.Errorf("parse funding seed: %w", err)
		}
		c.funding = kp
	}
	return c, nil
}

// GenerateIdentity creates a fresh ed25519 keypair.
func (c *HorizonClient) GenerateIdentity() (string, string, error) {
	kp, err := keypair.Random()
	if err != nil {
		return "", "", err
	}
	return kp.Address(), kp.Seed(), nil
}

// FundNewAccount creates the escrow account on the ledger from the funding source.
// Only native-asset escrows can be created this way; credit-asset escrows need
// a trustline established by the escrow key first.
func (c *HorizonClient) FundNewAccount(ctx context.Context, address, amountStr, asset string, _ time.Time) (string, error) {
	if c.funding == nil {
		return "", fmt.Errorf("%w: no funding source configured", ErrTransferFailed)
	}
	if asset != "native" {
		return "", fmt.Errorf("%w: funding non-native escrows requires a trustline", ErrTransferFailed)
	}
	op := &txnbuild.CreateAccount{
		Destination: address,
		Amount:      amountStr,
	}
	return c.submit(ctx, c.funding, op)
}

// Transfer submits a single payment from the seed's account to destination.
func (c *HorizonClient) Transfer(ctx context.Context, seed, destination, amountStr, asset string) (TransferResult, error) {
	kp, err := keypair.ParseFull(seed)
	if err != nil {
		return TransferResult{}, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	txAsset, err := buildAsset(asset)
	if err != nil {
		return TransferResult{}, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	op := &txnbuild.Payment{
		Destination: destination,
		Amount:      amountStr,
		Asset:       txAsset,
	}
	ref, err := c.submit(ctx, kp, op)
	if err != nil {
		return TransferResult{}, err
	}
	return TransferResult{Reference: ref, Confirmed: true}, nil
}

// MergeInto merges the seed's account into destination to recover its reserve.
func (c *HorizonClient) MergeInto(ctx context.Context, seed, destination string) (TransferResult, error) {
	kp, err := keypair.ParseFull(seed)
	if err != nil {
		return TransferResult{}, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	op := &txnbuild.AccountMerge{Destination: destination}
	ref, err := c.submit(ctx, kp, op)
	if err != nil {
		return TransferResult{}, err
	}
	return TransferResult{Reference: ref, Confirmed: true}, nil
}

// BalanceOf queries the account's balance in the given asset.
func (c *HorizonClient) BalanceOf(_ context.Context, address, asset string) (string, error) {
	account, err := c.client.AccountDetail(horizonclient.AccountRequest{AccountID: address})
	if err != nil {
		if horizonclient.IsNotFoundError(err) {
			return "", ErrAccountNotFound
		}
		return "", err
	}
	for _, balance := range account.Balances {
		switch {
		case asset == "native" && balance.Asset.Type == "native":
			return balance.Balance, nil
		case asset == balance.Asset.Code+":"+balance.Asset.Issuer:
			return balance.Balance, nil
		}
	}
	return "0.0000000", nil
}

func (c *HorizonClient) submit(_ context.Context, signer *keypair.Full, ops ...txnbuild.Operation) (string, error) {
	sourceAccount, err := c.client.AccountDetail(horizonclient.AccountRequest{AccountID: signer.Address()})
	if err != nil {
		return "", fmt.Errorf("%w: load source account: %v", ErrTransferFailed, err)
	}

	tx, err := txnbuild.NewTransaction(txnbuild.TransactionParams{
		SourceAccount:        &sourceAccount,
		IncrementSequenceNum: true,
		Operations:           ops,
		BaseFee:              txnbuild.MinBaseFee,
		Preconditions:        txnbuild.Preconditions{TimeBounds: txnbuild.NewTimeout(300)},
	})
	if err != nil {
		return "", fmt.Errorf("%w: build transaction: %v", ErrTransferFailed, err)
	}

	tx, err = tx.Sign(c.passphrase, signer)
	if err != nil {
		return "", fmt.Errorf("%w: sign transaction: %v", ErrTransferFailed, err)
	}

	resp, err := c.client.SubmitTransaction(tx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransferFailed, submitErrorReason(err))
	}
	if !resp.Successful {
		return "", fmt.Errorf("%w: transaction not successful", ErrTransferFailed)
	}
	return resp.Hash, nil
}

// buildAsset maps the module's asset string ("native" or "CODE:ISSUER")
// to a txnbuild asset.
func buildAsset(asset string) (txnbuild.Asset, error) {
	if asset == "native" {
		return txnbuild.NativeAsset{}, nil
	}
	code, issuer, found := strings.Cut(asset, ":")
	if !found {
		return nil, fmt.Errorf("asset must be %q or CODE:ISSUER", "native")
	}
	return txnbuild.CreditAsset{Code: code, Issuer: issuer}, nil
}

func submitErrorReason(err error) string {
	var herr *horizonclient.Error
	if errors.As(err, &herr) {
		if codes, cerr := herr.ResultCodes(); cerr == nil && codes != nil {
			return codes.TransactionCode + " " + strings.Join(codes.OperationCodes, ",")
		}
		return herr.Problem.Title
	}
	return err.Error()
}
