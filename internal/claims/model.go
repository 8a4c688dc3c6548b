package claims

import "time"

// Record is the durable proof that a redemption completed. Created exactly
// once per escrow account as the final persistence step of a successful sweep
// and never mutated afterward.
type Record struct {
	ID                string
	AccountID         string
	Destination       string
	TransferReference string
	Amount            string
	Asset             string
	ClaimedAt         time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
