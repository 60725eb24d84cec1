package models

import (
	"time"
)

// External transfer lifecycle. A PENDING row means funds left the source
// account but the rail outcome is not yet known; the reconciler owns it.
const (
	TransferPending   = "PENDING"
	TransferCompleted = "COMPLETED"
	TransferReversed  = "REVERSED"
	TransferFailed    = "FAILED"
)

// TransferIntent is the engine's input: one requested money movement.
// It is ephemeral; only the journal entries and the idempotency record
// it produces are persisted.
type TransferIntent struct {
	Reference     string
	SourceID      string
	DestinationID string // empty for external transfers
	Amount        int64  // in kobo
	Category      string
	Narration     string

	// External rail fields, unset for internal transfers.
	BankCode          string
	BeneficiaryNumber string
	BeneficiaryName   string
}

// ExternalTransfer is the persisted saga state for a rail transfer.
type ExternalTransfer struct {
	Reference         string    `json:"reference" db:"reference"`
	SourceID          string    `json:"source_id" db:"source_id"`
	BankCode          string    `json:"bank_code" db:"bank_code"`
	BeneficiaryNumber string    `json:"beneficiary_number" db:"beneficiary_number"`
	Amount            int64     `json:"amount" db:"amount"`
	Status            string    `json:"status" db:"status"`
	Narration         string    `json:"narration" db:"narration"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// TransferReceipt is what a committed movement hands back to the caller.
type TransferReceipt struct {
	Reference        string    `json:"reference"`
	NewSourceBalance int64     `json:"newBalanceInKobo"`
	RecipientName    string    `json:"recipientName,omitempty"`
	Status           string    `json:"status"`
	Timestamp        time.Time `json:"timestamp"`
}
