package models

import (
	"time"
)

// Journal entry directions.
const (
	EntryDebit  = "DEBIT"
	EntryCredit = "CREDIT"
)

// Journal entry categories.
const (
	CategoryTransfer    = "transfer"
	CategoryBillPayment = "bill_payment"
	CategoryCardFunding = "card_funding"
	CategoryWithdrawal  = "withdrawal"
	CategoryDeposit     = "deposit"
	CategoryReversal    = "reversal"
)

// JournalEntry is one leg of a committed money movement. Entries are
// append-only: the store exposes no update or delete for them, and replaying
// an account's entries in order must reproduce its stored balance.
type JournalEntry struct {
	ID              string    `json:"id" db:"id"`
	AccountID       string    `json:"account_id" db:"account_id"`
	Direction       string    `json:"direction" db:"direction"`
	Amount          int64     `json:"amount" db:"amount"` // in kobo, always positive
	Category        string    `json:"category" db:"category"`
	Reference       string    `json:"reference" db:"reference"`
	CounterpartyRef string    `json:"counterparty_ref" db:"counterparty_ref"`
	BalanceAfter    int64     `json:"balance_after" db:"balance_after"`
	Narration       string    `json:"narration" db:"narration"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// SignedAmount is the delta the entry applied to its account's balance.
func (e *JournalEntry) SignedAmount() int64 {
	if e.Direction == EntryDebit {
		return -e.Amount
	}
	return e.Amount
}
