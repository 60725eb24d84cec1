package models

import (
	"time"
)

// Account statuses. Accounts are never deleted; a closed account keeps its
// journal history and simply stops accepting transfers.
const (
	AccountActive    = "ACTIVE"
	AccountSuspended = "SUSPENDED"
	AccountClosed    = "CLOSED"
)

type Account struct {
	ID            string    `json:"id" db:"id"`
	AccountNumber string    `json:"accountNumber" db:"account_number"`
	AccountName   string    `json:"accountName" db:"account_name"`
	Balance       int64     `json:"balance" db:"balance"` // in kobo
	KYCTier       int       `json:"kycTier" db:"kyc_tier"`
	Status        string    `json:"status" db:"status"`
	Version       int       `json:"version" db:"version"` // for optimistic locking
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

func (a *Account) IsActive() bool {
	return a.Status == AccountActive
}
