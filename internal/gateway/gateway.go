// Package gateway abstracts the external money rails: the interbank
// settlement network for outward transfers and the virtual-card issuer.
// The engine treats both as fallible effects whose failure after a local
// debit demands a compensating credit.
package gateway

import (
	"context"
	"errors"
)

// RailStatus is the settlement network's view of one transfer.
type RailStatus int

const (
	StatusUnknown RailStatus = iota
	StatusCompleted
	StatusFailed
)

var (
	// ErrRailRejected means the rail definitively refused the transfer;
	// the caller must compensate the local debit.
	ErrRailRejected = errors.New("rail rejected transfer")
)

type RailRequest struct {
	Reference         string
	BankCode          string
	BeneficiaryNumber string
	BeneficiaryName   string
	SourceName        string
	Amount            int64 // in kobo
	Narration         string
}

type RailResult struct {
	Status    RailStatus
	SessionID string
	Message   string
}

// BankRail sends money out of Ovomonie and answers status queries for
// transfers whose first attempt ended without a definitive outcome.
type BankRail interface {
	Transfer(ctx context.Context, req RailRequest) (*RailResult, error)
	Status(ctx context.Context, reference string) (RailStatus, error)
}

type IssueRequest struct {
	Reference   string
	AccountID   string
	HolderName  string
	FundingKobo int64
}

type IssueResult struct {
	CardID     string
	MaskedPAN  string
	ExpiryDate string
}

// CardIssuer provisions virtual cards against funds the ledger has already
// reserved. A failed issue call triggers a refund of the reservation.
type CardIssuer interface {
	Issue(ctx context.Context, req IssueRequest) (*IssueResult, error)
}
