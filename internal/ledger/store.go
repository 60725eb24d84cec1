package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/ovomonie/backend/internal/models"
)

var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrAccountNotActive  = errors.New("account not active")
	ErrInsufficientFunds = errors.New("insufficient balance")
	ErrSelfTransfer      = errors.New("cannot transfer to same account")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrTxnLimitExceeded  = errors.New("single transaction limit exceeded")
	ErrDailyLimit        = errors.New("daily transfer limit exceeded")
	ErrDuplicateInFlight = errors.New("request with this reference is in progress")
	ErrReferenceMismatch = errors.New("reference reused with a different payload")
	ErrVersionConflict   = errors.New("account was modified concurrently")
	ErrTransferNotFound  = errors.New("transfer not found")
	ErrTransferResolved  = errors.New("transfer already in a terminal state")
	ErrGatewayFailed     = errors.New("bank rail rejected the transfer")
	ErrOutcomeUnknown    = errors.New("bank rail outcome unknown")
)

// Reservation is the result of an idempotency check-or-reserve. Exactly one
// of the two shapes holds: Fresh (the reference is now reserved and the
// caller must drive it to a terminal state) or a terminal Record to replay.
type Reservation struct {
	Fresh  bool
	Record *models.IdempotencyRecord
}

// Tx is one atomic unit of ledger work. Implementations guarantee that
// nothing done through a Tx is observable until Commit, and that Rollback
// after a failed step leaves no trace, including the reference reservation.
type Tx interface {
	// ReserveReference atomically claims the reference via a conditional
	// insert. Returns ErrDuplicateInFlight if another request holds a
	// pending reservation and ErrReferenceMismatch if the reference exists
	// with a different request hash.
	ReserveReference(reference, requestHash string) (*Reservation, error)

	// LockAccounts loads the accounts for the given ids with row-level
	// locks, always acquiring in ascending id order to prevent deadlock.
	// Missing accounts simply do not appear in the result.
	LockAccounts(ids ...string) (map[string]*models.Account, error)

	// LockAccountByNumber resolves an account number to its locked row.
	LockAccountByNumber(accountNumber string) (*models.Account, error)

	AppendEntry(entry *models.JournalEntry) error

	// ApplyBalance writes a new balance using the version observed at lock
	// time. Returns ErrVersionConflict if the row changed underneath us.
	ApplyBalance(accountID string, newBalance int64, version int) error

	// OutgoingTotalSince sums committed debit entries for the account from
	// the given instant, for daily-limit enforcement. Reversal credits are
	// not netted against it.
	OutgoingTotalSince(accountID string, since time.Time) (int64, error)

	CreateExternalTransfer(t *models.ExternalTransfer) error

	// LockExternalTransfer loads the transfer row for the reference with a
	// row-level lock. Pending-status checks and the transition to a terminal
	// state must both happen under this lock: a plain read leaves a window
	// where two instances each observe PENDING and both compensate.
	LockExternalTransfer(reference string) (*models.ExternalTransfer, error)

	// UpdateExternalTransferStatus transitions a PENDING transfer to the
	// given status. Returns ErrTransferResolved if the row is no longer
	// pending, so a racing finalize or compensation aborts instead of
	// double-settling.
	UpdateExternalTransferStatus(reference, status string) error

	CompleteReference(reference string, httpStatus int, responseBody []byte) error
	FailReference(reference string, httpStatus int, responseBody []byte) error

	Commit() error
	Rollback() error
}

// Store is the single ledger abstraction every money-movement path shares.
// Two implementations exist: Postgres for production and an in-memory store
// for tests and local development.
type Store interface {
	Begin(ctx context.Context) (Tx, error)

	AccountByID(ctx context.Context, id string) (*models.Account, error)
	AccountByNumber(ctx context.Context, accountNumber string) (*models.Account, error)

	EntriesForAccount(ctx context.Context, accountID string, limit int) ([]models.JournalEntry, error)

	ReferenceRecord(ctx context.Context, reference string) (*models.IdempotencyRecord, error)
	ExternalTransferByReference(ctx context.Context, reference string) (*models.ExternalTransfer, error)

	// PendingExternalTransfers lists rail transfers stuck in PENDING since
	// before the cutoff; the reconciler resolves them.
	PendingExternalTransfers(ctx context.Context, olderThan time.Time) ([]models.ExternalTransfer, error)

	// ReleaseStaleReservations deletes pending idempotency records older
	// than the cutoff that never produced a journal entry, so a legitimate
	// retry can reserve the reference again.
	ReleaseStaleReservations(ctx context.Context, olderThan time.Time) (int, error)
}

// HashIntent fingerprints the payload bound to an idempotency reference so
// that reference reuse with a different payload is detectable.
func HashIntent(intent *models.TransferIntent) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s|%d|%s|%s|%s",
		intent.SourceID, intent.DestinationID, intent.Category, intent.Amount,
		intent.BankCode, intent.BeneficiaryNumber, intent.Narration)))
	return hex.EncodeToString(sum[:])
}
