package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/ovomonie/backend/internal/models"
)

// PostgresStore backs the ledger with Postgres. All mutual exclusion lives
// in the database: ordered SELECT ... FOR UPDATE row locks, version-checked
// balance updates and a unique constraint on idempotency references. No
// in-process lock is relied on, so any number of instances can share it.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin ledger tx: %w", err)
	}
	return &pgTx{ctx: ctx, tx: tx}, nil
}

func (s *PostgresStore) AccountByID(ctx context.Context, id string) (*models.Account, error) {
	return scanAccount(s.db.QueryRowContext(ctx, `
		SELECT id, account_number, account_name, balance, kyc_tier, status, version, updated_at
		FROM accounts WHERE id = $1`, id))
}

func (s *PostgresStore) AccountByNumber(ctx context.Context, accountNumber string) (*models.Account, error) {
	return scanAccount(s.db.QueryRowContext(ctx, `
		SELECT id, account_number, account_name, balance, kyc_tier, status, version, updated_at
		FROM accounts WHERE account_number = $1`, accountNumber))
}

func (s *PostgresStore) EntriesForAccount(ctx context.Context, accountID string, limit int) ([]models.JournalEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, direction, amount, category, reference, counterparty_ref, balance_after, narration, created_at
		FROM ledger_entries
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.JournalEntry
	for rows.Next() {
		var e models.JournalEntry
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Direction, &e.Amount, &e.Category,
			&e.Reference, &e.CounterpartyRef, &e.BalanceAfter, &e.Narration, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *PostgresStore) ReferenceRecord(ctx context.Context, reference string) (*models.IdempotencyRecord, error) {
	rec := &models.IdempotencyRecord{}
	var respStatus sql.NullInt64
	var respBody []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT reference, request_hash, status, response_status, response_body, created_at, updated_at
		FROM idempotency_keys WHERE reference = $1`, reference).
		Scan(&rec.Reference, &rec.RequestHash, &rec.Status, &respStatus, &respBody, &rec.CreatedAt, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrTransferNotFound
	}
	if err != nil {
		return nil, err
	}
	rec.ResponseStatus = int(respStatus.Int64)
	rec.ResponseBody = respBody
	return rec, nil
}

func (s *PostgresStore) ExternalTransferByReference(ctx context.Context, reference string) (*models.ExternalTransfer, error) {
	t := &models.ExternalTransfer{}
	err := s.db.QueryRowContext(ctx, `
		SELECT reference, source_id, bank_code, beneficiary_number, amount, status, narration, created_at, updated_at
		FROM external_transfers WHERE reference = $1`, reference).
		Scan(&t.Reference, &t.SourceID, &t.BankCode, &t.BeneficiaryNumber, &t.Amount,
			&t.Status, &t.Narration, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrTransferNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *PostgresStore) PendingExternalTransfers(ctx context.Context, olderThan time.Time) ([]models.ExternalTransfer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT reference, source_id, bank_code, beneficiary_number, amount, status, narration, created_at, updated_at
		FROM external_transfers
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at ASC`, models.TransferPending, olderThan)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transfers []models.ExternalTransfer
	for rows.Next() {
		var t models.ExternalTransfer
		if err := rows.Scan(&t.Reference, &t.SourceID, &t.BankCode, &t.BeneficiaryNumber,
			&t.Amount, &t.Status, &t.Narration, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		transfers = append(transfers, t)
	}
	return transfers, rows.Err()
}

func (s *PostgresStore) ReleaseStaleReservations(ctx context.Context, olderThan time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM idempotency_keys k
		WHERE k.status = $1 AND k.created_at < $2
		AND NOT EXISTS (SELECT 1 FROM ledger_entries e WHERE e.reference = k.reference)`,
		models.IdemPending, olderThan)
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	return int(n), err
}

type pgTx struct {
	ctx context.Context
	tx  *sql.Tx
}

func (t *pgTx) ReserveReference(reference, requestHash string) (*Reservation, error) {
	// Conditional insert: ON CONFLICT DO NOTHING keeps the transaction
	// alive on a duplicate (a raw unique violation would abort it), while
	// the unique constraint still closes the check-then-act race.
	result, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO idempotency_keys (reference, request_hash, status, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (reference) DO NOTHING`,
		reference, requestHash, models.IdemPending)
	if err != nil {
		return nil, fmt.Errorf("reserve reference: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return nil, err
	} else if n == 1 {
		return &Reservation{Fresh: true}, nil
	}

	rec := &models.IdempotencyRecord{}
	var respStatus sql.NullInt64
	var respBody []byte
	err = t.tx.QueryRowContext(t.ctx, `
		SELECT reference, request_hash, status, response_status, response_body, created_at, updated_at
		FROM idempotency_keys WHERE reference = $1`, reference).
		Scan(&rec.Reference, &rec.RequestHash, &rec.Status, &respStatus, &respBody, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("load existing reference: %w", err)
	}
	rec.ResponseStatus = int(respStatus.Int64)
	rec.ResponseBody = respBody

	if rec.RequestHash != requestHash {
		return nil, ErrReferenceMismatch
	}
	if rec.Status == models.IdemPending {
		return nil, ErrDuplicateInFlight
	}
	return &Reservation{Record: rec}, nil
}

func (t *pgTx) LockAccounts(ids ...string) (map[string]*models.Account, error) {
	// Deterministic lock order: two opposing transfers between the same
	// pair must acquire rows in the same sequence or they can deadlock.
	ordered := append([]string(nil), ids...)
	sort.Strings(ordered)

	accounts := make(map[string]*models.Account, len(ordered))
	for _, id := range ordered {
		acct, err := scanAccount(t.tx.QueryRowContext(t.ctx, `
			SELECT id, account_number, account_name, balance, kyc_tier, status, version, updated_at
			FROM accounts WHERE id = $1 FOR UPDATE`, id))
		if err == ErrAccountNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		accounts[acct.ID] = acct
	}
	return accounts, nil
}

func (t *pgTx) LockAccountByNumber(accountNumber string) (*models.Account, error) {
	return scanAccount(t.tx.QueryRowContext(t.ctx, `
		SELECT id, account_number, account_name, balance, kyc_tier, status, version, updated_at
		FROM accounts WHERE account_number = $1 FOR UPDATE`, accountNumber))
}

func (t *pgTx) AppendEntry(entry *models.JournalEntry) error {
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO ledger_entries
		(id, account_id, direction, amount, category, reference, counterparty_ref, balance_after, narration, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		entry.ID, entry.AccountID, entry.Direction, entry.Amount, entry.Category,
		entry.Reference, entry.CounterpartyRef, entry.BalanceAfter, entry.Narration, entry.CreatedAt)
	return err
}

func (t *pgTx) ApplyBalance(accountID string, newBalance int64, version int) error {
	result, err := t.tx.ExecContext(t.ctx, `
		UPDATE accounts
		SET balance = $1, version = version + 1, updated_at = NOW()
		WHERE id = $2 AND version = $3`,
		newBalance, accountID, version)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: account %s", ErrVersionConflict, accountID)
	}
	return nil
}

func (t *pgTx) OutgoingTotalSince(accountID string, since time.Time) (int64, error) {
	var total int64
	err := t.tx.QueryRowContext(t.ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM ledger_entries
		WHERE account_id = $1 AND direction = $2 AND created_at >= $3`,
		accountID, models.EntryDebit, since).Scan(&total)
	return total, err
}

func (t *pgTx) CreateExternalTransfer(transfer *models.ExternalTransfer) error {
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO external_transfers
		(reference, source_id, bank_code, beneficiary_number, amount, status, narration, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())`,
		transfer.Reference, transfer.SourceID, transfer.BankCode, transfer.BeneficiaryNumber,
		transfer.Amount, transfer.Status, transfer.Narration)
	return err
}

func (t *pgTx) LockExternalTransfer(reference string) (*models.ExternalTransfer, error) {
	transfer := &models.ExternalTransfer{}
	err := t.tx.QueryRowContext(t.ctx, `
		SELECT reference, source_id, bank_code, beneficiary_number, amount, status, narration, created_at, updated_at
		FROM external_transfers WHERE reference = $1 FOR UPDATE`, reference).
		Scan(&transfer.Reference, &transfer.SourceID, &transfer.BankCode, &transfer.BeneficiaryNumber,
			&transfer.Amount, &transfer.Status, &transfer.Narration, &transfer.CreatedAt, &transfer.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrTransferNotFound
	}
	if err != nil {
		return nil, err
	}
	return transfer, nil
}

func (t *pgTx) UpdateExternalTransferStatus(reference, status string) error {
	result, err := t.tx.ExecContext(t.ctx, `
		UPDATE external_transfers SET status = $1, updated_at = NOW()
		WHERE reference = $2 AND status = $3`,
		status, reference, models.TransferPending)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrTransferResolved, reference)
	}
	return nil
}

func (t *pgTx) CompleteReference(reference string, httpStatus int, responseBody []byte) error {
	return t.finishReference(reference, models.IdemCompleted, httpStatus, responseBody)
}

func (t *pgTx) FailReference(reference string, httpStatus int, responseBody []byte) error {
	return t.finishReference(reference, models.IdemFailed, httpStatus, responseBody)
}

func (t *pgTx) finishReference(reference, status string, httpStatus int, responseBody []byte) error {
	_, err := t.tx.ExecContext(t.ctx, `
		UPDATE idempotency_keys
		SET status = $1, response_status = $2, response_body = $3, updated_at = NOW()
		WHERE reference = $4`,
		status, httpStatus, responseBody, reference)
	return err
}

func (t *pgTx) Commit() error {
	return t.tx.Commit()
}

func (t *pgTx) Rollback() error {
	return t.tx.Rollback()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	acct := &models.Account{}
	err := row.Scan(&acct.ID, &acct.AccountNumber, &acct.AccountName,
		&acct.Balance, &acct.KYCTier, &acct.Status, &acct.Version, &acct.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return acct, nil
}
