package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ovomonie/backend/internal/models"
)

// MemoryStore keeps the whole ledger in process memory. It backs tests and
// local development. A Tx holds the store's single writer lock from Begin to
// Commit/Rollback, so transactions serialize exactly as the row-locked
// Postgres implementation does, and staged writes are invisible until
// Commit.
type MemoryStore struct {
	mu sync.Mutex

	accounts  map[string]*models.Account // by id
	byNumber  map[string]string          // account number -> id
	entries   []models.JournalEntry
	refs      map[string]*models.IdempotencyRecord
	transfers map[string]*models.ExternalTransfer

	now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:  make(map[string]*models.Account),
		byNumber:  make(map[string]string),
		refs:      make(map[string]*models.IdempotencyRecord),
		transfers: make(map[string]*models.ExternalTransfer),
		now:       time.Now,
	}
}

// SeedAccount registers an account directly, bypassing the engine. Test and
// local-dev setup only.
func (s *MemoryStore) SeedAccount(acct *models.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *acct
	if cp.Version == 0 {
		cp.Version = 1
	}
	s.accounts[cp.ID] = &cp
	s.byNumber[cp.AccountNumber] = cp.ID
}

func (s *MemoryStore) Begin(ctx context.Context) (Tx, error) {
	s.mu.Lock()
	return &memTx{store: s}, nil
}

func (s *MemoryStore) AccountByID(ctx context.Context, id string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	cp := *acct
	return &cp, nil
}

func (s *MemoryStore) AccountByNumber(ctx context.Context, accountNumber string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byNumber[accountNumber]
	if !ok {
		return nil, ErrAccountNotFound
	}
	cp := *s.accounts[id]
	return &cp, nil
}

func (s *MemoryStore) EntriesForAccount(ctx context.Context, accountID string, limit int) ([]models.JournalEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.JournalEntry
	for i := len(s.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if s.entries[i].AccountID == accountID {
			out = append(out, s.entries[i])
		}
	}
	return out, nil
}

func (s *MemoryStore) ReferenceRecord(ctx context.Context, reference string) (*models.IdempotencyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.refs[reference]
	if !ok {
		return nil, ErrTransferNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *MemoryStore) ExternalTransferByReference(ctx context.Context, reference string) (*models.ExternalTransfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transfers[reference]
	if !ok {
		return nil, ErrTransferNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *MemoryStore) PendingExternalTransfers(ctx context.Context, olderThan time.Time) ([]models.ExternalTransfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ExternalTransfer
	for _, t := range s.transfers {
		if t.Status == models.TransferPending && t.CreatedAt.Before(olderThan) {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (s *MemoryStore) ReleaseStaleReservations(ctx context.Context, olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	released := 0
	for ref, rec := range s.refs {
		if rec.Status != models.IdemPending || !rec.CreatedAt.Before(olderThan) {
			continue
		}
		hasEntry := false
		for i := range s.entries {
			if s.entries[i].Reference == ref {
				hasEntry = true
				break
			}
		}
		if !hasEntry {
			delete(s.refs, ref)
			released++
		}
	}
	return released, nil
}

// memTx stages mutations and applies them on Commit while holding the
// store lock it inherited from Begin.
type memTx struct {
	store *MemoryStore
	done  bool

	reservedRef  string
	reservedHash string

	stagedEntries   []models.JournalEntry
	stagedBalances  map[string]int64 // account id -> new balance
	stagedTransfers []models.ExternalTransfer
	transferUpdates map[string]string // reference -> status
	finishStatus    string
	finishHTTP      int
	finishBody      []byte
}

func (t *memTx) ReserveReference(reference, requestHash string) (*Reservation, error) {
	if rec, ok := t.store.refs[reference]; ok {
		if rec.RequestHash != requestHash {
			return nil, ErrReferenceMismatch
		}
		if rec.Status == models.IdemPending {
			return nil, ErrDuplicateInFlight
		}
		cp := *rec
		return &Reservation{Record: &cp}, nil
	}
	t.reservedRef = reference
	t.reservedHash = requestHash
	return &Reservation{Fresh: true}, nil
}

func (t *memTx) LockAccounts(ids ...string) (map[string]*models.Account, error) {
	out := make(map[string]*models.Account, len(ids))
	for _, id := range ids {
		if acct, ok := t.store.accounts[id]; ok {
			cp := *acct
			out[id] = &cp
		}
	}
	return out, nil
}

func (t *memTx) LockAccountByNumber(accountNumber string) (*models.Account, error) {
	id, ok := t.store.byNumber[accountNumber]
	if !ok {
		return nil, ErrAccountNotFound
	}
	cp := *t.store.accounts[id]
	return &cp, nil
}

func (t *memTx) AppendEntry(entry *models.JournalEntry) error {
	t.stagedEntries = append(t.stagedEntries, *entry)
	return nil
}

func (t *memTx) ApplyBalance(accountID string, newBalance int64, version int) error {
	acct, ok := t.store.accounts[accountID]
	if !ok {
		return ErrAccountNotFound
	}
	if acct.Version != version {
		return ErrVersionConflict
	}
	if t.stagedBalances == nil {
		t.stagedBalances = make(map[string]int64)
	}
	t.stagedBalances[accountID] = newBalance
	return nil
}

func (t *memTx) OutgoingTotalSince(accountID string, since time.Time) (int64, error) {
	var total int64
	for i := range t.store.entries {
		e := &t.store.entries[i]
		if e.AccountID == accountID && e.Direction == models.EntryDebit && !e.CreatedAt.Before(since) {
			total += e.Amount
		}
	}
	return total, nil
}

func (t *memTx) CreateExternalTransfer(transfer *models.ExternalTransfer) error {
	t.stagedTransfers = append(t.stagedTransfers, *transfer)
	return nil
}

func (t *memTx) LockExternalTransfer(reference string) (*models.ExternalTransfer, error) {
	tr, ok := t.store.transfers[reference]
	if !ok {
		return nil, ErrTransferNotFound
	}
	cp := *tr
	return &cp, nil
}

func (t *memTx) UpdateExternalTransferStatus(reference, status string) error {
	tr, ok := t.store.transfers[reference]
	if !ok {
		return ErrTransferNotFound
	}
	if tr.Status != models.TransferPending {
		return fmt.Errorf("%w: %s", ErrTransferResolved, reference)
	}
	if t.transferUpdates == nil {
		t.transferUpdates = make(map[string]string)
	}
	t.transferUpdates[reference] = status
	return nil
}

func (t *memTx) CompleteReference(reference string, httpStatus int, responseBody []byte) error {
	if t.reservedRef == "" {
		t.reservedRef = reference
	}
	t.finishStatus = models.IdemCompleted
	t.finishHTTP = httpStatus
	t.finishBody = responseBody
	return nil
}

func (t *memTx) FailReference(reference string, httpStatus int, responseBody []byte) error {
	if t.reservedRef == "" {
		t.reservedRef = reference
	}
	t.finishStatus = models.IdemFailed
	t.finishHTTP = httpStatus
	t.finishBody = responseBody
	return nil
}

func (t *memTx) Commit() error {
	if t.done {
		return nil
	}
	now := t.store.now()

	if t.reservedRef != "" {
		rec := t.store.refs[t.reservedRef]
		if rec == nil {
			rec = &models.IdempotencyRecord{
				Reference:   t.reservedRef,
				RequestHash: t.reservedHash,
				Status:      models.IdemPending,
				CreatedAt:   now,
			}
			t.store.refs[t.reservedRef] = rec
		}
		if t.finishStatus != "" {
			rec.Status = t.finishStatus
			rec.ResponseStatus = t.finishHTTP
			rec.ResponseBody = t.finishBody
		}
		rec.UpdatedAt = now
	}

	for i := range t.stagedEntries {
		e := t.stagedEntries[i]
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		t.store.entries = append(t.store.entries, e)
	}

	for id, balance := range t.stagedBalances {
		acct := t.store.accounts[id]
		acct.Balance = balance
		acct.Version++
		acct.UpdatedAt = now
	}

	for i := range t.stagedTransfers {
		tr := t.stagedTransfers[i]
		if tr.CreatedAt.IsZero() {
			tr.CreatedAt = now
		}
		tr.UpdatedAt = now
		t.store.transfers[tr.Reference] = &tr
	}
	for ref, status := range t.transferUpdates {
		if tr, ok := t.store.transfers[ref]; ok {
			tr.Status = status
			tr.UpdatedAt = now
		}
	}

	t.done = true
	t.store.mu.Unlock()
	return nil
}

func (t *memTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.store.mu.Unlock()
	return nil
}
