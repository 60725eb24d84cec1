package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/ovomonie/backend/internal/config"
	"github.com/ovomonie/backend/internal/gateway"
	"github.com/ovomonie/backend/internal/metrics"
	"github.com/ovomonie/backend/internal/models"
)

// Notifier receives fire-and-forget messages about committed transfers.
// The engine calls it strictly after commit; a nil Notifier is allowed.
type Notifier interface {
	Notify(accountID, template string, data map[string]interface{})
}

// Result is the outcome of one engine execution. Either Receipt is set
// (freshly committed work) or Replayed is true and Status/Body carry the
// stored outcome of the first request with this reference.
type Result struct {
	Receipt  *models.TransferReceipt
	Replayed bool
	Status   int
	Body     json.RawMessage
}

// Engine is the single money-movement path. Every route that debits or
// credits a wallet goes through ExecuteInternal or ExecuteExternal; nothing
// else writes balances.
type Engine struct {
	store       Store
	limits      config.LimitTable
	rail        gateway.BankRail
	notifier    Notifier
	metrics     *metrics.Metrics
	railTimeout time.Duration
	now         func() time.Time
}

func NewEngine(store Store, limits config.LimitTable, rail gateway.BankRail, notifier Notifier, m *metrics.Metrics) *Engine {
	return &Engine{
		store:       store,
		limits:      limits,
		rail:        rail,
		notifier:    notifier,
		metrics:     m,
		railTimeout: 30 * time.Second,
		now:         time.Now,
	}
}

// ExecuteInternal moves money between two Ovomonie accounts as one atomic
// unit: reference reservation, both journal entries, both balance writes
// and the idempotency completion commit or roll back together.
func (e *Engine) ExecuteInternal(ctx context.Context, intent *models.TransferIntent) (*Result, error) {
	if intent.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if intent.SourceID == intent.DestinationID {
		return nil, ErrSelfTransfer
	}

	started := e.now()
	tx, err := e.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transfer %s: %w", intent.Reference, err)
	}
	defer tx.Rollback()

	res, err := tx.ReserveReference(intent.Reference, HashIntent(intent))
	if err != nil {
		return nil, err
	}
	if !res.Fresh {
		e.count(intent.Category, "replayed")
		return &Result{Replayed: true, Status: res.Record.ResponseStatus, Body: res.Record.ResponseBody}, nil
	}

	accounts, err := tx.LockAccounts(intent.SourceID, intent.DestinationID)
	if err != nil {
		return nil, fmt.Errorf("lock accounts for %s: %w", intent.Reference, err)
	}
	src, dst := accounts[intent.SourceID], accounts[intent.DestinationID]

	if err := e.validate(tx, src, dst, intent); err != nil {
		return nil, e.recordRejection(tx, intent, err)
	}

	now := e.now()
	debitID, creditID := uuid.New().String(), uuid.New().String()
	entries := []*models.JournalEntry{
		{
			ID: debitID, AccountID: src.ID, Direction: models.EntryDebit,
			Amount: intent.Amount, Category: intent.Category, Reference: intent.Reference,
			CounterpartyRef: creditID, BalanceAfter: src.Balance - intent.Amount,
			Narration: intent.Narration, CreatedAt: now,
		},
		{
			ID: creditID, AccountID: dst.ID, Direction: models.EntryCredit,
			Amount: intent.Amount, Category: intent.Category, Reference: intent.Reference,
			CounterpartyRef: debitID, BalanceAfter: dst.Balance + intent.Amount,
			Narration: intent.Narration, CreatedAt: now,
		},
	}
	for _, entry := range entries {
		if err := tx.AppendEntry(entry); err != nil {
			return nil, fmt.Errorf("append journal entry for %s: %w", intent.Reference, err)
		}
	}

	if err := tx.ApplyBalance(src.ID, src.Balance-intent.Amount, src.Version); err != nil {
		return nil, fmt.Errorf("debit %s for %s: %w", src.ID, intent.Reference, err)
	}
	if err := tx.ApplyBalance(dst.ID, dst.Balance+intent.Amount, dst.Version); err != nil {
		return nil, fmt.Errorf("credit %s for %s: %w", dst.ID, intent.Reference, err)
	}

	receipt := &models.TransferReceipt{
		Reference:        intent.Reference,
		NewSourceBalance: src.Balance - intent.Amount,
		RecipientName:    dst.AccountName,
		Status:           models.TransferCompleted,
		Timestamp:        now,
	}
	body, err := json.Marshal(receipt)
	if err != nil {
		return nil, err
	}
	if err := tx.CompleteReference(intent.Reference, 200, body); err != nil {
		return nil, fmt.Errorf("complete reference %s: %w", intent.Reference, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transfer %s: %w", intent.Reference, err)
	}

	e.observeCommit(started)
	e.count(intent.Category, "completed")
	log.Printf("[TRANSFER] Committed %s: %d kobo %s -> %s", intent.Reference, intent.Amount, src.ID, dst.ID)

	e.postCommitNotify(src.ID, "debit", receipt)
	e.postCommitNotify(dst.ID, "credit", receipt)
	return &Result{Receipt: receipt}, nil
}

// ExecuteExternal runs the outward-transfer saga: reserve funds locally,
// call the rail, then finalize or compensate. A timeout is an unknown
// outcome; the engine queries status once and otherwise leaves the transfer
// pending for the reconciler instead of guessing.
func (e *Engine) ExecuteExternal(ctx context.Context, intent *models.TransferIntent) (*Result, error) {
	if intent.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if intent.BankCode == "" || intent.BeneficiaryNumber == "" {
		return nil, ErrAccountNotFound
	}

	src, result, err := e.reserveExternal(ctx, intent)
	if err != nil || result != nil {
		return result, err
	}

	railCtx, cancel := context.WithTimeout(ctx, e.railTimeout)
	defer cancel()
	railResult, railErr := e.rail.Transfer(railCtx, gateway.RailRequest{
		Reference:         intent.Reference,
		BankCode:          intent.BankCode,
		BeneficiaryNumber: intent.BeneficiaryNumber,
		BeneficiaryName:   intent.BeneficiaryName,
		SourceName:        src.AccountName,
		Amount:            intent.Amount,
		Narration:         intent.Narration,
	})

	switch {
	case railErr == nil && railResult.Status == gateway.StatusCompleted:
		return e.finalizeExternal(ctx, intent, src)

	case errors.Is(railErr, gateway.ErrRailRejected):
		if err := e.CompensateExternal(ctx, intent.Reference); err != nil {
			log.Printf("[TRANSFER] Compensation for %s failed, left pending for reconciler: %v", intent.Reference, err)
			return nil, ErrOutcomeUnknown
		}
		e.count(intent.Category, "reversed")
		return nil, ErrGatewayFailed

	default:
		// Transport failure or ambiguous status. One status query, then
		// defer to the reconciler. Compensating here without knowing the
		// rail outcome risks paying the beneficiary and refunding the
		// sender both.
		log.Printf("[TRANSFER] Outcome unknown for %s, querying rail status: %v", intent.Reference, railErr)
		status, statusErr := e.rail.Status(ctx, intent.Reference)
		if statusErr == nil && status == gateway.StatusCompleted {
			return e.finalizeExternal(ctx, intent, src)
		}
		if statusErr == nil && status == gateway.StatusFailed {
			if err := e.CompensateExternal(ctx, intent.Reference); err == nil {
				e.count(intent.Category, "reversed")
				return nil, ErrGatewayFailed
			}
		}
		e.count(intent.Category, "pending")
		if e.metrics != nil {
			e.metrics.PendingExternal.Inc()
		}
		return nil, ErrOutcomeUnknown
	}
}

// reserveExternal is phase one of the saga: debit the source, journal the
// withdrawal and persist the pending transfer row in one atomic unit. The
// idempotency record stays pending until finalize or compensation.
func (e *Engine) reserveExternal(ctx context.Context, intent *models.TransferIntent) (*models.Account, *Result, error) {
	tx, err := e.store.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin reservation %s: %w", intent.Reference, err)
	}
	defer tx.Rollback()

	res, err := tx.ReserveReference(intent.Reference, HashIntent(intent))
	if err != nil {
		return nil, nil, err
	}
	if !res.Fresh {
		e.count(intent.Category, "replayed")
		return nil, &Result{Replayed: true, Status: res.Record.ResponseStatus, Body: res.Record.ResponseBody}, nil
	}

	accounts, err := tx.LockAccounts(intent.SourceID)
	if err != nil {
		return nil, nil, err
	}
	src := accounts[intent.SourceID]
	if err := e.validateSource(tx, src, intent); err != nil {
		return nil, nil, e.recordRejection(tx, intent, err)
	}

	now := e.now()
	entry := &models.JournalEntry{
		ID: uuid.New().String(), AccountID: src.ID, Direction: models.EntryDebit,
		Amount: intent.Amount, Category: models.CategoryWithdrawal, Reference: intent.Reference,
		CounterpartyRef: fmt.Sprintf("%s:%s", intent.BankCode, intent.BeneficiaryNumber),
		BalanceAfter:    src.Balance - intent.Amount,
		Narration:       intent.Narration, CreatedAt: now,
	}
	if err := tx.AppendEntry(entry); err != nil {
		return nil, nil, err
	}
	if err := tx.ApplyBalance(src.ID, src.Balance-intent.Amount, src.Version); err != nil {
		return nil, nil, err
	}
	if err := tx.CreateExternalTransfer(&models.ExternalTransfer{
		Reference:         intent.Reference,
		SourceID:          src.ID,
		BankCode:          intent.BankCode,
		BeneficiaryNumber: intent.BeneficiaryNumber,
		Amount:            intent.Amount,
		Status:            models.TransferPending,
		Narration:         intent.Narration,
		CreatedAt:         now,
	}); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit reservation %s: %w", intent.Reference, err)
	}
	log.Printf("[TRANSFER] Reserved %d kobo on %s for external transfer %s", intent.Amount, src.ID, intent.Reference)
	return src, nil, nil
}

func (e *Engine) finalizeExternal(ctx context.Context, intent *models.TransferIntent, src *models.Account) (*Result, error) {
	tx, err := e.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	transfer, err := tx.LockExternalTransfer(intent.Reference)
	if err != nil {
		return nil, err
	}
	if transfer.Status != models.TransferPending {
		// The reconciler got here first. Replay its recorded outcome.
		tx.Rollback()
		return e.replayRecorded(ctx, intent.Reference)
	}

	receipt := &models.TransferReceipt{
		Reference:        intent.Reference,
		NewSourceBalance: src.Balance - intent.Amount,
		RecipientName:    intent.BeneficiaryName,
		Status:           models.TransferCompleted,
		Timestamp:        e.now(),
	}
	body, err := json.Marshal(receipt)
	if err != nil {
		return nil, err
	}

	if err := tx.UpdateExternalTransferStatus(intent.Reference, models.TransferCompleted); err != nil {
		return nil, err
	}
	if err := tx.CompleteReference(intent.Reference, 200, body); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("finalize %s: %w", intent.Reference, err)
	}

	e.count(intent.Category, "completed")
	log.Printf("[TRANSFER] External transfer %s settled", intent.Reference)
	e.postCommitNotify(intent.SourceID, "external_debit", receipt)
	return &Result{Receipt: receipt}, nil
}

// replayRecorded loads the terminal idempotency outcome for a reference that
// another actor already settled and returns it as a replay.
func (e *Engine) replayRecorded(ctx context.Context, reference string) (*Result, error) {
	rec, err := e.store.ReferenceRecord(ctx, reference)
	if err != nil {
		return nil, err
	}
	if rec.Status == models.IdemFailed {
		return nil, ErrGatewayFailed
	}
	return &Result{Replayed: true, Status: rec.ResponseStatus, Body: rec.ResponseBody}, nil
}

// CompensateExternal reverses the reserved debit of a failed rail transfer:
// compensating credit, reversal journal entry, transfer row marked REVERSED
// and the idempotency record failed, atomically. The reconciler uses it too.
// The pending check happens under the transfer row lock: two compensators
// (or a compensate racing a finalize) on separate instances serialize there,
// and the loser sees a terminal status instead of refunding again.
func (e *Engine) CompensateExternal(ctx context.Context, reference string) error {
	tx, err := e.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	transfer, err := tx.LockExternalTransfer(reference)
	if err != nil {
		return err
	}
	if transfer.Status != models.TransferPending {
		return nil // already resolved
	}

	accounts, err := tx.LockAccounts(transfer.SourceID)
	if err != nil {
		return err
	}
	src, ok := accounts[transfer.SourceID]
	if !ok {
		return ErrAccountNotFound
	}

	now := e.now()
	if err := tx.AppendEntry(&models.JournalEntry{
		ID: uuid.New().String(), AccountID: src.ID, Direction: models.EntryCredit,
		Amount: transfer.Amount, Category: models.CategoryReversal, Reference: reference,
		CounterpartyRef: fmt.Sprintf("%s:%s", transfer.BankCode, transfer.BeneficiaryNumber),
		BalanceAfter:    src.Balance + transfer.Amount,
		Narration:       "Reversal: " + transfer.Narration, CreatedAt: now,
	}); err != nil {
		return err
	}
	if err := tx.ApplyBalance(src.ID, src.Balance+transfer.Amount, src.Version); err != nil {
		return err
	}
	if err := tx.UpdateExternalTransferStatus(reference, models.TransferReversed); err != nil {
		return err
	}
	status, body := failureBody(ErrGatewayFailed)
	if err := tx.FailReference(reference, status, body); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("compensate %s: %w", reference, err)
	}

	log.Printf("[TRANSFER] Reversed %d kobo to %s for failed transfer %s", transfer.Amount, src.ID, reference)
	e.postCommitNotify(src.ID, "reversal", &models.TransferReceipt{
		Reference:        reference,
		NewSourceBalance: src.Balance + transfer.Amount,
		Status:           models.TransferReversed,
		Timestamp:        now,
	})
	return nil
}

// FinalizePending marks a pending external transfer settled after the
// reconciler confirms it with the rail. Like CompensateExternal, the pending
// check runs under the transfer row lock.
func (e *Engine) FinalizePending(ctx context.Context, reference string) error {
	tx, err := e.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	transfer, err := tx.LockExternalTransfer(reference)
	if err != nil {
		return err
	}
	if transfer.Status != models.TransferPending {
		return nil
	}

	accounts, err := tx.LockAccounts(transfer.SourceID)
	if err != nil {
		return err
	}
	src, ok := accounts[transfer.SourceID]
	if !ok {
		return ErrAccountNotFound
	}

	receipt := &models.TransferReceipt{
		Reference:        reference,
		NewSourceBalance: src.Balance,
		Status:           models.TransferCompleted,
		Timestamp:        e.now(),
	}
	body, err := json.Marshal(receipt)
	if err != nil {
		return err
	}
	if err := tx.UpdateExternalTransferStatus(reference, models.TransferCompleted); err != nil {
		return err
	}
	if err := tx.CompleteReference(reference, 200, body); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	e.postCommitNotify(transfer.SourceID, "external_debit", receipt)
	return nil
}

// validate runs the internal-transfer precondition chain in contract order,
// short-circuiting on the first failure.
func (e *Engine) validate(tx Tx, src, dst *models.Account, intent *models.TransferIntent) error {
	if src == nil {
		return fmt.Errorf("source: %w", ErrAccountNotFound)
	}
	if !src.IsActive() {
		return fmt.Errorf("source: %w", ErrAccountNotActive)
	}
	if dst == nil {
		return ErrAccountNotFound
	}
	if !dst.IsActive() {
		return ErrAccountNotActive
	}
	return e.checkFunds(tx, src, intent.Amount)
}

func (e *Engine) validateSource(tx Tx, src *models.Account, intent *models.TransferIntent) error {
	if src == nil {
		return fmt.Errorf("source: %w", ErrAccountNotFound)
	}
	if !src.IsActive() {
		return fmt.Errorf("source: %w", ErrAccountNotActive)
	}
	return e.checkFunds(tx, src, intent.Amount)
}

func (e *Engine) checkFunds(tx Tx, src *models.Account, amount int64) error {
	if src.Balance < amount {
		return ErrInsufficientFunds
	}

	lim := e.limits.ForTier(src.KYCTier)
	if amount > lim.PerTransaction {
		return ErrTxnLimitExceeded
	}
	dayStart := e.startOfDay()
	spentToday, err := tx.OutgoingTotalSince(src.ID, dayStart)
	if err != nil {
		return fmt.Errorf("daily limit check: %w", err)
	}
	if spentToday+amount > lim.Daily {
		return ErrDailyLimit
	}
	return nil
}

// recordRejection persists a terminal failed outcome for a business-rule
// rejection so a replay of the reference gets the identical response, then
// returns the original error. Balances are untouched: only the idempotency
// record commits.
func (e *Engine) recordRejection(tx Tx, intent *models.TransferIntent, cause error) error {
	status, body := failureBody(cause)
	if err := tx.FailReference(intent.Reference, status, body); err != nil {
		return cause
	}
	if err := tx.Commit(); err != nil {
		return cause
	}
	e.count(intent.Category, "rejected")
	log.Printf("[TRANSFER] Rejected %s: %v", intent.Reference, cause)
	return cause
}

func (e *Engine) startOfDay() time.Time {
	now := e.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

func (e *Engine) postCommitNotify(accountID, template string, receipt *models.TransferReceipt) {
	if e.notifier == nil {
		return
	}
	e.notifier.Notify(accountID, template, map[string]interface{}{
		"reference": receipt.Reference,
		"status":    receipt.Status,
		"timestamp": receipt.Timestamp,
	})
}

func (e *Engine) count(category, outcome string) {
	if e.metrics != nil {
		e.metrics.TransfersTotal.WithLabelValues(category, outcome).Inc()
	}
}

func (e *Engine) observeCommit(started time.Time) {
	if e.metrics != nil {
		e.metrics.CommitDuration.Observe(e.now().Sub(started).Seconds())
	}
}
