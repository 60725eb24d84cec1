package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovomonie/backend/internal/config"
	"github.com/ovomonie/backend/internal/gateway"
	"github.com/ovomonie/backend/internal/models"
)

type fakeRail struct {
	mu           sync.Mutex
	transferErr  error
	transferResp *gateway.RailResult
	statusResp   gateway.RailStatus
	statusErr    error
	calls        int
}

func (f *fakeRail) Transfer(ctx context.Context, req gateway.RailRequest) (*gateway.RailResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.transferErr != nil {
		return nil, f.transferErr
	}
	if f.transferResp != nil {
		return f.transferResp, nil
	}
	return &gateway.RailResult{Status: gateway.StatusCompleted}, nil
}

func (f *fakeRail) Status(ctx context.Context, reference string) (gateway.RailStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusResp, f.statusErr
}

func newTestEngine(rail gateway.BankRail) (*Engine, *MemoryStore) {
	store := NewMemoryStore()
	if rail == nil {
		rail = &fakeRail{}
	}
	return NewEngine(store, config.LoadLimitTable(), rail, nil, nil), store
}

func seedPair(store *MemoryStore, balanceA, balanceB int64) {
	store.SeedAccount(&models.Account{
		ID: "acct-a", AccountNumber: "1111111111", AccountName: "Ada Obi",
		Balance: balanceA, KYCTier: 3, Status: models.AccountActive,
	})
	store.SeedAccount(&models.Account{
		ID: "acct-b", AccountNumber: "2222222222", AccountName: "Bola Ade",
		Balance: balanceB, KYCTier: 3, Status: models.AccountActive,
	})
}

func internalIntent(ref string, amount int64) *models.TransferIntent {
	return &models.TransferIntent{
		Reference:     ref,
		SourceID:      "acct-a",
		DestinationID: "acct-b",
		Amount:        amount,
		Category:      models.CategoryTransfer,
		Narration:     "lunch",
	}
}

func TestExecuteInternal(t *testing.T) {
	ctx := context.Background()

	t.Run("successful transfer moves money and journals both legs", func(t *testing.T) {
		engine, store := newTestEngine(nil)
		seedPair(store, 10_000, 0)

		result, err := engine.ExecuteInternal(ctx, internalIntent("ref-1", 3_000))
		require.NoError(t, err)
		require.NotNil(t, result.Receipt)
		assert.Equal(t, int64(7_000), result.Receipt.NewSourceBalance)
		assert.Equal(t, "Bola Ade", result.Receipt.RecipientName)
		assert.Equal(t, models.TransferCompleted, result.Receipt.Status)

		src, _ := store.AccountByID(ctx, "acct-a")
		dst, _ := store.AccountByID(ctx, "acct-b")
		assert.Equal(t, int64(7_000), src.Balance)
		assert.Equal(t, int64(3_000), dst.Balance)

		srcEntries, _ := store.EntriesForAccount(ctx, "acct-a", 10)
		dstEntries, _ := store.EntriesForAccount(ctx, "acct-b", 10)
		require.Len(t, srcEntries, 1)
		require.Len(t, dstEntries, 1)
		assert.Equal(t, models.EntryDebit, srcEntries[0].Direction)
		assert.Equal(t, models.EntryCredit, dstEntries[0].Direction)
		assert.Equal(t, srcEntries[0].CounterpartyRef, dstEntries[0].ID)
		assert.Equal(t, dstEntries[0].CounterpartyRef, srcEntries[0].ID)
		assert.Equal(t, int64(7_000), srcEntries[0].BalanceAfter)
		assert.Equal(t, int64(3_000), dstEntries[0].BalanceAfter)
	})

	t.Run("same reference twice applies once and replays the response", func(t *testing.T) {
		engine, store := newTestEngine(nil)
		seedPair(store, 10_000, 0)

		first, err := engine.ExecuteInternal(ctx, internalIntent("ref-1", 3_000))
		require.NoError(t, err)

		second, err := engine.ExecuteInternal(ctx, internalIntent("ref-1", 3_000))
		require.NoError(t, err)
		assert.True(t, second.Replayed)
		assert.Equal(t, 200, second.Status)

		var replayed models.TransferReceipt
		require.NoError(t, json.Unmarshal(second.Body, &replayed))
		assert.Equal(t, first.Receipt.Reference, replayed.Reference)
		assert.Equal(t, first.Receipt.NewSourceBalance, replayed.NewSourceBalance)

		src, _ := store.AccountByID(ctx, "acct-a")
		assert.Equal(t, int64(7_000), src.Balance, "second request must not debit again")
	})

	t.Run("insufficient balance is rejected and the rejection replays", func(t *testing.T) {
		engine, store := newTestEngine(nil)
		seedPair(store, 500, 0)

		_, err := engine.ExecuteInternal(ctx, internalIntent("ref-low", 3_000))
		assert.ErrorIs(t, err, ErrInsufficientFunds)

		src, _ := store.AccountByID(ctx, "acct-a")
		assert.Equal(t, int64(500), src.Balance)

		// replay of a recorded rejection returns the stored failure, not a rerun
		result, err := engine.ExecuteInternal(ctx, internalIntent("ref-low", 3_000))
		require.NoError(t, err)
		assert.True(t, result.Replayed)
		assert.Equal(t, 400, result.Status)

		var f Failure
		require.NoError(t, json.Unmarshal(result.Body, &f))
		assert.Equal(t, "INSUFFICIENT_BALANCE", f.Code)
	})

	t.Run("self transfer rejected", func(t *testing.T) {
		engine, store := newTestEngine(nil)
		seedPair(store, 10_000, 0)

		intent := internalIntent("ref-self", 1_000)
		intent.DestinationID = intent.SourceID
		_, err := engine.ExecuteInternal(ctx, intent)
		assert.ErrorIs(t, err, ErrSelfTransfer)
	})

	t.Run("non positive amount rejected", func(t *testing.T) {
		engine, store := newTestEngine(nil)
		seedPair(store, 10_000, 0)

		_, err := engine.ExecuteInternal(ctx, internalIntent("ref-zero", 0))
		assert.ErrorIs(t, err, ErrInvalidAmount)
		_, err = engine.ExecuteInternal(ctx, internalIntent("ref-neg", -50))
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("missing recipient rejected", func(t *testing.T) {
		engine, store := newTestEngine(nil)
		seedPair(store, 10_000, 0)

		intent := internalIntent("ref-missing", 1_000)
		intent.DestinationID = "no-such-account"
		_, err := engine.ExecuteInternal(ctx, intent)
		assert.ErrorIs(t, err, ErrAccountNotFound)
	})

	t.Run("suspended accounts cannot send or receive", func(t *testing.T) {
		engine, store := newTestEngine(nil)
		store.SeedAccount(&models.Account{
			ID: "acct-a", AccountNumber: "1111111111", AccountName: "Ada Obi",
			Balance: 10_000, KYCTier: 3, Status: models.AccountSuspended,
		})
		store.SeedAccount(&models.Account{
			ID: "acct-b", AccountNumber: "2222222222", AccountName: "Bola Ade",
			Balance: 0, KYCTier: 3, Status: models.AccountActive,
		})

		_, err := engine.ExecuteInternal(ctx, internalIntent("ref-susp", 1_000))
		assert.ErrorIs(t, err, ErrAccountNotActive)
	})

	t.Run("reused reference with different payload conflicts", func(t *testing.T) {
		engine, store := newTestEngine(nil)
		seedPair(store, 10_000, 0)

		_, err := engine.ExecuteInternal(ctx, internalIntent("ref-1", 3_000))
		require.NoError(t, err)

		_, err = engine.ExecuteInternal(ctx, internalIntent("ref-1", 4_000))
		assert.ErrorIs(t, err, ErrReferenceMismatch)
	})

	t.Run("per transaction limit enforced by tier", func(t *testing.T) {
		engine, store := newTestEngine(nil)
		store.SeedAccount(&models.Account{
			ID: "acct-a", AccountNumber: "1111111111", AccountName: "Ada Obi",
			Balance: 100_000_00, KYCTier: 1, Status: models.AccountActive,
		})
		store.SeedAccount(&models.Account{
			ID: "acct-b", AccountNumber: "2222222222", AccountName: "Bola Ade",
			Balance: 0, KYCTier: 1, Status: models.AccountActive,
		})

		// tier 1 caps a single transaction at 20,000 naira
		_, err := engine.ExecuteInternal(ctx, internalIntent("ref-cap", 20_000_01))
		assert.ErrorIs(t, err, ErrTxnLimitExceeded)

		_, err = engine.ExecuteInternal(ctx, internalIntent("ref-ok", 20_000_00))
		assert.NoError(t, err)
	})

	t.Run("daily limit counts committed debits in the window", func(t *testing.T) {
		engine, store := newTestEngine(nil)
		store.SeedAccount(&models.Account{
			ID: "acct-a", AccountNumber: "1111111111", AccountName: "Ada Obi",
			Balance: 200_000_00, KYCTier: 1, Status: models.AccountActive,
		})
		store.SeedAccount(&models.Account{
			ID: "acct-b", AccountNumber: "2222222222", AccountName: "Bola Ade",
			Balance: 0, KYCTier: 1, Status: models.AccountActive,
		})

		// tier 1 daily cap is 50,000 naira: two 20k transfers pass,
		// a third pushing the day to 60k fails
		for i, amount := range []int64{20_000_00, 20_000_00} {
			_, err := engine.ExecuteInternal(ctx, internalIntent(fmt.Sprintf("ref-day-%d", i), amount))
			require.NoError(t, err)
		}
		_, err := engine.ExecuteInternal(ctx, internalIntent("ref-day-over", 20_000_00))
		assert.ErrorIs(t, err, ErrDailyLimit)

		// a smaller amount that fits the remaining headroom still passes
		_, err = engine.ExecuteInternal(ctx, internalIntent("ref-day-fit", 10_000_00))
		assert.NoError(t, err)
	})
}

func TestExecuteInternalConcurrent(t *testing.T) {
	ctx := context.Background()

	t.Run("same reference from many goroutines debits once", func(t *testing.T) {
		engine, store := newTestEngine(nil)
		seedPair(store, 10_000, 0)

		const n = 20
		bodies := make([][]byte, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				result, err := engine.ExecuteInternal(ctx, internalIntent("ref-race", 3_000))
				if err != nil {
					t.Errorf("unexpected error: %v", err)
					return
				}
				if result.Replayed {
					bodies[i] = result.Body
				} else {
					bodies[i], _ = json.Marshal(result.Receipt)
				}
			}(i)
		}
		wg.Wait()

		src, _ := store.AccountByID(ctx, "acct-a")
		dst, _ := store.AccountByID(ctx, "acct-b")
		assert.Equal(t, int64(7_000), src.Balance)
		assert.Equal(t, int64(3_000), dst.Balance)

		for i := 1; i < n; i++ {
			assert.JSONEq(t, string(bodies[0]), string(bodies[i]), "all callers must see the same response")
		}

		entries, _ := store.EntriesForAccount(ctx, "acct-a", 100)
		assert.Len(t, entries, 1, "exactly one debit for the reference")
	})

	t.Run("opposing transfers conserve total and never go negative", func(t *testing.T) {
		engine, store := newTestEngine(nil)
		seedPair(store, 50_000, 50_000)

		var wg sync.WaitGroup
		for i := 0; i < 25; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				intent := internalIntent(fmt.Sprintf("ref-ab-%d", i), 4_000)
				engine.ExecuteInternal(ctx, intent)
			}(i)
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				intent := &models.TransferIntent{
					Reference: fmt.Sprintf("ref-ba-%d", i), SourceID: "acct-b",
					DestinationID: "acct-a", Amount: 4_000, Category: models.CategoryTransfer,
				}
				engine.ExecuteInternal(ctx, intent)
			}(i)
		}
		wg.Wait()

		src, _ := store.AccountByID(ctx, "acct-a")
		dst, _ := store.AccountByID(ctx, "acct-b")
		assert.Equal(t, int64(100_000), src.Balance+dst.Balance, "money is conserved")
		assert.GreaterOrEqual(t, src.Balance, int64(0))
		assert.GreaterOrEqual(t, dst.Balance, int64(0))
	})

	t.Run("journal replay reconstructs the stored balance", func(t *testing.T) {
		engine, store := newTestEngine(nil)
		seedPair(store, 50_000, 20_000)

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				engine.ExecuteInternal(ctx, internalIntent(fmt.Sprintf("ref-j-%d", i), 1_500))
			}(i)
		}
		wg.Wait()

		for id, opening := range map[string]int64{"acct-a": 50_000, "acct-b": 20_000} {
			acct, _ := store.AccountByID(ctx, id)
			entries, _ := store.EntriesForAccount(ctx, id, 1000)
			replayed := opening
			for _, e := range entries {
				replayed += e.SignedAmount()
			}
			assert.Equal(t, acct.Balance, replayed, "journal must reproduce balance for %s", id)
		}
	})
}

func externalIntent(ref string, amount int64) *models.TransferIntent {
	return &models.TransferIntent{
		Reference:         ref,
		SourceID:          "acct-a",
		Amount:            amount,
		Category:          models.CategoryWithdrawal,
		Narration:         "rent",
		BankCode:          "058",
		BeneficiaryNumber: "0123456789",
		BeneficiaryName:   "Chinedu Okeke",
	}
}

func TestExecuteExternal(t *testing.T) {
	ctx := context.Background()

	t.Run("rail success settles the transfer", func(t *testing.T) {
		rail := &fakeRail{transferResp: &gateway.RailResult{Status: gateway.StatusCompleted}}
		engine, store := newTestEngine(rail)
		seedPair(store, 10_000, 0)

		result, err := engine.ExecuteExternal(ctx, externalIntent("ext-1", 4_000))
		require.NoError(t, err)
		assert.Equal(t, int64(6_000), result.Receipt.NewSourceBalance)

		src, _ := store.AccountByID(ctx, "acct-a")
		assert.Equal(t, int64(6_000), src.Balance)

		transfer, err := store.ExternalTransferByReference(ctx, "ext-1")
		require.NoError(t, err)
		assert.Equal(t, models.TransferCompleted, transfer.Status)

		rec, err := store.ReferenceRecord(ctx, "ext-1")
		require.NoError(t, err)
		assert.Equal(t, models.IdemCompleted, rec.Status)
	})

	t.Run("definitive rail rejection compensates the debit", func(t *testing.T) {
		rail := &fakeRail{transferErr: gateway.ErrRailRejected}
		engine, store := newTestEngine(rail)
		seedPair(store, 10_000, 0)

		_, err := engine.ExecuteExternal(ctx, externalIntent("ext-2", 4_000))
		assert.ErrorIs(t, err, ErrGatewayFailed)

		src, _ := store.AccountByID(ctx, "acct-a")
		assert.Equal(t, int64(10_000), src.Balance, "debit must be reversed")

		transfer, _ := store.ExternalTransferByReference(ctx, "ext-2")
		assert.Equal(t, models.TransferReversed, transfer.Status)

		entries, _ := store.EntriesForAccount(ctx, "acct-a", 10)
		require.Len(t, entries, 2, "withdrawal debit plus reversal credit")

		// the recorded failure replays for the same reference
		result, err := engine.ExecuteExternal(ctx, externalIntent("ext-2", 4_000))
		require.NoError(t, err)
		assert.True(t, result.Replayed)
		var f Failure
		require.NoError(t, json.Unmarshal(result.Body, &f))
		assert.Equal(t, "GATEWAY_ERROR", f.Code)
	})

	t.Run("ambiguous outcome leaves the transfer pending", func(t *testing.T) {
		rail := &fakeRail{
			transferErr: errors.New("dial tcp: i/o timeout"),
			statusResp:  gateway.StatusUnknown,
		}
		engine, store := newTestEngine(rail)
		seedPair(store, 10_000, 0)

		_, err := engine.ExecuteExternal(ctx, externalIntent("ext-3", 4_000))
		assert.ErrorIs(t, err, ErrOutcomeUnknown)

		src, _ := store.AccountByID(ctx, "acct-a")
		assert.Equal(t, int64(6_000), src.Balance, "funds stay reserved, no blind reversal")

		transfer, _ := store.ExternalTransferByReference(ctx, "ext-3")
		assert.Equal(t, models.TransferPending, transfer.Status)

		rec, _ := store.ReferenceRecord(ctx, "ext-3")
		assert.Equal(t, models.IdemPending, rec.Status)
	})

	t.Run("status query after timeout can settle immediately", func(t *testing.T) {
		rail := &fakeRail{
			transferErr: errors.New("context deadline exceeded"),
			statusResp:  gateway.StatusCompleted,
		}
		engine, store := newTestEngine(rail)
		seedPair(store, 10_000, 0)

		result, err := engine.ExecuteExternal(ctx, externalIntent("ext-4", 4_000))
		require.NoError(t, err)
		assert.Equal(t, models.TransferCompleted, result.Receipt.Status)

		transfer, _ := store.ExternalTransferByReference(ctx, "ext-4")
		assert.Equal(t, models.TransferCompleted, transfer.Status)
	})

	t.Run("insufficient balance fails before the rail is called", func(t *testing.T) {
		rail := &fakeRail{}
		engine, store := newTestEngine(rail)
		seedPair(store, 1_000, 0)

		_, err := engine.ExecuteExternal(ctx, externalIntent("ext-5", 4_000))
		assert.ErrorIs(t, err, ErrInsufficientFunds)
		assert.Equal(t, 0, rail.calls)
	})

	t.Run("compensation is idempotent", func(t *testing.T) {
		rail := &fakeRail{transferErr: errors.New("timeout"), statusResp: gateway.StatusUnknown}
		engine, store := newTestEngine(rail)
		seedPair(store, 10_000, 0)

		_, err := engine.ExecuteExternal(ctx, externalIntent("ext-6", 4_000))
		assert.ErrorIs(t, err, ErrOutcomeUnknown)

		require.NoError(t, engine.CompensateExternal(ctx, "ext-6"))
		require.NoError(t, engine.CompensateExternal(ctx, "ext-6"))

		src, _ := store.AccountByID(ctx, "acct-a")
		assert.Equal(t, int64(10_000), src.Balance, "only one reversal applied")
	})
}

func TestExternalSettlementRaces(t *testing.T) {
	ctx := context.Background()

	t.Run("concurrent compensators refund exactly once", func(t *testing.T) {
		rail := &fakeRail{transferErr: errors.New("timeout"), statusResp: gateway.StatusUnknown}
		engine, store := newTestEngine(rail)
		seedPair(store, 10_000, 0)
		parkPendingTransfer(t, engine, rail, "race-1")

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, engine.CompensateExternal(ctx, "race-1"))
			}()
		}
		wg.Wait()

		src, _ := store.AccountByID(ctx, "acct-a")
		assert.Equal(t, int64(10_000), src.Balance)

		reversals := 0
		entries, _ := store.EntriesForAccount(ctx, "acct-a", 100)
		for _, e := range entries {
			if e.Category == models.CategoryReversal {
				reversals++
			}
		}
		assert.Equal(t, 1, reversals)
	})

	t.Run("finalize racing compensation settles exactly one way", func(t *testing.T) {
		for i := 0; i < 50; i++ {
			rail := &fakeRail{transferErr: errors.New("timeout"), statusResp: gateway.StatusUnknown}
			engine, store := newTestEngine(rail)
			seedPair(store, 10_000, 0)
			ref := fmt.Sprintf("race-2-%d", i)
			parkPendingTransfer(t, engine, rail, ref)

			var wg sync.WaitGroup
			wg.Add(2)
			go func() {
				defer wg.Done()
				engine.FinalizePending(ctx, ref)
			}()
			go func() {
				defer wg.Done()
				engine.CompensateExternal(ctx, ref)
			}()
			wg.Wait()

			transfer, err := store.ExternalTransferByReference(ctx, ref)
			require.NoError(t, err)
			src, _ := store.AccountByID(ctx, "acct-a")

			switch transfer.Status {
			case models.TransferCompleted:
				assert.Equal(t, int64(6_000), src.Balance, "settled transfers must not also refund")
			case models.TransferReversed:
				assert.Equal(t, int64(10_000), src.Balance)
			default:
				t.Fatalf("transfer %s left in %s", ref, transfer.Status)
			}
		}
	})

	t.Run("status update refuses a transfer already settled", func(t *testing.T) {
		rail := &fakeRail{transferErr: errors.New("timeout"), statusResp: gateway.StatusUnknown}
		engine, store := newTestEngine(rail)
		seedPair(store, 10_000, 0)
		parkPendingTransfer(t, engine, rail, "race-3")
		require.NoError(t, engine.FinalizePending(ctx, "race-3"))

		tx, err := store.Begin(ctx)
		require.NoError(t, err)
		defer tx.Rollback()
		err = tx.UpdateExternalTransferStatus("race-3", models.TransferReversed)
		assert.ErrorIs(t, err, ErrTransferResolved)
	})
}
