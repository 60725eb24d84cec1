package services

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"

	"github.com/ovomonie/backend/internal/gateway"
	"github.com/ovomonie/backend/internal/ledger"
	"github.com/ovomonie/backend/internal/models"
)

// CardService provisions virtual cards. Funding moves wallet money into the
// card suspense account through the ledger engine before the issuer is
// called. Each funding is tracked in card_fundings so a crash between the
// funding commit and the card record leaves a PENDING row the funding sweep
// can resolve instead of stranding money in suspense.
type CardService struct {
	db         *sql.DB
	engine     *ledger.Engine
	store      ledger.Store
	auth       *AuthService
	issuer     gateway.CardIssuer
	validator  *ValidationHelper
	fundingAge time.Duration
}

type VirtualCardRequest struct {
	AmountInNaira float64 `json:"amountInNaira" validate:"required,gt=0"`
	Pin           string  `json:"pin" validate:"required,len=4,numeric"`
	Reference     string  `json:"reference"`
}

type VirtualCard struct {
	ID         string `json:"id"`
	MaskedPAN  string `json:"maskedPan"`
	ExpiryDate string `json:"expiryDate"`
	HolderName string `json:"holderName"`
	Status     string `json:"status"`
}

func NewCardService(db *sql.DB, engine *ledger.Engine, store ledger.Store, auth *AuthService, issuer gateway.CardIssuer) *CardService {
	return &CardService{
		db:         db,
		engine:     engine,
		store:      store,
		auth:       auth,
		issuer:     issuer,
		validator:  NewValidationHelper(),
		fundingAge: 10 * time.Minute,
	}
}

// CreateVirtualCard funds and provisions a virtual card.
// @Summary Create a funded virtual card
// @Tags cards
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body VirtualCardRequest true "Card request"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} APIError
// @Failure 409 {object} APIError
// @Failure 500 {object} APIError
// @Router /cards/virtual-new [post]
func (s *CardService) CreateVirtualCard(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok {
		SendError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return
	}

	var req VirtualCardRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		SendError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request", nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendError(w, http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed", err)
		return
	}

	if err := s.auth.VerifyPIN(userID, req.Pin); err != nil {
		SendError(w, http.StatusUnauthorized, "INVALID_PIN", "Incorrect transaction PIN", nil)
		return
	}

	var existing int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM virtual_cards WHERE user_id = $1 AND status = 'ACTIVE'`, userID).Scan(&existing); err != nil {
		SendError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Card lookup failed", nil)
		return
	}
	if existing > 0 {
		SendError(w, http.StatusConflict, "CARD_EXISTS", "An active virtual card already exists", nil)
		return
	}

	accountID, err := s.auth.AccountIDForUser(userID)
	if err != nil {
		SendError(w, http.StatusNotFound, "ACCOUNT_NOT_FOUND", "Account not found", nil)
		return
	}
	account, err := s.store.AccountByID(r.Context(), accountID)
	if err != nil {
		SendError(w, http.StatusNotFound, "ACCOUNT_NOT_FOUND", "Account not found", nil)
		return
	}

	suspense, err := s.store.AccountByNumber(r.Context(), viper.GetString("cards.suspense_account"))
	if err != nil {
		log.Printf("[CARD] card suspense account missing: %v", err)
		SendError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Card funding unavailable", nil)
		return
	}

	reference := req.Reference
	if reference == "" {
		reference = uuid.New().String()
	}
	amount := nairaToKobo(req.AmountInNaira)

	// Persist the saga state before moving money: if the process dies after
	// the funding commits, the sweep finds this row and refunds.
	if _, err := s.db.Exec(`
		INSERT INTO card_fundings (reference, user_id, account_id, suspense_id, amount, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		ON CONFLICT (reference) DO NOTHING`,
		reference, userID, accountID, suspense.ID, amount, models.TransferPending); err != nil {
		log.Printf("[CARD] funding record for %s failed: %v", reference, err)
		SendError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Card funding unavailable", nil)
		return
	}

	result, err := s.engine.ExecuteInternal(r.Context(), &models.TransferIntent{
		Reference:     reference,
		SourceID:      accountID,
		DestinationID: suspense.ID,
		Amount:        amount,
		Category:      models.CategoryCardFunding,
		Narration:     "Virtual card funding",
	})
	if err != nil {
		s.markFunding(reference, models.TransferFailed)
		status, failure := ledger.Classify(err)
		SendError(w, status, failure.Code, failure.Message, nil)
		return
	}
	if result.Replayed {
		SendError(w, http.StatusConflict, "DUPLICATE_REQUEST", "This card request was already processed", nil)
		return
	}

	issued, err := s.issuer.Issue(r.Context(), gateway.IssueRequest{
		Reference:   reference,
		AccountID:   accountID,
		HolderName:  account.AccountName,
		FundingKobo: amount,
	})
	if err != nil {
		// The request context may already be cancelled (client gone); the
		// refund must still run.
		refundCtx := context.WithoutCancel(r.Context())
		if refundErr := s.refundFunding(refundCtx, reference, suspense.ID, accountID, amount); refundErr == nil {
			s.markFunding(reference, models.TransferReversed)
		}
		if errors.Is(err, gateway.ErrIssuerRejected) {
			SendError(w, http.StatusInternalServerError, "VFD_ERROR", "Card issuer rejected the request", nil)
			return
		}
		log.Printf("[CARD] issuer call failed for %s: %v", reference, err)
		SendError(w, http.StatusInternalServerError, "VFD_ERROR", "Card issuer is unavailable", nil)
		return
	}

	card := VirtualCard{
		ID:         issued.CardID,
		MaskedPAN:  issued.MaskedPAN,
		ExpiryDate: issued.ExpiryDate,
		HolderName: account.AccountName,
		Status:     "ACTIVE",
	}
	_, err = s.db.Exec(`
		INSERT INTO virtual_cards (id, user_id, masked_pan, expiry_date, funding_reference, status, created_at)
		VALUES ($1, $2, $3, $4, $5, 'ACTIVE', NOW())`,
		card.ID, userID, card.MaskedPAN, card.ExpiryDate, reference)
	if err != nil {
		log.Printf("[CARD] failed to persist card %s for %s: %v", card.ID, userID, err)
		SendError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to save card", nil)
		return
	}
	s.markFunding(reference, models.TransferCompleted)

	log.Printf("[CARD] Virtual card %s issued for user %s", card.ID, userID)
	SendData(w, http.StatusOK, map[string]interface{}{"card": card})
}

// refundFunding reverses the suspense-account debit after a failed issue
// call. The derived reference keeps the refund idempotent: a replay by the
// funding sweep credits nothing twice.
func (s *CardService) refundFunding(ctx context.Context, reference, suspenseID, accountID string, amount int64) error {
	_, err := s.engine.ExecuteInternal(ctx, &models.TransferIntent{
		Reference:     reference + "-refund",
		SourceID:      suspenseID,
		DestinationID: accountID,
		Amount:        amount,
		Category:      models.CategoryReversal,
		Narration:     "Virtual card funding refund",
	})
	if err != nil {
		log.Printf("[CARD] refund of %s failed, reconciliation required: %v", reference, err)
	}
	return err
}

// markFunding transitions a PENDING card funding to a terminal state.
func (s *CardService) markFunding(reference, status string) {
	if _, err := s.db.Exec(`
		UPDATE card_fundings SET status = $1, updated_at = NOW()
		WHERE reference = $2 AND status = $3`,
		status, reference, models.TransferPending); err != nil {
		log.Printf("[CARD] funding %s status update failed: %v", reference, err)
	}
}

// ReconcilePendingFundings resolves card fundings whose request died midway.
// A funding whose card exists is settled; one whose money reached suspense
// but produced no card is refunded; one whose funding transfer never
// committed is closed with nothing to move back.
func (s *CardService) ReconcilePendingFundings(ctx context.Context) {
	type funding struct {
		reference  string
		accountID  string
		suspenseID string
		amount     int64
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT reference, account_id, suspense_id, amount FROM card_fundings
		WHERE status = $1 AND created_at < $2`,
		models.TransferPending, time.Now().Add(-s.fundingAge))
	if err != nil {
		log.Printf("[CARD] pending funding sweep failed: %v", err)
		return
	}
	var stuck []funding
	for rows.Next() {
		var f funding
		if err := rows.Scan(&f.reference, &f.accountID, &f.suspenseID, &f.amount); err != nil {
			rows.Close()
			log.Printf("[CARD] pending funding scan failed: %v", err)
			return
		}
		stuck = append(stuck, f)
	}
	rows.Close()

	for _, f := range stuck {
		var issued int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM virtual_cards WHERE funding_reference = $1`, f.reference).Scan(&issued); err != nil {
			log.Printf("[CARD] card lookup for funding %s failed: %v", f.reference, err)
			continue
		}
		if issued > 0 {
			s.markFunding(f.reference, models.TransferCompleted)
			continue
		}

		rec, err := s.store.ReferenceRecord(ctx, f.reference)
		if err != nil || rec.Status != models.IdemCompleted {
			// The funding transfer never committed; no money to recover.
			s.markFunding(f.reference, models.TransferFailed)
			continue
		}

		if err := s.refundFunding(ctx, f.reference, f.suspenseID, f.accountID, f.amount); err != nil {
			continue
		}
		s.markFunding(f.reference, models.TransferReversed)
		log.Printf("[CARD] Refunded stranded card funding %s", f.reference)
	}
}

// ListCards returns the caller's virtual cards.
// @Summary List virtual cards
// @Tags cards
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Router /cards [get]
func (s *CardService) ListCards(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok {
		SendError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return
	}

	rows, err := s.db.Query(`
		SELECT id, masked_pan, expiry_date, status FROM virtual_cards
		WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		SendError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Card lookup failed", nil)
		return
	}
	defer rows.Close()

	cards := []VirtualCard{}
	for rows.Next() {
		var c VirtualCard
		if err := rows.Scan(&c.ID, &c.MaskedPAN, &c.ExpiryDate, &c.Status); err != nil {
			SendError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Card lookup failed", nil)
			return
		}
		cards = append(cards, c)
	}

	SendData(w, http.StatusOK, map[string]interface{}{"cards": cards})
}
