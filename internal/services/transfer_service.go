package services

import (
	"errors"
	"log"
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ovomonie/backend/internal/ledger"
	"github.com/ovomonie/backend/internal/models"
)

// TransferService exposes the money-movement routes. Account resolution and
// PIN checks go through AuthService; every balance mutation goes through the
// ledger engine.
type TransferService struct {
	engine    *ledger.Engine
	store     ledger.Store
	auth      *AuthService
	validator *ValidationHelper
}

// InternalTransferRequest represents a wallet-to-wallet transfer payload.
// Amounts arrive in naira and are converted to kobo at this boundary.
type InternalTransferRequest struct {
	RecipientAccountNumber string  `json:"recipientAccountNumber" validate:"required,len=10,numeric"`
	AmountInNaira          float64 `json:"amount" validate:"required,gt=0"`
	SenderPin              string  `json:"senderPin" validate:"required,len=4,numeric"`
	Reference              string  `json:"clientReference"`
	Narration              string  `json:"narration" validate:"max=140"`
}

// ExternalTransferRequest represents a transfer to an account at another bank.
type ExternalTransferRequest struct {
	BankCode                 string  `json:"bankCode" validate:"required,min=3,max=6,numeric"`
	BeneficiaryAccountNumber string  `json:"accountNumber" validate:"required,len=10,numeric"`
	BeneficiaryName          string  `json:"beneficiaryName" validate:"required,min=2"`
	AmountInNaira            float64 `json:"amount" validate:"required,gt=0"`
	SenderPin                string  `json:"senderPin" validate:"required,len=4,numeric"`
	Reference                string  `json:"clientReference"`
	Narration                string  `json:"narration" validate:"max=140"`
}

func NewTransferService(engine *ledger.Engine, store ledger.Store, auth *AuthService) *TransferService {
	return &TransferService{
		engine:    engine,
		store:     store,
		auth:      auth,
		validator: NewValidationHelper(),
	}
}

// nairaToKobo converts a naira amount to kobo, rounding to the nearest kobo.
func nairaToKobo(naira float64) int64 {
	return int64(math.Round(naira * 100))
}

// InternalTransfer moves money between two Ovomonie wallets.
// @Summary Transfer to another Ovomonie wallet
// @Tags transfers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body InternalTransferRequest true "Transfer request"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} APIError
// @Failure 401 {object} APIError
// @Failure 409 {object} APIError
// @Router /transfers/internal [post]
func (s *TransferService) InternalTransfer(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok {
		SendError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return
	}

	var req InternalTransferRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		SendError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request", nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendError(w, http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed", err)
		return
	}

	if err := s.auth.VerifyPIN(userID, req.SenderPin); err != nil {
		log.Printf("[TRANSFER] PIN check failed for user %s: %v", userID, err)
		SendError(w, http.StatusUnauthorized, "INVALID_PIN", "Incorrect transaction PIN", nil)
		return
	}

	sourceID, err := s.auth.AccountIDForUser(userID)
	if err != nil {
		SendError(w, http.StatusNotFound, "ACCOUNT_NOT_FOUND", "Account not found", nil)
		return
	}

	recipient, err := s.store.AccountByNumber(r.Context(), req.RecipientAccountNumber)
	if err != nil {
		SendError(w, http.StatusNotFound, "ACCOUNT_NOT_FOUND", "Recipient account not found", nil)
		return
	}

	reference := req.Reference
	if reference == "" {
		reference = uuid.New().String()
	}

	intent := &models.TransferIntent{
		Reference:     reference,
		SourceID:      sourceID,
		DestinationID: recipient.ID,
		Amount:        nairaToKobo(req.AmountInNaira),
		Category:      models.CategoryTransfer,
		Narration:     req.Narration,
	}

	result, err := s.engine.ExecuteInternal(r.Context(), intent)
	if err != nil {
		status, failure := ledger.Classify(err)
		log.Printf("[TRANSFER] %s rejected: %s", reference, failure.Code)
		SendError(w, status, failure.Code, failure.Message, nil)
		return
	}
	if result.Replayed {
		SendRaw(w, result.Status, result.Body)
		return
	}

	SendData(w, http.StatusOK, result.Receipt)
}

// ExternalTransfer sends money to an account at another bank over the
// interbank rail. An unresolved rail outcome returns 202; the reconciler
// settles it.
// @Summary Transfer to another bank
// @Tags transfers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ExternalTransferRequest true "Transfer request"
// @Success 200 {object} map[string]interface{}
// @Success 202 {object} map[string]interface{}
// @Failure 400 {object} APIError
// @Failure 500 {object} APIError
// @Router /transfers/external [post]
func (s *TransferService) ExternalTransfer(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok {
		SendError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return
	}

	var req ExternalTransferRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		SendError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request", nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendError(w, http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed", err)
		return
	}

	if _, known := LookupBank(req.BankCode); !known {
		SendError(w, http.StatusBadRequest, "UNKNOWN_BANK", "Unrecognized bank code", nil)
		return
	}

	if err := s.auth.VerifyPIN(userID, req.SenderPin); err != nil {
		SendError(w, http.StatusUnauthorized, "INVALID_PIN", "Incorrect transaction PIN", nil)
		return
	}

	sourceID, err := s.auth.AccountIDForUser(userID)
	if err != nil {
		SendError(w, http.StatusNotFound, "ACCOUNT_NOT_FOUND", "Account not found", nil)
		return
	}

	reference := req.Reference
	if reference == "" {
		reference = uuid.New().String()
	}

	intent := &models.TransferIntent{
		Reference:         reference,
		SourceID:          sourceID,
		Amount:            nairaToKobo(req.AmountInNaira),
		Category:          models.CategoryWithdrawal,
		Narration:         req.Narration,
		BankCode:          req.BankCode,
		BeneficiaryNumber: req.BeneficiaryAccountNumber,
		BeneficiaryName:   req.BeneficiaryName,
	}

	result, err := s.engine.ExecuteExternal(r.Context(), intent)
	if errors.Is(err, ledger.ErrOutcomeUnknown) {
		log.Printf("[TRANSFER] %s outcome pending, handed to reconciler", reference)
		SendData(w, http.StatusAccepted, map[string]interface{}{
			"reference": reference,
			"status":    models.TransferPending,
			"message":   "Transfer is being processed",
		})
		return
	}
	if err != nil {
		status, failure := ledger.Classify(err)
		log.Printf("[TRANSFER] external %s rejected: %s", reference, failure.Code)
		SendError(w, status, failure.Code, failure.Message, nil)
		return
	}
	if result.Replayed {
		SendRaw(w, result.Status, result.Body)
		return
	}

	SendData(w, http.StatusOK, result.Receipt)
}

// TransferStatus reports the recorded outcome of a transfer reference.
// @Summary Get transfer status by reference
// @Tags transfers
// @Produce json
// @Security BearerAuth
// @Param reference path string true "Transfer reference"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} APIError
// @Router /transfers/{reference} [get]
func (s *TransferService) TransferStatus(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "reference")
	if reference == "" {
		SendError(w, http.StatusBadRequest, "INVALID_REQUEST", "Reference is required", nil)
		return
	}

	record, err := s.store.ReferenceRecord(r.Context(), reference)
	if err != nil {
		SendError(w, http.StatusNotFound, "TRANSFER_NOT_FOUND", "No transfer with that reference", nil)
		return
	}

	payload := map[string]interface{}{
		"reference": reference,
		"status":    record.Status,
		"updatedAt": record.UpdatedAt.Format(time.RFC3339),
	}
	if ext, err := s.store.ExternalTransferByReference(r.Context(), reference); err == nil {
		payload["railStatus"] = ext.Status
		payload["bankCode"] = ext.BankCode
		payload["beneficiaryAccountNumber"] = ext.BeneficiaryNumber
	}
	SendData(w, http.StatusOK, payload)
}

// Balance returns the caller's wallet balance.
// @Summary Get wallet balance
// @Tags accounts
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Router /balance [get]
func (s *TransferService) Balance(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok {
		SendError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
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

	SendData(w, http.StatusOK, map[string]interface{}{
		"accountNumber":  account.AccountNumber,
		"accountName":    account.AccountName,
		"balanceInKobo":  account.Balance,
		"balanceInNaira": float64(account.Balance) / 100,
		"kycTier":        account.KYCTier,
		"status":         account.Status,
	})
}

// NameEnquiry resolves an Ovomonie account number to its holder's name.
// @Summary Resolve an account number to an account name
// @Tags accounts
// @Produce json
// @Security BearerAuth
// @Param accountNumber query string true "Account number"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} APIError
// @Router /accounts/name-enquiry [get]
func (s *TransferService) NameEnquiry(w http.ResponseWriter, r *http.Request) {
	accountNumber := r.URL.Query().Get("accountNumber")
	if len(accountNumber) != 10 {
		SendError(w, http.StatusBadRequest, "INVALID_REQUEST", "accountNumber must be 10 digits", nil)
		return
	}

	account, err := s.store.AccountByNumber(r.Context(), accountNumber)
	if err != nil {
		SendError(w, http.StatusNotFound, "ACCOUNT_NOT_FOUND", "Account not found", nil)
		return
	}

	SendData(w, http.StatusOK, map[string]interface{}{
		"accountNumber": account.AccountNumber,
		"accountName":   account.AccountName,
	})
}

// Transactions lists the caller's journal entries, newest first.
// @Summary List recent transactions
// @Tags accounts
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Router /transactions [get]
func (s *TransferService) Transactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok {
		SendError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return
	}

	accountID, err := s.auth.AccountIDForUser(userID)
	if err != nil {
		SendError(w, http.StatusNotFound, "ACCOUNT_NOT_FOUND", "Account not found", nil)
		return
	}

	entries, err := s.store.EntriesForAccount(r.Context(), accountID, 50)
	if err != nil {
		log.Printf("[TRANSFER] transaction listing failed for %s: %v", accountID, err)
		SendError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load transactions", nil)
		return
	}

	SendData(w, http.StatusOK, map[string]interface{}{
		"transactions": entries,
		"count":        len(entries),
	})
}
