package services

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image/png"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/skip2/go-qrcode"

	"github.com/ovomonie/backend/internal/ledger"
)

// QRService issues scannable payment requests. A request pins the payee's
// account details and amount in redis for a short window; the payer's app
// resolves it and submits a normal internal transfer.
type QRService struct {
	redis     *redis.Client
	store     ledger.Store
	auth      *AuthService
	validator *ValidationHelper
}

type PaymentRequestBody struct {
	AmountInNaira float64 `json:"amountInNaira" validate:"required,gt=0"`
	Narration     string  `json:"narration" validate:"max=140"`
}

const qrTTL = 15 * time.Minute

func NewQRService(redisClient *redis.Client, store ledger.Store, auth *AuthService) *QRService {
	return &QRService{
		redis:     redisClient,
		store:     store,
		auth:      auth,
		validator: NewValidationHelper(),
	}
}

// CreatePaymentRequest generates a QR code encoding a request to pay the
// caller.
// @Summary Create a QR payment request
// @Tags qr
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body PaymentRequestBody true "Payment request"
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} APIError
// @Router /qr/payment-request [post]
func (s *QRService) CreatePaymentRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok {
		SendError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return
	}
	if s.redis == nil {
		SendError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "QR payments are temporarily unavailable", nil)
		return
	}

	var req PaymentRequestBody
	if err := decodeJSONBody(w, r, &req); err != nil {
		SendError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request", nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendError(w, http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed", err)
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

	code, image, err := s.generate(r.Context(), map[string]any{
		"accountNumber": account.AccountNumber,
		"accountName":   account.AccountName,
		"amountInKobo":  nairaToKobo(req.AmountInNaira),
		"narration":     req.Narration,
		"createdAt":     time.Now().Unix(),
		"nonce":         generateNonce(),
	})
	if err != nil {
		SendError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to generate QR code", nil)
		return
	}

	SendData(w, http.StatusOK, map[string]interface{}{
		"code":             code,
		"qrImage":          image,
		"expiresInSeconds": int(qrTTL.Seconds()),
	})
}

// ResolvePaymentRequest decodes a scanned QR code into payee details the
// payer's app can prefill. Resolution consumes the code.
// @Summary Resolve a scanned QR payment request
// @Tags qr
// @Produce json
// @Security BearerAuth
// @Param code path string true "QR code payload"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} APIError
// @Router /qr/{code} [get]
func (s *QRService) ResolvePaymentRequest(w http.ResponseWriter, r *http.Request) {
	if s.redis == nil {
		SendError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "QR payments are temporarily unavailable", nil)
		return
	}

	code := chi.URLParam(r, "code")
	key := fmt.Sprintf("qr:%s", code)

	data, err := s.redis.Get(r.Context(), key).Bytes()
	if err == redis.Nil {
		SendError(w, http.StatusNotFound, "QR_EXPIRED", "Invalid or expired QR code", nil)
		return
	}
	if err != nil {
		SendError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to resolve QR code", nil)
		return
	}

	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		SendError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to resolve QR code", nil)
		return
	}

	s.redis.Del(r.Context(), key)
	SendData(w, http.StatusOK, payload)
}

func (s *QRService) generate(ctx context.Context, payload map[string]any) (string, string, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", "", err
	}

	code := base64.URLEncoding.EncodeToString(jsonData)
	if err := s.redis.Set(ctx, fmt.Sprintf("qr:%s", code), jsonData, qrTTL).Err(); err != nil {
		return "", "", err
	}

	qr, err := qrcode.New(code, qrcode.Medium)
	if err != nil {
		return "", "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(256)); err != nil {
		return "", "", err
	}

	return code, base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func generateNonce() string {
	b := make([]byte, 16)
	rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}
