package services

import (
	"log"
	"net/http"

	"github.com/google/uuid"

	"github.com/ovomonie/backend/internal/ledger"
	"github.com/ovomonie/backend/internal/models"
)

// Biller is one payable service. Payments settle into the biller's
// settlement account through the same ledger path as transfers.
type Biller struct {
	Code              string `json:"code"`
	Name              string `json:"name"`
	Category          string `json:"category"`
	SettlementAccount string `json:"-"`
}

// billers is the supported biller directory keyed by code.
var billers = map[string]Biller{
	"IKEDC":  {Code: "IKEDC", Name: "Ikeja Electric", Category: "electricity", SettlementAccount: "9000000001"},
	"EKEDC":  {Code: "EKEDC", Name: "Eko Electricity", Category: "electricity", SettlementAccount: "9000000002"},
	"DSTV":   {Code: "DSTV", Name: "DStv", Category: "cable_tv", SettlementAccount: "9000000003"},
	"GOTV":   {Code: "GOTV", Name: "GOtv", Category: "cable_tv", SettlementAccount: "9000000004"},
	"MTN":    {Code: "MTN", Name: "MTN Airtime", Category: "airtime", SettlementAccount: "9000000005"},
	"GLO":    {Code: "GLO", Name: "Glo Airtime", Category: "airtime", SettlementAccount: "9000000006"},
	"AIRTEL": {Code: "AIRTEL", Name: "Airtel Airtime", Category: "airtime", SettlementAccount: "9000000007"},
	"LAWMA":  {Code: "LAWMA", Name: "Lagos Waste Management", Category: "utilities", SettlementAccount: "9000000008"},
}

type BillService struct {
	engine    *ledger.Engine
	store     ledger.Store
	auth      *AuthService
	validator *ValidationHelper
}

type BillPaymentRequest struct {
	BillerCode    string  `json:"billerCode" validate:"required"`
	CustomerID    string  `json:"customerId" validate:"required,min=4,max=20"`
	AmountInNaira float64 `json:"amountInNaira" validate:"required,gt=0"`
	Pin           string  `json:"pin" validate:"required,len=4,numeric"`
	Reference     string  `json:"reference"`
}

func NewBillService(engine *ledger.Engine, store ledger.Store, auth *AuthService) *BillService {
	return &BillService{
		engine:    engine,
		store:     store,
		auth:      auth,
		validator: NewValidationHelper(),
	}
}

// ListBillers returns the supported biller directory.
// @Summary List supported billers
// @Tags bills
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /bills/billers [get]
func (s *BillService) ListBillers(w http.ResponseWriter, r *http.Request) {
	list := make([]Biller, 0, len(billers))
	for _, b := range billers {
		list = append(list, b)
	}
	SendData(w, http.StatusOK, map[string]interface{}{"billers": list})
}

// PayBill debits the caller's wallet into a biller's settlement account.
// @Summary Pay a bill
// @Tags bills
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body BillPaymentRequest true "Bill payment request"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} APIError
// @Failure 404 {object} APIError
// @Router /bills/pay [post]
func (s *BillService) PayBill(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok {
		SendError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return
	}

	var req BillPaymentRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		SendError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request", nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendError(w, http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed", err)
		return
	}

	biller, found := billers[req.BillerCode]
	if !found {
		SendError(w, http.StatusNotFound, "BILLER_NOT_FOUND", "Unknown biller code", nil)
		return
	}

	if err := s.auth.VerifyPIN(userID, req.Pin); err != nil {
		SendError(w, http.StatusUnauthorized, "INVALID_PIN", "Incorrect transaction PIN", nil)
		return
	}

	sourceID, err := s.auth.AccountIDForUser(userID)
	if err != nil {
		SendError(w, http.StatusNotFound, "ACCOUNT_NOT_FOUND", "Account not found", nil)
		return
	}
	settlement, err := s.store.AccountByNumber(r.Context(), biller.SettlementAccount)
	if err != nil {
		log.Printf("[BILLS] settlement account missing for %s: %v", biller.Code, err)
		SendError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Biller unavailable", nil)
		return
	}

	reference := req.Reference
	if reference == "" {
		reference = uuid.New().String()
	}

	result, err := s.engine.ExecuteInternal(r.Context(), &models.TransferIntent{
		Reference:     reference,
		SourceID:      sourceID,
		DestinationID: settlement.ID,
		Amount:        nairaToKobo(req.AmountInNaira),
		Category:      models.CategoryBillPayment,
		Narration:     biller.Name + " / " + req.CustomerID,
	})
	if err != nil {
		status, failure := ledger.Classify(err)
		SendError(w, status, failure.Code, failure.Message, nil)
		return
	}
	if result.Replayed {
		SendRaw(w, result.Status, result.Body)
		return
	}

	log.Printf("[BILLS] %s paid %s for customer %s, ref %s", userID, biller.Code, req.CustomerID, reference)
	SendData(w, http.StatusOK, result.Receipt)
}
