package ledger

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Failure is the machine-readable shape persisted for a rejected intent and
// served on every replay of its reference.
type Failure struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Classify maps an engine error onto the stable external vocabulary: an
// HTTP status and a code the caller can branch on. Both the route boundary
// and the idempotency snapshot use this one mapping so a replayed failure
// is byte-identical to the original.
func Classify(err error) (int, Failure) {
	switch {
	case errors.Is(err, ErrInvalidAmount):
		return http.StatusBadRequest, Failure{Code: "INVALID_AMOUNT", Message: "Amount must be greater than zero"}
	case errors.Is(err, ErrSelfTransfer):
		return http.StatusBadRequest, Failure{Code: "SELF_TRANSFER", Message: "Cannot transfer to the same account"}
	case errors.Is(err, ErrInsufficientFunds):
		return http.StatusBadRequest, Failure{Code: "INSUFFICIENT_BALANCE", Message: "Insufficient balance"}
	case errors.Is(err, ErrTxnLimitExceeded):
		return http.StatusBadRequest, Failure{Code: "TXN_LIMIT_EXCEEDED", Message: "Amount exceeds the single transaction limit for your KYC tier"}
	case errors.Is(err, ErrDailyLimit):
		return http.StatusBadRequest, Failure{Code: "DAILY_LIMIT_EXCEEDED", Message: "Daily transfer limit for your KYC tier exceeded"}
	case errors.Is(err, ErrAccountNotFound):
		return http.StatusNotFound, Failure{Code: "ACCOUNT_NOT_FOUND", Message: "Recipient account not found"}
	case errors.Is(err, ErrAccountNotActive):
		return http.StatusForbidden, Failure{Code: "ACCOUNT_NOT_ACTIVE", Message: "Account is not active"}
	case errors.Is(err, ErrDuplicateInFlight):
		return http.StatusConflict, Failure{Code: "DUPLICATE_REQUEST", Message: "A request with this reference is already in progress"}
	case errors.Is(err, ErrReferenceMismatch):
		return http.StatusConflict, Failure{Code: "REFERENCE_MISMATCH", Message: "Reference was already used with a different payload"}
	case errors.Is(err, ErrGatewayFailed):
		return http.StatusInternalServerError, Failure{Code: "GATEWAY_ERROR", Message: "Bank transfer failed and has been reversed"}
	default:
		return http.StatusInternalServerError, Failure{Code: "INTERNAL_ERROR", Message: "Failed to process transfer"}
	}
}

func failureBody(err error) (int, []byte) {
	status, f := Classify(err)
	body, _ := json.Marshal(f)
	return status, body
}
