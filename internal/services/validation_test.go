package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendData(t *testing.T) {
	rec := httptest.NewRecorder()
	SendData(rec, http.StatusOK, map[string]string{"hello": "world"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"ok":true,"data":{"hello":"world"}}`, rec.Body.String())
}

func TestSendErrorWithValidationDetails(t *testing.T) {
	vh := NewValidationHelper()
	err := vh.ValidateStruct(InternalTransferRequest{
		RecipientAccountNumber: "12",
		AmountInNaira:          -1,
		SenderPin:              "1234",
		Reference:              "ref-1",
	})
	require.Error(t, err)

	rec := httptest.NewRecorder()
	SendError(rec, http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed", err)

	var resp APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.OK)
	assert.Equal(t, "VALIDATION_FAILED", resp.Code)
	assert.Contains(t, resp.Details, "RecipientAccountNumber")
	assert.Contains(t, resp.Details, "AmountInNaira")
}

func TestSendRaw(t *testing.T) {
	t.Run("success body replays under the success envelope", func(t *testing.T) {
		rec := httptest.NewRecorder()
		SendRaw(rec, http.StatusOK, json.RawMessage(`{"reference":"ref-1"}`))
		assert.JSONEq(t, `{"ok":true,"data":{"reference":"ref-1"}}`, rec.Body.String())
	})

	t.Run("failure body replays under the failure envelope", func(t *testing.T) {
		rec := httptest.NewRecorder()
		SendRaw(rec, http.StatusBadRequest, json.RawMessage(`{"code":"INSUFFICIENT_BALANCE","message":"insufficient balance"}`))
		assert.JSONEq(t, `{"ok":false,"code":"INSUFFICIENT_BALANCE","message":"insufficient balance"}`, rec.Body.String())
	})
}

func TestDecodeJSONBody(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	t.Run("decodes a single object", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", strings.NewReader(`{"name":"ade"}`))
		rec := httptest.NewRecorder()
		var p payload
		require.NoError(t, decodeJSONBody(rec, req, &p))
		assert.Equal(t, "ade", p.Name)
	})

	t.Run("rejects unknown fields", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", strings.NewReader(`{"name":"ade","extra":1}`))
		rec := httptest.NewRecorder()
		var p payload
		assert.Error(t, decodeJSONBody(rec, req, &p))
	})

	t.Run("rejects trailing JSON", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", strings.NewReader(`{"name":"ade"}{"name":"bola"}`))
		rec := httptest.NewRecorder()
		var p payload
		assert.Error(t, decodeJSONBody(rec, req, &p))
	})
}
