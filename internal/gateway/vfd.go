package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/spf13/viper"
)

// ErrIssuerRejected means the card issuer definitively declined issuance;
// the reserved funds must be refunded.
var ErrIssuerRejected = errors.New("card issuer rejected request")

// VFDCardIssuer is the JSON client for the VFD virtual-card issuance API.
type VFDCardIssuer struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewVFDCardIssuer() *VFDCardIssuer {
	viper.SetDefault("vfd.base_url", "http://localhost:9091/v1")
	viper.SetDefault("vfd.timeout", 20*time.Second)

	return &VFDCardIssuer{
		baseURL: viper.GetString("vfd.base_url"),
		apiKey:  viper.GetString("vfd.api_key"),
		client:  &http.Client{Timeout: viper.GetDuration("vfd.timeout")},
	}
}

func (v *VFDCardIssuer) Issue(ctx context.Context, req IssueRequest) (*IssueResult, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"reference":   req.Reference,
		"customerRef": req.AccountID,
		"nameOnCard":  req.HolderName,
		"fundingKobo": req.FundingKobo,
		"currency":    "NGN",
		"cardType":    "virtual",
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+"/cards", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+v.apiKey)

	log.Printf("[GATEWAY] Requesting card issuance, reference %s", req.Reference)
	resp, err := v.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("issuer call for %s: %w", req.Reference, err)
	}
	defer resp.Body.Close()

	var body struct {
		Status     string `json:"status"`
		Message    string `json:"message"`
		CardID     string `json:"cardId"`
		MaskedPAN  string `json:"maskedPan"`
		ExpiryDate string `json:"expiryDate"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode issuer response for %s: %w", req.Reference, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK && body.Status == "success":
		return &IssueResult{CardID: body.CardID, MaskedPAN: body.MaskedPAN, ExpiryDate: body.ExpiryDate}, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, fmt.Errorf("%w: %s", ErrIssuerRejected, body.Message)
	default:
		return nil, fmt.Errorf("issuer returned status %d for %s", resp.StatusCode, req.Reference)
	}
}
