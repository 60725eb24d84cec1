package gateway

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/moov-io/iso20022/pkg/common"
	"github.com/moov-io/iso20022/pkg/pacs_v08"
	"github.com/spf13/viper"
)

// ISO20022Rail speaks pacs.008 to the interbank settlement endpoint and
// reads pacs.002 status reports back. Amounts cross this boundary in naira;
// everything inside the ledger stays in kobo.
type ISO20022Rail struct {
	endpoint string
	bic      string
	client   *http.Client
}

func NewISO20022Rail() *ISO20022Rail {
	viper.SetDefault("rail.endpoint", "http://localhost:9090/settlement")
	viper.SetDefault("rail.bic", "OVOMONIE")
	viper.SetDefault("rail.timeout", 15*time.Second)

	return &ISO20022Rail{
		endpoint: viper.GetString("rail.endpoint"),
		bic:      viper.GetString("rail.bic"),
		client:   &http.Client{Timeout: viper.GetDuration("rail.timeout")},
	}
}

func (r *ISO20022Rail) Transfer(ctx context.Context, req RailRequest) (*RailResult, error) {
	doc, err := r.buildPacs008(req)
	if err != nil {
		return nil, fmt.Errorf("build pacs.008: %w", err)
	}

	xmlData, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal pacs.008: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(xmlData))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/xml")

	log.Printf("[GATEWAY] Sending pacs.008 for reference %s to bank %s", req.Reference, req.BankCode)
	resp, err := r.client.Do(httpReq)
	if err != nil {
		// Timeout or transport failure: the transfer may or may not have
		// been accepted; the caller must reconcile, not assume failure.
		return nil, fmt.Errorf("rail call for %s: %w", req.Reference, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("rail returned status %d for %s", resp.StatusCode, req.Reference)
	}

	var report pacs_v08.FIToFIPaymentStatusReportV08
	if err := xml.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, fmt.Errorf("decode pacs.002 for %s: %w", req.Reference, err)
	}

	status, message := statusFromReport(&report)
	result := &RailResult{Status: status, SessionID: string(report.GrpHdr.MsgId), Message: message}
	if status == StatusFailed {
		return result, fmt.Errorf("%w: %s", ErrRailRejected, message)
	}
	return result, nil
}

func (r *ISO20022Rail) Status(ctx context.Context, reference string) (RailStatus, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/status/%s", r.endpoint, reference), nil)
	if err != nil {
		return StatusUnknown, err
	}

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return StatusUnknown, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		// The rail never saw the transfer, so the debit can be reversed.
		return StatusFailed, nil
	}
	if resp.StatusCode != http.StatusOK {
		return StatusUnknown, fmt.Errorf("status query returned %d", resp.StatusCode)
	}

	var report pacs_v08.FIToFIPaymentStatusReportV08
	if err := xml.NewDecoder(resp.Body).Decode(&report); err != nil {
		return StatusUnknown, err
	}
	status, _ := statusFromReport(&report)
	return status, nil
}

func (r *ISO20022Rail) buildPacs008(req RailRequest) (*pacs_v08.FIToFICustomerCreditTransferV08, error) {
	if req.BankCode == "" || req.BeneficiaryNumber == "" {
		return nil, errors.New("bank code and beneficiary account are required")
	}

	msgID := uuid.New().String()
	now := time.Now()
	amountNaira := float64(req.Amount) / 100

	doc := &pacs_v08.FIToFICustomerCreditTransferV08{
		GrpHdr: pacs_v08.GroupHeader93{
			MsgId:   common.Max35Text(msgID),
			CreDtTm: common.ISODateTime(now),
			NbOfTxs: "1",
			TtlIntrBkSttlmAmt: &pacs_v08.ActiveCurrencyAndAmount{
				Ccy:   common.ActiveCurrencyCode("NGN"),
				Value: amountNaira,
			},
			IntrBkSttlmDt: (*common.ISODate)(&now),
			SttlmInf: pacs_v08.SettlementInstruction7{
				SttlmMtd: "CLRG",
			},
		},
		CdtTrfTxInf: []pacs_v08.CreditTransferTransaction39{
			{
				PmtId: pacs_v08.PaymentIdentification7{
					InstrId:    &[]common.Max35Text{common.Max35Text(req.Reference)}[0],
					EndToEndId: common.Max35Text(req.Reference),
					TxId:       &[]common.Max35Text{common.Max35Text(req.Reference)}[0],
				},
				IntrBkSttlmAmt: pacs_v08.ActiveCurrencyAndAmount{
					Ccy:   common.ActiveCurrencyCode("NGN"),
					Value: amountNaira,
				},
				IntrBkSttlmDt: (*common.ISODate)(&now),
				ChrgBr:        "SLEV",
				DbtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
					FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
						BICFI: &[]common.BICFIDec2014Identifier{common.BICFIDec2014Identifier(r.bic)}[0],
					},
				},
				Dbtr: pacs_v08.PartyIdentification135{
					Nm: &[]common.Max140Text{common.Max140Text(req.SourceName)}[0],
				},
				CdtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
					FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
						ClrSysMmbId: &pacs_v08.ClearingSystemMemberIdentification2{
							MmbId: common.Max35Text(req.BankCode),
						},
					},
				},
				Cdtr: pacs_v08.PartyIdentification135{
					Nm: &[]common.Max140Text{common.Max140Text(req.BeneficiaryName)}[0],
				},
			},
		},
	}

	return doc, nil
}

func statusFromReport(report *pacs_v08.FIToFIPaymentStatusReportV08) (RailStatus, string) {
	if len(report.TxInfAndSts) == 0 || report.TxInfAndSts[0].TxSts == nil {
		return StatusUnknown, "no transaction status in report"
	}
	sts := string(*report.TxInfAndSts[0].TxSts)
	switch sts {
	case "ACSC", "ACCC":
		return StatusCompleted, sts
	case "ACCP", "ACSP", "PDNG":
		// Accepted but not settled: keep the transfer pending.
		return StatusUnknown, sts
	case "RJCT":
		return StatusFailed, sts
	default:
		return StatusUnknown, sts
	}
}
