package services

import (
	"net/http"
)

type Bank struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// nigerianBanks is the NIP bank directory used for outward transfers.
var nigerianBanks = []Bank{
	{Code: "044", Name: "Access Bank"},
	{Code: "063", Name: "Access Bank (Diamond)"},
	{Code: "401", Name: "ASO Savings and Loans"},
	{Code: "023", Name: "Citibank Nigeria"},
	{Code: "050", Name: "Ecobank Nigeria"},
	{Code: "562", Name: "Ekondo Microfinance Bank"},
	{Code: "070", Name: "Fidelity Bank"},
	{Code: "011", Name: "First Bank of Nigeria"},
	{Code: "214", Name: "First City Monument Bank"},
	{Code: "00103", Name: "Globus Bank"},
	{Code: "058", Name: "Guaranty Trust Bank"},
	{Code: "030", Name: "Heritage Bank"},
	{Code: "301", Name: "Jaiz Bank"},
	{Code: "082", Name: "Keystone Bank"},
	{Code: "526", Name: "Parallex Bank"},
	{Code: "076", Name: "Polaris Bank"},
	{Code: "101", Name: "Providus Bank"},
	{Code: "125", Name: "Rubies MFB"},
	{Code: "221", Name: "Stanbic IBTC Bank"},
	{Code: "068", Name: "Standard Chartered Bank"},
	{Code: "232", Name: "Sterling Bank"},
	{Code: "100", Name: "Suntrust Bank"},
	{Code: "302", Name: "TAJ Bank"},
	{Code: "102", Name: "Titan Trust Bank"},
	{Code: "032", Name: "Union Bank of Nigeria"},
	{Code: "033", Name: "United Bank For Africa"},
	{Code: "215", Name: "Unity Bank"},
	{Code: "035", Name: "Wema Bank"},
	{Code: "057", Name: "Zenith Bank"},
	{Code: "304", Name: "Lotus Bank"},
	{Code: "50211", Name: "Kuda Bank"},
	{Code: "090267", Name: "Kuda Microfinance Bank"},
	{Code: "100002", Name: "Paga"},
	{Code: "110005", Name: "Paycom"},
	{Code: "090405", Name: "Moniepoint MFB"},
	{Code: "090328", Name: "Eyowo"},
	{Code: "090110", Name: "VFD Microfinance Bank"},
	{Code: "090286", Name: "Safe Haven MFB"},
}

var banksByCode = func() map[string]Bank {
	m := make(map[string]Bank, len(nigerianBanks))
	for _, b := range nigerianBanks {
		m[b.Code] = b
	}
	return m
}()

// LookupBank resolves a NIP bank code to its directory entry.
func LookupBank(code string) (Bank, bool) {
	b, ok := banksByCode[code]
	return b, ok
}

type BankService struct{}

func NewBankService() *BankService {
	return &BankService{}
}

// GetAllBanks lists the banks reachable over the interbank rail.
// @Summary List supported banks
// @Tags banks
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /banks [get]
func (bs *BankService) GetAllBanks(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=86400")
	SendData(w, http.StatusOK, map[string]interface{}{"banks": nigerianBanks})
}
