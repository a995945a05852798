package models

import (
	"bytes"
	"encoding/json"

	"bitbucket.org/mmdatafocus/cari_backend/utils"
	"github.com/shopspring/decimal"
)

// parseAmountJSON accepts a JSON number or a formatted string such as "20,000.50" or "TL 150".
func parseAmountJSON(raw json.RawMessage) (decimal.Decimal, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return decimal.Zero, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return decimal.Zero, err
		}
		return utils.ParseAmount(s)
	}
	return decimal.NewFromString(string(raw))
}

func (p *NewPayment) UnmarshalJSON(b []byte) error {
	type alias NewPayment
	aux := struct {
		*alias
		Amount json.RawMessage `json:"amount"`
	}{alias: (*alias)(p)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	amount, err := parseAmountJSON(aux.Amount)
	if err != nil {
		return err
	}
	p.Amount = amount
	return nil
}
