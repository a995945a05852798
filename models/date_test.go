package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateJSON(t *testing.T) {
	var payload struct {
		Date    Date  `json:"date"`
		Due     *Date `json:"due"`
		Missing Date  `json:"missing"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"date":"2026-10-18","due":"2026-11-17T10:00:00Z","missing":null}`), &payload))
	assert.Equal(t, "2026-10-18", payload.Date.String())
	require.NotNil(t, payload.Due)
	assert.Equal(t, "2026-11-17", payload.Due.String())
	assert.True(t, payload.Missing.IsZero())

	out, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"date":"2026-10-18","due":"2026-11-17","missing":null}`, string(out))

	var bad struct {
		Date Date `json:"date"`
	}
	assert.Error(t, json.Unmarshal([]byte(`{"date":"18.10.2026"}`), &bad))
}

func TestDateScan(t *testing.T) {
	want := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)
	for _, src := range []interface{}{
		time.Date(2026, 10, 18, 15, 4, 5, 0, time.UTC),
		[]byte("2026-10-18"),
		"2026-10-18 00:00:00+00:00",
	} {
		var d Date
		require.NoError(t, d.Scan(src), "%v", src)
		assert.True(t, want.Equal(d.Time), "%v scanned as %s", src, d.Time)
	}

	var d Date
	require.NoError(t, d.Scan(nil))
	assert.True(t, d.IsZero())
	assert.Error(t, d.Scan(42))
}

func TestDerivePaymentStatus(t *testing.T) {
	tests := []struct {
		paid, remaining string
		want            InvoiceStatus
	}{
		{"0", "100", InvoiceStatusUnpaid},
		{"40", "60", InvoiceStatusPartial},
		{"100", "0", InvoiceStatusPaid},
		{"0", "0", InvoiceStatusPaid},
	}
	for _, tt := range tests {
		got := DerivePaymentStatus(decimal.RequireFromString(tt.paid), decimal.RequireFromString(tt.remaining))
		assert.Equal(t, tt.want, got, "paid=%s remaining=%s", tt.paid, tt.remaining)
	}
}

func TestPaymentMethodJSON(t *testing.T) {
	var p NewPayment
	require.NoError(t, json.Unmarshal([]byte(`{"customer_id":1,"amount":"10","payment_method":"bank_transfer"}`), &p))
	assert.Equal(t, PaymentMethodBankTransfer, p.PaymentMethod)
	assert.Error(t, json.Unmarshal([]byte(`{"payment_method":"barter"}`), &p))
}

func TestNewPaymentAcceptsFormattedAmounts(t *testing.T) {
	cases := map[string]string{
		`{"customer_id":1,"amount":250.5,"payment_method":"cash"}`:         "250.5",
		`{"customer_id":1,"amount":"20,000","payment_method":"cash"}`:      "20000",
		`{"customer_id":1,"amount":"TL 1250.50","payment_method":"check"}`: "1250.5",
		`{"customer_id":1,"payment_method":"cash"}`:                        "0",
	}
	for body, want := range cases {
		var p NewPayment
		require.NoError(t, json.Unmarshal([]byte(body), &p), body)
		assert.True(t, decimal.RequireFromString(want).Equal(p.Amount), "%s -> %s", body, p.Amount)
		assert.Equal(t, 1, p.CustomerId)
	}

	var p NewPayment
	assert.Error(t, json.Unmarshal([]byte(`{"amount":"n/a","payment_method":"cash"}`), &p))
	assert.Error(t, json.Unmarshal([]byte(`{"amount":"12abc34","payment_method":"cash"}`), &p))
	assert.Error(t, json.Unmarshal([]byte(`{"amount":"10","payment_method":"barter"}`), &p))
}
