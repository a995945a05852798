package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Settings gathers the ledger's tunables so they can be passed to the
// workflow services instead of being read from the environment at call time.
type Settings struct {
	InvoicePrefix      string
	DeliveryNotePrefix string
	PaymentPrefix      string

	// flat percentage applied on consolidation when the request omits one
	InvoiceTaxRate         decimal.Decimal
	InvoicePaymentTermDays int

	SignatureMaxWidth  int
	SignatureMaxHeight int

	NotificationTopic       string
	NotificationQueueSize   int
	NotificationWorkers     int
	NotificationMaxAttempts int

	ConsolidationLockEnabled bool
}

func DefaultSettings() Settings {
	return Settings{
		InvoicePrefix:           "INV",
		DeliveryNotePrefix:      "DN",
		PaymentPrefix:           "PAY",
		InvoiceTaxRate:          decimal.Zero,
		InvoicePaymentTermDays:  30,
		SignatureMaxWidth:       600,
		SignatureMaxHeight:      300,
		NotificationQueueSize:   256,
		NotificationWorkers:     2,
		NotificationMaxAttempts: 8,
	}
}

// LoadSettings reads overrides from the environment (and .env):
// - SEQUENCE_PREFIX_INVOICE / SEQUENCE_PREFIX_DELIVERY_NOTE / SEQUENCE_PREFIX_PAYMENT
// - INVOICE_TAX_RATE (percent), INVOICE_PAYMENT_TERM_DAYS
// - SIGNATURE_MAX_WIDTH / SIGNATURE_MAX_HEIGHT
// - NOTIFICATION_TOPIC, NOTIFICATION_QUEUE_SIZE, NOTIFICATION_WORKERS, NOTIFICATION_MAX_ATTEMPTS
// - CONSOLIDATION_LOCK_ENABLED
func LoadSettings() Settings {
	godotenv.Load()

	s := DefaultSettings()
	s.InvoicePrefix = stringFromEnv("SEQUENCE_PREFIX_INVOICE", s.InvoicePrefix)
	s.DeliveryNotePrefix = stringFromEnv("SEQUENCE_PREFIX_DELIVERY_NOTE", s.DeliveryNotePrefix)
	s.PaymentPrefix = stringFromEnv("SEQUENCE_PREFIX_PAYMENT", s.PaymentPrefix)

	if v := strings.TrimSpace(os.Getenv("INVOICE_TAX_RATE")); v != "" {
		if rate, err := decimal.NewFromString(v); err == nil && !rate.IsNegative() {
			s.InvoiceTaxRate = rate
		}
	}
	s.InvoicePaymentTermDays = intFromEnv("INVOICE_PAYMENT_TERM_DAYS", s.InvoicePaymentTermDays)
	s.SignatureMaxWidth = intFromEnv("SIGNATURE_MAX_WIDTH", s.SignatureMaxWidth)
	s.SignatureMaxHeight = intFromEnv("SIGNATURE_MAX_HEIGHT", s.SignatureMaxHeight)

	s.NotificationTopic = strings.TrimSpace(os.Getenv("NOTIFICATION_TOPIC"))
	s.NotificationQueueSize = intFromEnv("NOTIFICATION_QUEUE_SIZE", s.NotificationQueueSize)
	s.NotificationWorkers = intFromEnv("NOTIFICATION_WORKERS", s.NotificationWorkers)
	s.NotificationMaxAttempts = intFromEnv("NOTIFICATION_MAX_ATTEMPTS", s.NotificationMaxAttempts)

	s.ConsolidationLockEnabled = boolFromEnv("CONSOLIDATION_LOCK_ENABLED")
	return s
}

func stringFromEnv(key string, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func intFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func boolFromEnv(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
