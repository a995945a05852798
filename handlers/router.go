package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"bitbucket.org/mmdatafocus/cari_backend/workflow"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const IdempotencyKeyHeader = "Idempotency-Key"

type handler struct {
	ledger *workflow.Ledger
	logger *logrus.Logger
}

// RegisterRoutes mounts the ledger API on r (usually the /api group).
func RegisterRoutes(r gin.IRouter, ledger *workflow.Ledger, logger *logrus.Logger) {
	h := &handler{ledger: ledger, logger: logger}

	notes := r.Group("/delivery-notes")
	notes.POST("", h.createDeliveryNote())
	notes.GET("", h.listDeliveryNotes())
	notes.GET("/:id", h.getDeliveryNote())
	notes.PUT("/:id/sign", h.signDeliveryNote())
	notes.DELETE("/:id", h.deleteDeliveryNote())

	invoices := r.Group("/invoices")
	invoices.POST("/from-delivery-notes", h.consolidateInvoice())
	invoices.GET("", h.listInvoices())
	invoices.GET("/:id", h.getInvoice())
	invoices.PUT("/:id/send", h.sendInvoice())

	payments := r.Group("/payments")
	payments.POST("", h.recordPayment())
	payments.GET("", h.listPayments())

	customers := r.Group("/customers")
	customers.GET("/:id/account-summary", h.accountSummary())
	customers.GET("/:id/movements", h.accountMovements())

	r.GET("/cash-registers", h.listCashRegisters())
}

func pathId(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		abortWithError(c, http.StatusBadRequest, "validation_error", "id must be a positive integer", map[string]interface{}{
			"field": "id",
		})
		return 0, false
	}
	return id, true
}

// queryInt returns nil when the parameter is absent.
func queryInt(c *gin.Context, name string) (*int, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		abortWithError(c, http.StatusBadRequest, "validation_error", name+" must be a positive integer", map[string]interface{}{
			"field": name,
		})
		return nil, false
	}
	return &n, true
}

func queryBool(c *gin.Context, name string) (*bool, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, true
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "validation_error", name+" must be a boolean", map[string]interface{}{
			"field": name,
		})
		return nil, false
	}
	return &b, true
}
