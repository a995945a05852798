package handlers

import (
	"net/http"
	"strings"

	"bitbucket.org/mmdatafocus/cari_backend/middlewares"
	"bitbucket.org/mmdatafocus/cari_backend/models"
	"github.com/gin-gonic/gin"
)

func (h *handler) recordPayment() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewPayment
		if err := c.ShouldBindJSON(&input); err != nil {
			bindingError(c, err)
			return
		}
		input.IdempotencyKey = strings.TrimSpace(c.GetHeader(IdempotencyKeyHeader))

		result, err := h.ledger.Payments.Record(c.Request.Context(), input)
		if err != nil {
			workflowError(c, err)
			return
		}
		status := http.StatusCreated
		if result.Replayed {
			status = http.StatusOK
		}
		c.JSON(status, result)
	}
}

func (h *handler) listPayments() gin.HandlerFunc {
	return func(c *gin.Context) {
		var filter models.PaymentFilter
		var ok bool
		if filter.CustomerId, ok = queryInt(c, "customer_id"); !ok {
			return
		}
		if filter.InvoiceId, ok = queryInt(c, "invoice_id"); !ok {
			return
		}

		payments, err := h.ledger.Payments.List(c.Request.Context(), filter)
		if err != nil {
			workflowError(c, err)
			return
		}

		ids := make([]int, 0, len(payments))
		for _, p := range payments {
			ids = append(ids, p.CustomerId)
		}
		refs := middlewares.CustomerRefs(c.Request.Context(), ids)
		for i := range payments {
			if ref, ok := refs[payments[i].CustomerId]; ok {
				payments[i].Customer = &ref
			}
		}
		c.JSON(http.StatusOK, payments)
	}
}

func (h *handler) listCashRegisters() gin.HandlerFunc {
	return func(c *gin.Context) {
		registers, err := h.ledger.Payments.ListCashRegisters(c.Request.Context())
		if err != nil {
			workflowError(c, err)
			return
		}
		c.JSON(http.StatusOK, registers)
	}
}
