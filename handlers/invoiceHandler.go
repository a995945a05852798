package handlers

import (
	"net/http"
	"strings"

	"bitbucket.org/mmdatafocus/cari_backend/middlewares"
	"bitbucket.org/mmdatafocus/cari_backend/models"
	"github.com/gin-gonic/gin"
)

func (h *handler) consolidateInvoice() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewInvoiceFromDeliveryNotes
		if err := c.ShouldBindJSON(&input); err != nil {
			bindingError(c, err)
			return
		}
		invoice, err := h.ledger.Invoices.ConsolidateFromDeliveryNotes(c.Request.Context(), input)
		if err != nil {
			workflowError(c, err)
			return
		}
		c.JSON(http.StatusCreated, invoice)
	}
}

func (h *handler) listInvoices() gin.HandlerFunc {
	return func(c *gin.Context) {
		var filter models.InvoiceFilter
		var ok bool
		if filter.CustomerId, ok = queryInt(c, "customer_id"); !ok {
			return
		}
		if raw := strings.TrimSpace(c.Query("status")); raw != "" {
			status := models.InvoiceStatus(raw)
			if !status.IsValid() {
				abortWithError(c, http.StatusBadRequest, "validation_error", "unknown invoice status", map[string]interface{}{
					"field": "status",
				})
				return
			}
			filter.Status = &status
		}

		invoices, err := h.ledger.Invoices.List(c.Request.Context(), filter)
		if err != nil {
			workflowError(c, err)
			return
		}

		ids := make([]int, 0, len(invoices))
		for _, inv := range invoices {
			ids = append(ids, inv.CustomerId)
		}
		refs := middlewares.CustomerRefs(c.Request.Context(), ids)
		for i := range invoices {
			if ref, ok := refs[invoices[i].CustomerId]; ok {
				invoices[i].Customer = &ref
			}
		}
		c.JSON(http.StatusOK, invoices)
	}
}

func (h *handler) getInvoice() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		invoice, err := h.ledger.Invoices.Get(c.Request.Context(), id)
		if err != nil {
			workflowError(c, err)
			return
		}
		if customer, err := middlewares.GetCustomer(c.Request.Context(), invoice.CustomerId); err == nil && customer != nil {
			ref := customer.Ref()
			invoice.Customer = &ref
		}
		c.JSON(http.StatusOK, invoice)
	}
}

func (h *handler) sendInvoice() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		invoice, err := h.ledger.Invoices.Send(c.Request.Context(), id)
		if err != nil {
			workflowError(c, err)
			return
		}
		c.JSON(http.StatusOK, invoice)
	}
}
