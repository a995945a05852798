package handlers

import (
	"net/http"
	"strings"

	"bitbucket.org/mmdatafocus/cari_backend/middlewares"
	"bitbucket.org/mmdatafocus/cari_backend/models"
	"github.com/gin-gonic/gin"
)

func attachDeliveryNoteCustomers(c *gin.Context, notes []models.DeliveryNote) {
	ids := make([]int, 0, len(notes))
	for _, n := range notes {
		ids = append(ids, n.CustomerId)
	}
	refs := middlewares.CustomerRefs(c.Request.Context(), ids)
	for i := range notes {
		if ref, ok := refs[notes[i].CustomerId]; ok {
			notes[i].Customer = &ref
		}
	}
}

func (h *handler) createDeliveryNote() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewDeliveryNote
		if err := c.ShouldBindJSON(&input); err != nil {
			bindingError(c, err)
			return
		}
		note, err := h.ledger.DeliveryNotes.Create(c.Request.Context(), input)
		if err != nil {
			workflowError(c, err)
			return
		}
		c.JSON(http.StatusCreated, note)
	}
}

func (h *handler) listDeliveryNotes() gin.HandlerFunc {
	return func(c *gin.Context) {
		var filter models.DeliveryNoteFilter
		var ok bool
		if filter.CustomerId, ok = queryInt(c, "customer_id"); !ok {
			return
		}
		if filter.IsInvoiced, ok = queryBool(c, "is_invoiced"); !ok {
			return
		}
		if raw := strings.TrimSpace(c.Query("status")); raw != "" {
			status := models.DeliveryNoteStatus(raw)
			if !status.IsValid() {
				abortWithError(c, http.StatusBadRequest, "validation_error", "unknown delivery note status", map[string]interface{}{
					"field": "status",
				})
				return
			}
			filter.Status = &status
		}

		notes, err := h.ledger.DeliveryNotes.List(c.Request.Context(), filter)
		if err != nil {
			workflowError(c, err)
			return
		}
		attachDeliveryNoteCustomers(c, notes)
		c.JSON(http.StatusOK, notes)
	}
}

func (h *handler) getDeliveryNote() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		note, err := h.ledger.DeliveryNotes.Get(c.Request.Context(), id)
		if err != nil {
			workflowError(c, err)
			return
		}
		if customer, err := middlewares.GetCustomer(c.Request.Context(), note.CustomerId); err == nil && customer != nil {
			ref := customer.Ref()
			note.Customer = &ref
		}
		c.JSON(http.StatusOK, note)
	}
}

func (h *handler) signDeliveryNote() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var input models.SignDeliveryNote
		if err := c.ShouldBindJSON(&input); err != nil {
			bindingError(c, err)
			return
		}
		note, err := h.ledger.DeliveryNotes.Sign(c.Request.Context(), id, input)
		if err != nil {
			workflowError(c, err)
			return
		}
		c.JSON(http.StatusOK, note)
	}
}

func (h *handler) deleteDeliveryNote() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		if err := h.ledger.DeliveryNotes.Delete(c.Request.Context(), id); err != nil {
			workflowError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
