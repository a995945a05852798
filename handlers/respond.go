package handlers

import (
	"errors"
	"net/http"

	"bitbucket.org/mmdatafocus/cari_backend/utils"
	"bitbucket.org/mmdatafocus/cari_backend/workflow"
	"github.com/gin-gonic/gin"
)

type errorBody struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func abortWithError(c *gin.Context, status int, code string, message string, details map[string]interface{}) {
	c.AbortWithStatusJSON(status, errorBody{Error: message, Code: code, Details: details})
}

// bindingError answers a request whose body or query could not be bound.
func bindingError(c *gin.Context, err error) {
	if fields := utils.ProcessValidationErrors(err); fields != nil {
		details := make(map[string]interface{}, len(fields))
		for k, v := range fields {
			details[k] = v
		}
		abortWithError(c, http.StatusBadRequest, "validation_error", "invalid request", details)
		return
	}
	abortWithError(c, http.StatusBadRequest, "invalid_request", err.Error(), nil)
}

// workflowError maps the ledger's error taxonomy onto status codes.
// Persistence failures are logged and answered with a generic message.
func workflowError(c *gin.Context, err error) {
	var validationErr *workflow.ValidationError
	var overpaymentErr *workflow.OverpaymentError

	switch {
	case errors.As(err, &validationErr):
		abortWithError(c, http.StatusBadRequest, "validation_error", validationErr.Message, map[string]interface{}{
			"field": validationErr.Field,
		})
	case errors.Is(err, workflow.ErrValidation):
		abortWithError(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, workflow.ErrNotFound):
		abortWithError(c, http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, workflow.ErrDeliveryNoteAlreadyInvoiced):
		abortWithError(c, http.StatusConflict, "delivery_note_already_invoiced", err.Error(), nil)
	case errors.As(err, &overpaymentErr):
		abortWithError(c, http.StatusConflict, "overpayment", err.Error(), map[string]interface{}{
			"invoice_id": overpaymentErr.InvoiceId,
			"amount":     overpaymentErr.Amount,
			"remaining":  overpaymentErr.Remaining,
		})
	case errors.Is(err, workflow.ErrDuplicateDocumentNumber):
		abortWithError(c, http.StatusConflict, "duplicate_document_number", err.Error(), nil)
	case errors.Is(err, workflow.ErrStateConflict):
		abortWithError(c, http.StatusConflict, "state_conflict", err.Error(), nil)
	default:
		_ = c.Error(err)
		abortWithError(c, http.StatusInternalServerError, "internal_error", "internal server error", nil)
	}
}
