package handlers

import (
	"net/http"

	"bitbucket.org/mmdatafocus/cari_backend/utils"
	"bitbucket.org/mmdatafocus/cari_backend/workflow"
	"github.com/gin-gonic/gin"
)

func invalidDate(c *gin.Context, field string) {
	abortWithError(c, http.StatusBadRequest, "validation_error", field+" must be a YYYY-MM-DD date", map[string]interface{}{
		"field": field,
	})
}

func (h *handler) accountSummary() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		asOf, err := utils.ParseOptionalDate(c.Query("as_of"))
		if err != nil {
			invalidDate(c, "as_of")
			return
		}
		summary, err := h.ledger.Accounts.Summary(c.Request.Context(), id, asOf)
		if err != nil {
			workflowError(c, err)
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}

func (h *handler) accountMovements() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		query := workflow.StatementQuery{CustomerId: id}

		var err error
		if query.StartDate, err = utils.ParseOptionalDate(c.Query("start_date")); err != nil {
			invalidDate(c, "start_date")
			return
		}
		if query.EndDate, err = utils.ParseOptionalDate(c.Query("end_date")); err != nil {
			invalidDate(c, "end_date")
			return
		}
		includeOpening, ok := queryBool(c, "include_opening_balance")
		if !ok {
			return
		}
		query.IncludeOpening = includeOpening != nil && *includeOpening

		statement, err := h.ledger.Accounts.Statement(c.Request.Context(), query)
		if err != nil {
			workflowError(c, err)
			return
		}
		c.JSON(http.StatusOK, statement)
	}
}
