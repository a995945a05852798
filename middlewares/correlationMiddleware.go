package middlewares

import (
	"strings"

	"bitbucket.org/mmdatafocus/cari_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	CorrelationIdHeader = "x-correlation-id"
	ActorHeader         = "x-actor"
)

// CorrelationMiddleware puts the caller's correlation id (or a fresh one) and actor on the
// request context so every log line and notification of the request carries them.
func CorrelationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		cid := strings.TrimSpace(c.GetHeader(CorrelationIdHeader))
		if cid == "" {
			cid = uuid.NewString()
		}
		ctx := utils.SetCorrelationIdInContext(c.Request.Context(), cid)
		if actor := strings.TrimSpace(c.GetHeader(ActorHeader)); actor != "" {
			ctx = utils.SetActorInContext(ctx, actor)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Header(CorrelationIdHeader, cid)
		c.Next()
	}
}
