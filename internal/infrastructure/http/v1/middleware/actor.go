package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	appctx "gstledger/internal/core/context"
)

// HeaderUserID carries the acting user set by the authenticating proxy.
const HeaderUserID = "X-User-ID"

// Actor puts the request's acting user into the request context, where
// audit enrichment and idempotency scoping read it.
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(HeaderUserID))
		ctx := appctx.WithActor(c.Request.Context(), &appctx.Actor{
			UserID: userID,
			Source: "http",
		})
		c.Request = c.Request.WithContext(ctx)
		if userID != "" {
			c.Set("user_id", userID)
		}
		c.Next()
	}
}
