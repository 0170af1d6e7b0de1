package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
)

// NewRelicAttributes returns middleware that tags the nrgin transaction
// with dispatch-specific attributes. It must run after nrgin.Middleware.
func NewRelicAttributes() gin.HandlerFunc {
	return func(c *gin.Context) {
		txn := nrgin.Transaction(c)
		if txn == nil {
			c.Next()
			return
		}

		if rideID := c.Param("id"); rideID != "" {
			txn.AddAttribute("ride.id", rideID)
		}
		if key := c.GetHeader("Idempotency-Key"); key != "" {
			txn.AddAttribute("request.idempotency_key", key)
		}

		c.Next()

		// Record error if present.
		if len(c.Errors) > 0 {
			for _, err := range c.Errors {
				txn.NoticeError(err.Err)
			}
		}
	}
}
