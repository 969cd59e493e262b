package adminhttp

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/relaypool/connpool/internal/logger"
)

const requestIDHeader = "X-Request-ID"

// requestIDMiddleware stamps every admin HTTP call with an ID, echoed
// back on the response and attached to the request context so handler
// logging can be correlated back to a single call.
func requestIDMiddleware(c *gin.Context) {
	id := c.GetHeader(requestIDHeader)
	if id == "" {
		id = generateRequestID()
	}
	c.Header(requestIDHeader, id)
	c.Request = c.Request.WithContext(logger.ContextWithRequestID(c.Request.Context(), id))
	c.Next()
}

func generateRequestID() string {
	return fmt.Sprintf("%d-%d", time.Now().UnixNano(), rand.Int63())
}
