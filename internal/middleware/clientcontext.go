package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-correction-api/internal/models"
	"github.com/noah-isme/sma-correction-api/pkg/sysinfo"
)

// ContextClientKey is the gin context key storing the caller's context.
const ContextClientKey = "clientContext"

// ClientContext captures who/where metadata for audit rows: the client's
// address and descriptor from the request, host and OS from the server.
// The form client may override the host/OS fields via headers when it
// knows better than the backend.
func ClientContext(host sysinfo.HostInfo) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := models.ClientContext{
			IPAddress: c.ClientIP(),
			Hostname:  host.Hostname,
			UserAgent: c.GetHeader("User-Agent"),
			OSInfo:    host.OS,
		}
		if h := c.GetHeader("X-Client-Hostname"); h != "" {
			ctx.Hostname = h
		}
		if o := c.GetHeader("X-Client-OS"); o != "" {
			ctx.OSInfo = o
		}
		c.Set(ContextClientKey, ctx)
		c.Next()
	}
}

// ClientContextValue returns the captured client context, zero when absent.
func ClientContextValue(c *gin.Context) models.ClientContext {
	if v, exists := c.Get(ContextClientKey); exists {
		if ctx, ok := v.(models.ClientContext); ok {
			return ctx
		}
	}
	return models.ClientContext{}
}
