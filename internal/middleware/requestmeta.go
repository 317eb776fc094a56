package middleware

import (
	"net"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/link-converter/internal/handlers"
)

// clientIPHeaders are consulted in order; the first usable value wins.
var clientIPHeaders = []string{
	"X-Forwarded-For",
	"Proxy-Client-IP",
	"WL-Proxy-Client-IP",
	"X-Real-IP",
}

// RequestMeta is a middleware that adds client IP, user-agent, and referrer to the request context.
func RequestMeta(_ huma.API) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		meta := handlers.RequestMeta{
			ClientIP:  ClientIP(ctx),
			UserAgent: ctx.Header("User-Agent"),
			Referrer:  ctx.Header("Referer"),
		}

		newCtx := handlers.ContextWithRequestMeta(ctx.Context(), meta)
		ctx = huma.WithContext(ctx, newCtx)

		next(ctx)
	}
}

// ClientIP resolves the originating client address, preferring proxy headers over the
// connection's remote address. Empty and "unknown" header values are skipped, and only the
// first element of a comma-separated list is used.
func ClientIP(ctx huma.Context) string {
	for _, name := range clientIPHeaders {
		if ip := firstAddress(ctx.Header(name)); ip != "" {
			return ip
		}
	}

	addr := ctx.RemoteAddr()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}

	return addr
}

func firstAddress(value string) string {
	if idx := strings.Index(value, ","); idx != -1 {
		value = value[:idx]
	}

	value = strings.TrimSpace(value)
	if strings.EqualFold(value, "unknown") {
		return ""
	}

	return value
}
