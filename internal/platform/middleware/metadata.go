package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"medverify/pkg/requestcontext"
)

// ClientMetadata extracts client IP and User-Agent and stores them in the
// context, along with a coarse "browser/os" label used in audit events.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIPFromRequest(r)
		ua := r.Header.Get("User-Agent")
		ctx := requestcontext.WithClientMetadata(r.Context(), ip, ua, ClientAgent(ua))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientAgent reduces a User-Agent header to "Browser/OS", "bot:Name" or
// "unknown".
func ClientAgent(header string) string {
	if strings.TrimSpace(header) == "" {
		return "unknown"
	}
	ua := useragent.New(header)
	name, _ := ua.Browser()
	if ua.Bot() {
		return "bot:" + name
	}
	os := ua.OS()
	if name == "" && os == "" {
		return "unknown"
	}
	label := fmt.Sprintf("%s/%s", name, os)
	if ua.Mobile() {
		label += " (mobile)"
	}
	return label
}

// ClientIPFromRequest extracts the client IP, honouring proxy headers.
func ClientIPFromRequest(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if addr := r.RemoteAddr; addr != "" {
		if idx := strings.LastIndex(addr, ":"); idx != -1 {
			return addr[:idx]
		}
		return addr
	}
	return "unknown"
}
