package clicks

import (
	"net"
	"net/http"
	"strings"
	"time"
)

// RequestContext is what the recorder needs from an inbound redirect request.
type RequestContext struct {
	Headers    http.Header
	RemoteAddr string
	Timestamp  time.Time
}

// NewRequestContext builds a context from a header lookup function, such as
// fiber's ctx.Get, so the recorder stays independent of the HTTP framework.
func NewRequestContext(get func(key string, defaultValue ...string) string, remoteAddr string, at time.Time) RequestContext {
	headers := http.Header{}
	for _, key := range []string{"User-Agent", "Referer", "X-Forwarded-For", "X-Real-IP"} {
		if value := get(key); value != "" {
			headers.Set(key, value)
		}
	}
	return RequestContext{Headers: headers, RemoteAddr: remoteAddr, Timestamp: at}
}

func (r RequestContext) header(key string) string {
	if r.Headers == nil {
		return ""
	}
	return r.Headers.Get(key)
}

// UserAgent returns the User-Agent header, possibly empty.
func (r RequestContext) UserAgent() string {
	return r.header("User-Agent")
}

// Referer returns the Referer header, possibly empty.
func (r RequestContext) Referer() string {
	return r.header("Referer")
}

// ExtractClientIP picks the client address: first X-Forwarded-For entry,
// then X-Real-IP, then the peer address, then 127.0.0.1.
func ExtractClientIP(r RequestContext) string {
	if forwarded := r.header("X-Forwarded-For"); forwarded != "" {
		first := strings.TrimSpace(strings.Split(forwarded, ",")[0])
		if first != "" {
			return first
		}
	}

	if realIP := strings.TrimSpace(r.header("X-Real-IP")); realIP != "" {
		return realIP
	}

	if r.RemoteAddr != "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			return host
		}
		return r.RemoteAddr
	}

	return "127.0.0.1"
}
