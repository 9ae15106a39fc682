package observability

import (
	"net"
	"net/http"
	"strings"
)

// RequestMeta identifies the caller behind a request for event envelopes.
type RequestMeta struct {
	RequestID string
	DeviceID  string
	IP        string
}

// MetaFromRequest reads the request id and device headers and resolves the
// client address, preferring proxy headers over the socket peer.
func MetaFromRequest(r *http.Request) RequestMeta {
	return RequestMeta{
		RequestID: r.Header.Get("X-Request-Id"),
		DeviceID:  r.Header.Get("X-Device-Id"),
		IP:        clientIP(r),
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-Ip")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
