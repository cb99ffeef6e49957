package observability

import (
	"net"
	"net/http"
	"strings"
)

// ClientInfo identifies the device behind a request.
type ClientInfo struct {
	DeviceID  string
	RequestID string
	IP        string
	UserAgent string
}

// ClientInfoFromRequest collects ClientInfo from headers and the remote address.
func ClientInfoFromRequest(r *http.Request) ClientInfo {
	return ClientInfo{
		DeviceID:  r.Header.Get("X-Device-Id"),
		RequestID: r.Header.Get("X-Request-Id"),
		IP:        IPFromRequest(r),
		UserAgent: r.UserAgent(),
	}
}

// IPFromRequest prefers the first X-Forwarded-For hop.
func IPFromRequest(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}
