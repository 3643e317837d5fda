package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/kozaktomas/attendance-kiosk/internal/constants"
)

type contextKey string

const sessionKeyContextKey contextKey = "kiosk_session"

// maxSessionKeyLen caps client-supplied session keys.
const maxSessionKeyLen = 128

// KioskSession resolves the liveness session key of a request and stores it in the context.
// A kiosk may pin its session with the X-Kiosk-Session header, otherwise the client IP is used.
// Run it after chi's RealIP so proxied kiosks are told apart.
func KioskSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), sessionKeyContextKey, sessionKey(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionKey(r *http.Request) string {
	if h := strings.TrimSpace(r.Header.Get(constants.SessionHeader)); h != "" {
		if len(h) > maxSessionKeyLen {
			h = h[:maxSessionKeyLen]
		}
		return "hdr:" + h
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// GetSessionKey returns the session key stored by KioskSession.
// Falls back to the remote address when the middleware did not run.
func GetSessionKey(r *http.Request) string {
	if key, ok := r.Context().Value(sessionKeyContextKey).(string); ok {
		return key
	}
	return sessionKey(r)
}
