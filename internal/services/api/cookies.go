package api

import (
	"net/http"
	"strings"
	"time"
)

const refreshCookie = "Refresh-Token"

// formatCookie renders the Set-Cookie value used for session and refresh tokens.
func formatCookie(name, value string, expires time.Time, secure bool) string {
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('=')
	b.WriteString(value)
	b.WriteString("; Path=/; HttpOnly; SameSite=Strict; Expires=")
	b.WriteString(expires.UTC().Format(http.TimeFormat))
	if secure {
		b.WriteString("; Secure")
	}
	return b.String()
}

func (s *Server) setCookie(w http.ResponseWriter, name, value string, expires time.Time) {
	w.Header().Add("Set-Cookie", formatCookie(name, value, expires, s.secureCookies))
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(c.Value)
}
