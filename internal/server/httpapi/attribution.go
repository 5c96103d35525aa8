package httpapi

import (
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/dmitrijs2005/photoai/internal/server/conversion"
)

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// connection address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func utmFromReferer(ref string) conversion.UTM {
	if ref == "" {
		return conversion.UTM{}
	}
	u, err := url.Parse(ref)
	if err != nil {
		return conversion.UTM{}
	}
	q := u.Query()
	return conversion.UTM{
		Source:   q.Get("utm_source"),
		Medium:   q.Get("utm_medium"),
		Campaign: q.Get("utm_campaign"),
		Term:     q.Get("utm_term"),
		Content:  q.Get("utm_content"),
	}
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

// attributionFromRequest collects marketing attribution from headers and
// cookies. Values the client sent explicitly win over cookies.
func attributionFromRequest(r *http.Request, in attributionInput) conversion.Attribution {
	a := conversion.Attribution{
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
		FBP:       strings.TrimSpace(in.FBP),
		FBC:       strings.TrimSpace(in.FBC),
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Phone:     strings.TrimSpace(in.Phone),
		UTM:       utmFromReferer(r.Referer()),
	}
	if a.FBP == "" {
		a.FBP = cookieValue(r, "_fbp")
	}
	if a.FBC == "" {
		a.FBC = cookieValue(r, "_fbc")
	}
	return a
}
