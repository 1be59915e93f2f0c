// Package origin implements the Origin-header host checks the sse
// transport's GET /sse route uses to guard against a malicious page opening
// a stream against a local MCP server (standard SSE-transport guidance;
// distinct from authentication). Grounded on
// transport/server/http/common/origin.go's ClientHost/TopDomain helpers.
package origin

import (
	"net"
	"net/http"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Host returns the browser-visible Origin host from r, or "" if the request
// carries no Origin header (same-origin / non-browser clients typically
// omit it).
func Host(r *http.Request) string {
	o := r.Header.Get("Origin")
	if o == "" {
		return ""
	}
	o = strings.TrimSuffix(o, "/")
	if i := strings.Index(o, "://"); i >= 0 {
		o = o[i+3:]
	}
	return stripPort(o)
}

// Allowed reports whether host is present in allowlist, comparing either the
// exact host or its registrable domain (eTLD+1) against each allowlist
// entry. An empty allowlist allows everything - origin checking is opt-in.
func Allowed(allowlist []string, host string) bool {
	if len(allowlist) == 0 {
		return true
	}
	if host == "" {
		return false
	}
	top, _ := TopDomain(host)
	for _, allowed := range allowlist {
		allowed = strings.TrimSpace(allowed)
		if allowed == "" {
			continue
		}
		if strings.EqualFold(allowed, host) || (top != "" && strings.EqualFold(allowed, top)) {
			return true
		}
	}
	return false
}

// TopDomain returns eTLD+1 for host (e.g. app.example.co.uk ->
// example.co.uk). IPs and localhost have no registrable domain and return
// "", and so does a host that already is its own eTLD+1 (example.com).
func TopDomain(host string) (string, error) {
	if host == "" || isIP(host) || isLocalhost(host) {
		return "", nil
	}
	host = stripPort(host)
	e, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return "", err
	}
	if e == host || e == "" {
		return "", nil
	}
	return e, nil
}

func isIP(h string) bool { return net.ParseIP(stripPort(h)) != nil }

func isLocalhost(h string) bool {
	h = strings.ToLower(stripPort(h))
	return h == "localhost" || strings.HasSuffix(h, ".localhost")
}

func stripPort(h string) string {
	if i := strings.IndexByte(h, ':'); i > -1 {
		return h[:i]
	}
	return h
}
