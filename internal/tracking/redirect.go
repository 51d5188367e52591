package tracking

import (
	"net"
	"net/url"
	"strings"
)

// IsSafeRedirect reports whether rawURL is an acceptable click-through
// target. The host must exactly equal an allowed host or be a subdomain of
// one; the suffix match is anchored on a leading dot, so
// "evilbrandmonkz.com" and "brandmonkz.com.attacker.net" both fail.
// Unparseable URLs, non-http(s) schemes, and IP-literal hosts are rejected.
//
// No side effects: the click handler substitutes the default landing page
// when this returns false.
func IsSafeRedirect(rawURL string, allowedHosts []string) bool {
	if rawURL == "" {
		return false
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}
	if net.ParseIP(host) != nil {
		return false
	}

	for _, allowed := range allowedHosts {
		allowed = strings.ToLower(strings.TrimSpace(allowed))
		if allowed == "" {
			continue
		}
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	return false
}
