package crawler

import (
	"net/url"
	"strings"
)

// trackingParams are query parameters stripped during normalization. Matching
// is case-insensitive on the parameter name.
var trackingParams = map[string]struct{}{
	"utm_source":   {},
	"utm_medium":   {},
	"utm_campaign": {},
	"utm_term":     {},
	"utm_content":  {},
	"gclid":        {},
	"fbclid":       {},
	"mc_eid":       {},
}

// Normalize resolves href against base and canonicalizes the result: the
// fragment and known tracking parameters are removed and the remaining query
// is re-encoded deterministically. It returns ok=false for empty references,
// non-fetchable schemes (javascript, mailto, tel), and unparseable input.
// Normalizing an already-normalized address is a no-op.
func Normalize(base, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", false
	}
	lower := strings.ToLower(href)
	for _, scheme := range []string{"javascript:", "mailto:", "tel:"} {
		if strings.HasPrefix(lower, scheme) {
			return "", false
		}
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return "", false
	}
	abs, err := baseURL.Parse(href)
	if err != nil {
		return "", false
	}
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}

	abs.Fragment = ""
	if abs.RawQuery != "" {
		q := abs.Query()
		for key := range q {
			if _, ok := trackingParams[strings.ToLower(key)]; ok {
				q.Del(key)
			}
		}
		abs.RawQuery = q.Encode()
	}
	if abs.Host != "" {
		abs.Host = strings.ToLower(abs.Host)
	}
	return abs.String(), true
}

// IsAllowedDomain reports whether the address host matches one of the allowed
// domains (exact or subdomain). An empty allowlist admits every host.
func IsAllowedDomain(rawURL string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(parsed.Host)
	for _, domain := range allowed {
		d := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(domain)), ".")
		if d == "" {
			continue
		}
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// Origin returns the scheme+host key identifying a politeness/concurrency
// domain, or "" for unparseable input.
func Origin(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return ""
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host)
}
