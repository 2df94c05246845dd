package hostname

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// DefaultIgnore lists tracking and analytics domains whose failures are never recorded
var DefaultIgnore = []string{
	"sentry.io",
	"googletagmanager.com",
	"doubleclick.net",
	"facebook.net",
	"scorecardresearch.com",
	"adsystem",
}

var ipv4Pattern = regexp.MustCompile(`^\d{1,3}(\.\d{1,3}){3}$`)

// Policy controls which hosts are considered and how they are canonicalized
type Policy struct {
	// Ignore holds substrings; a host containing any of them is rejected
	Ignore []string

	// FoldToRegistrable reduces hosts to their registrable domain (eTLD+1),
	// so api.example.com and example.com share one record
	FoldToRegistrable bool
}

// DefaultPolicy keeps subdomains and uses DefaultIgnore
func DefaultPolicy() Policy {
	ignore := make([]string, len(DefaultIgnore))
	copy(ignore, DefaultIgnore)
	return Policy{Ignore: ignore}
}

// Normalizer turns raw URLs into canonical host keys
type Normalizer struct {
	policy Policy
}

// NewNormalizer creates a normalizer for the given policy
func NewNormalizer(policy Policy) *Normalizer {
	ignore := make([]string, 0, len(policy.Ignore))
	for _, p := range policy.Ignore {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			ignore = append(ignore, p)
		}
	}
	policy.Ignore = ignore
	return &Normalizer{policy: policy}
}

// Normalize parses rawURL and returns its canonical host. ok is false for
// unparsable input, IP literals, host:port artifacts and ignored hosts.
func (n *Normalizer) Normalize(rawURL string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return "", false
	}

	// Hostname drops the port and IPv6 brackets; a remaining colon is an IPv6 literal
	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	if host == "" || strings.Contains(host, ":") || ipv4Pattern.MatchString(host) {
		return "", false
	}

	if n.ignored(host) {
		return "", false
	}

	if n.policy.FoldToRegistrable {
		if registrable, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
			host = registrable
		}
	}
	return host, true
}

// NormalizeHost accepts either a bare host or a raw URL
func (n *Normalizer) NormalizeHost(candidate string) (string, bool) {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return "", false
	}
	if !strings.Contains(candidate, "://") {
		candidate = "http://" + candidate
	}
	return n.Normalize(candidate)
}

func (n *Normalizer) ignored(host string) bool {
	for _, p := range n.policy.Ignore {
		if strings.Contains(host, p) {
			return true
		}
	}
	return false
}
