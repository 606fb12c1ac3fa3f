package browser

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
)

// SecurityValidator enforces the navigation policy. Violations are
// logged as structured security events.
type SecurityValidator struct {
	policy Policy
}

// NewSecurityValidator creates a validator for the given policy.
func NewSecurityValidator(policy Policy) *SecurityValidator {
	return &SecurityValidator{policy: policy}
}

// ValidateURL checks a URL against the policy before navigation.
func (sv *SecurityValidator) ValidateURL(urlStr string) error {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return &BrowserError{
			Code:    ErrCodeValidation,
			Message: fmt.Sprintf("invalid URL: %s", urlStr),
		}
	}

	switch parsed.Scheme {
	case "http", "https":
	case "file":
		if !sv.policy.AllowFileURLs {
			sv.logViolation("file_url_blocked", urlStr)
			return &BrowserError{Code: ErrCodeSecurity, Message: "file:// URLs are not allowed"}
		}
	default:
		sv.logViolation("scheme_blocked", urlStr)
		return &BrowserError{
			Code:    ErrCodeSecurity,
			Message: fmt.Sprintf("URL scheme not allowed: %s", parsed.Scheme),
		}
	}

	if isLocalhost(parsed.Hostname()) && !sv.policy.AllowLocalhostURLs {
		sv.logViolation("localhost_url_blocked", urlStr)
		return &BrowserError{Code: ErrCodeSecurity, Message: "localhost URLs are not allowed"}
	}

	host := parsed.Hostname()
	if len(sv.policy.AllowedDomains) > 0 && !domainMatches(host, sv.policy.AllowedDomains) {
		sv.logViolation("domain_not_allowed", urlStr)
		return &BrowserError{
			Code:    ErrCodeSecurity,
			Message: fmt.Sprintf("domain not in allowed list: %s", host),
		}
	}
	if domainMatches(host, sv.policy.BlockedDomains) {
		sv.logViolation("domain_blocked", urlStr)
		return &BrowserError{
			Code:    ErrCodeSecurity,
			Message: fmt.Sprintf("domain is blocked: %s", host),
		}
	}

	return nil
}

func (sv *SecurityValidator) logViolation(kind, urlStr string) {
	log.Warn().
		Str("violation", kind).
		Str("url", urlStr).
		Msg("Navigation blocked by security policy")
}

func isLocalhost(host string) bool {
	h := strings.ToLower(host)
	if h == "localhost" || strings.HasSuffix(h, ".localhost") {
		return true
	}
	if ip := net.ParseIP(h); ip != nil {
		return ip.IsLoopback()
	}
	return false
}

// domainMatches checks host against a list of domains, matching exact
// names and their subdomains.
func domainMatches(host string, domains []string) bool {
	h := strings.ToLower(host)
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" {
			continue
		}
		if h == d || strings.HasSuffix(h, "."+d) {
			return true
		}
	}
	return false
}
