// Package urlcheck validates and normalizes link and image targets pulled
// out of untrusted documents. Checks are layered and fail closed: anything
// the validator cannot positively clear is reported invalid with a reason.
// This is the single URL validation path for the whole module; collectors
// and any future network-facing component call Validate rather than
// reimplementing pieces of it.
package urlcheck

import (
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

// allowedSchemes is the scheme allow-list. Everything else, javascript: and
// data: included, is rejected by name.
var allowedSchemes = map[string]bool{
	"http":   true,
	"https":  true,
	"mailto": true,
}

// Result is the outcome of validating one URL.
type Result struct {
	// Valid reports whether the URL cleared every check.
	Valid bool
	// Normalized is the reassembled URL (punycode host, canonical escaping).
	// Empty when Valid is false.
	Normalized string
	// Reason describes the first failed check. Empty when Valid is true.
	Reason string
	// Warnings carries non-fatal notes, e.g. that the host was
	// IDNA-converted.
	Warnings []string
}

type options struct {
	relativeAllowed bool
}

// Option adjusts validation behavior.
type Option func(*options)

// WithRelativeAllowed permits scheme-less relative references, e.g.
// "docs/intro.md". Without it any URL lacking a scheme is rejected.
func WithRelativeAllowed() Option {
	return func(o *options) { o.relativeAllowed = true }
}

// Validate runs the layered checks against a raw URL string, in order:
// control/zero-width characters, bare fragments, protocol-relative form,
// scheme allow-list, IDNA host conversion, percent-encoding wellformedness.
// The first failing layer determines the reason; later layers never run.
func Validate(raw string, opts ...Option) Result {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if strings.ContainsFunc(raw, isForbiddenRune) {
		return invalid("Control or zero-width character in URL")
	}

	// A bare fragment is an intra-document reference; nothing to validate.
	if strings.HasPrefix(raw, "#") {
		return Result{Valid: true, Normalized: raw}
	}

	// Protocol-relative URLs inherit whatever scheme the embedding context
	// uses, which the document cannot know. Rejected outright.
	if strings.HasPrefix(raw, "//") {
		return invalid("Protocol-relative URL")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return invalid("Unparseable URL")
	}

	scheme := strings.ToLower(u.Scheme)
	switch {
	case scheme == "" && !o.relativeAllowed:
		return invalid("Relative URL not permitted here")
	case scheme != "" && !allowedSchemes[scheme]:
		return invalid("Disallowed scheme: " + scheme)
	}

	var warnings []string
	if host := u.Hostname(); host != "" && net.ParseIP(host) == nil {
		ascii, err := idna.Lookup.ToASCII(host)
		if err != nil {
			return invalid("IDNA conversion failed for host")
		}
		if ascii != strings.ToLower(host) {
			warnings = append(warnings, "Host IDNA-converted to "+ascii)
		}
		u.Host = replaceHost(u.Host, host, ascii)
	}

	if !percentEncodingValid(raw) {
		return invalid("Malformed percent-encoding")
	}

	return Result{Valid: true, Normalized: u.String(), Warnings: warnings}
}

func invalid(reason string) Result {
	return Result{Reason: reason}
}

// isForbiddenRune reports control characters and the zero-width runes used
// to disguise hostile URLs from human review.
func isForbiddenRune(r rune) bool {
	if r < 0x20 || r == 0x7f {
		return true
	}
	switch r {
	case '\u200b', '\u200c', '\u200d', '\u2060', '\ufeff':
		return true
	}
	return false
}

// replaceHost swaps the hostname inside a URL host component while keeping
// any port suffix.
func replaceHost(hostport, oldHost, newHost string) string {
	if port := strings.TrimPrefix(hostport, oldHost); strings.HasPrefix(port, ":") {
		return newHost + port
	}
	return newHost
}

// percentEncodingValid requires every % in the raw string to introduce a
// two-hex-digit escape. net/url tolerates bare % in query strings; hostile
// inputs exploit such leniency gaps, so the whole string is held to the
// strict form.
func percentEncodingValid(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] != '%' {
			continue
		}
		if i+2 >= len(s) || !isHexDigit(s[i+1]) || !isHexDigit(s[i+2]) {
			return false
		}
		i += 2
	}
	return true
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
