// Package problems defines the gateway's error taxonomy. Every failure the
// caller can observe is one of these kinds; nothing else leaks out.
package problems

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

type Kind string

const (
	KindInvalidCredentialFormat Kind = "invalid_credential_format"
	KindCredentialRejected      Kind = "credential_rejected"
	KindInvalidParams           Kind = "invalid_params"
	KindMethodNotFound          Kind = "method_not_found"
	KindAccessDenied            Kind = "access_denied"
	KindResourceNotFound        Kind = "resource_not_found"
	KindUpstreamTimeout         Kind = "upstream_timeout"
	KindUpstreamError           Kind = "upstream_error"
	KindRateLimited             Kind = "rate_limited"
	KindInternal                Kind = "internal"
)

// Error is a failure with a taxonomy kind and a caller-safe message.
// The message must never contain credential bytes; producers sanitize
// before constructing one.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return string(e.Kind) + ": " + e.Message }

func New(kind Kind, msg string) *Error { return &Error{Kind: kind, Message: msg} }

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the taxonomy kind; anything untyped is internal.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindInternal
}

var (
	pemBlockRe = regexp.MustCompile(`-----BEGIN[A-Z ]+-----[\s\S]*?(-----END[A-Z ]+-----|\z)`)
	// Key material and encoded credential blobs show up in upstream auth
	// errors as long base64-ish runs; redact anything that looks like one.
	longTokenRe = regexp.MustCompile(`[A-Za-z0-9+/_=-]{40,}`)
)

// Sanitize strips credential-looking fragments from a message before it is
// allowed to reach a caller or a log sink.
func Sanitize(msg string) string {
	msg = pemBlockRe.ReplaceAllString(msg, "[redacted]")
	return longTokenRe.ReplaceAllString(msg, "[redacted]")
}

// Base returns the base URL for problem type identifiers.
// Order of precedence:
// 1. PROBLEM_BASE_URL (exact base, e.g. https://mydomain.com/problems)
// 2. BASE_PUBLIC_URL + "/problems" (if set)
// 3. https://example.com/problems (fallback)
func Base() string {
	if b := os.Getenv("PROBLEM_BASE_URL"); b != "" {
		return strings.TrimRight(b, "/")
	}
	if b := os.Getenv("BASE_PUBLIC_URL"); b != "" {
		return strings.TrimRight(b, "/") + "/problems"
	}
	return "https://example.com/problems"
}

// Type builds a full problem type URL for the given kind.
func Type(kind Kind) string { return Base() + "/" + string(kind) }
