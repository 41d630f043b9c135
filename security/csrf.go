package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"
)

const (
	// CSRFHeaderName is the primary channel for the token on state-changing
	// requests.
	CSRFHeaderName = "X-CSRF-Token"
	// CSRFFormFieldName is the form-post fallback channel.
	CSRFFormFieldName = "csrf_token"
	// CSRFCookieName mirrors the current token to the browser so the SPA can
	// read it.
	CSRFCookieName = "dagmar_csrf_token"

	csrfTokenBytes = 32
)

// NewCSRFToken returns a fresh random token.
func NewCSRFToken() (string, error) {
	raw := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generating csrf token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// EnsureCSRFToken makes sure the session payload carries a current token,
// rotating it once it is older than rotateAfter. It reports whether the
// payload changed and the cookie needs re-issuing.
func EnsureCSRFToken(p *SessionPayload, now time.Time, rotateAfter time.Duration) (string, bool, error) {
	if p.CSRFToken != "" {
		issued := time.Unix(p.CSRFIssuedAt, 0)
		if now.Sub(issued) <= rotateAfter {
			return p.CSRFToken, false, nil
		}
	}
	token, err := NewCSRFToken()
	if err != nil {
		return "", false, err
	}
	p.CSRFToken = token
	p.CSRFIssuedAt = now.Unix()
	return token, true, nil
}

// CheckCSRFToken compares a client-provided token against the session's in
// constant time.
func CheckCSRFToken(expected, provided string) bool {
	if expected == "" || provided == "" {
		return false
	}
	return ConstantTimeEquals(expected, provided)
}
