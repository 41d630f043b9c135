package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// SessionPayload is the JSON document carried inside the signed admin cookie.
// The CSRF token rides in the same payload so it cannot be desynchronized
// from the session it protects.
type SessionPayload struct {
	Username     string `json:"u"`
	IssuedAt     int64  `json:"iat"`
	CSRFToken    string `json:"csrf,omitempty"`
	CSRFIssuedAt int64  `json:"csrf_iat,omitempty"`
}

func (p SessionPayload) Authenticated() bool {
	return p.Username != ""
}

func (p SessionPayload) Expired(now time.Time, maxAge time.Duration) bool {
	issued := time.Unix(p.IssuedAt, 0)
	return now.Sub(issued) > maxAge
}

// EncodeSession signs a payload into cookie form:
// base64url(json) + "." + base64url(hmac-sha256). The MAC covers the raw
// JSON bytes, not their base64 form.
func EncodeSession(p SessionPayload, secret []byte) (string, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encoding session payload: %w", err)
	}
	encoded := base64.RawURLEncoding.EncodeToString(body)
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	sig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	return encoded + "." + sig, nil
}

// DecodeSession verifies and decodes a cookie value. Any failure — bad
// structure, bad base64, bad signature, empty username — yields (zero, false);
// callers treat all of them as "not logged in".
func DecodeSession(value string, secret []byte) (SessionPayload, bool) {
	var zero SessionPayload
	encoded, sig, found := strings.Cut(value, ".")
	if !found || encoded == "" || sig == "" {
		return zero, false
	}
	wantSig, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return zero, false
	}
	body, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return zero, false
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	if !hmac.Equal(mac.Sum(nil), wantSig) {
		return zero, false
	}
	var p SessionPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return zero, false
	}
	if p.Username == "" {
		return zero, false
	}
	return p, true
}
