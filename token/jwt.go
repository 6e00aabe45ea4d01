// Package token inspects the vendor's session token and keeps the CLI's
// login credentials between runs.
//
// The vendor issues JWTs. Claims are decoded from the base64url payload
// segment only; the signature is never verified since the token is only
// ever sent back to the server that issued it.
package token

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Claims are the decoded JWT payload.
type Claims map[string]any

// strip removes an optional "Bearer " prefix.
func strip(tok string) string {
	tok = strings.TrimSpace(tok)
	if strings.HasPrefix(tok, "Bearer ") {
		return strings.TrimSpace(tok[len("Bearer "):])
	}
	return tok
}

// ParseClaims decodes the payload segment of tok, which may carry a
// "Bearer " prefix.
func ParseClaims(tok string) (Claims, error) {
	parts := strings.Split(strip(tok), ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("token: malformed JWT: expected 3 segments, got %d", len(parts))
	}
	payload, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return nil, fmt.Errorf("token: decode JWT payload: %w", err)
	}
	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, fmt.Errorf("token: unmarshal JWT claims: %w", err)
	}
	return claims, nil
}

// ExpiresAt returns the "exp" claim; ok is false when it is absent or not a
// number.
func (c Claims) ExpiresAt() (t time.Time, ok bool) {
	exp, ok := c["exp"].(float64)
	if !ok || exp <= 0 {
		return time.Time{}, false
	}
	return time.Unix(int64(exp), 0), true
}

// Status summarises what the CLI can tell about a token before using it.
type Status struct {
	JWT       bool
	ExpiresAt time.Time
	Expired   bool
}

// Inspect reports on tok at time now. Opaque (non-JWT) tokens and JWTs
// without "exp" are never reported as expired: only the vendor can judge
// them.
func Inspect(tok string, now time.Time) Status {
	claims, err := ParseClaims(tok)
	if err != nil {
		return Status{}
	}
	st := Status{JWT: true}
	if exp, ok := claims.ExpiresAt(); ok {
		st.ExpiresAt = exp
		st.Expired = !now.Before(exp)
	}
	return st
}
