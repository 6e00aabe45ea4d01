// Package signer computes the vendor-specific fields of every call: the
// AES-encrypted mobile number, the MD5 upload signature and the fixed header
// set of the vendor's mobile app.
//
// Everything here is a pure function of its inputs and the configured
// constants. The byte layout must match the vendor's own client exactly.
package signer

import (
	"encoding/hex"
	"strings"
)

// ParseSecret turns a configured key or IV string into bytes.
//
// After trimming, a string made only of hex digits whose length is 32, 48 or
// 64 is hex-decoded (16, 24 or 32 bytes). Anything else is taken as raw
// UTF-8 bytes, so "HEYTEA1A2B3C4D5E" is 16 bytes of text, not 8 of hex.
func ParseSecret(secret string) []byte {
	trimmed := strings.TrimSpace(secret)
	if trimmed == "" {
		return nil
	}
	switch len(trimmed) {
	case 32, 48, 64:
		if isHex(trimmed) {
			b, err := hex.DecodeString(trimmed)
			if err == nil {
				return b
			}
		}
	}
	return []byte(trimmed)
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
