package core

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
)

// TokenPattern is the grammar every produced token matches. The leak
// verifier uses the same pattern to accept tokenized values.
var TokenPattern = regexp.MustCompile(`^<PII:[A-Za-z0-9_]+:[A-Za-z0-9_\-]+>$`)

const tokenCodeLen = 16

// Tokenize replaces a sensitive value with a deterministic opaque token of
// the form <PII:field:code>. The code is a keyed HMAC-SHA256 digest over
// field || "::" || value, truncated to a fixed-length url-safe encoding.
// The field is mixed into the derivation so the same raw value yields
// different tokens in different fields.
//
// Empty values pass through unchanged: a token is never produced for a
// cell that holds no PII. Rotating the secret changes every token
// system-wide, which invalidates cross-run token stability.
func Tokenize(value, field string, secret []byte) string {
	if value == "" {
		return value
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(field))
	mac.Write([]byte("::"))
	mac.Write([]byte(value))
	code := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))[:tokenCodeLen]
	return fmt.Sprintf("<PII:%s:%s>", field, code)
}

// MaskLast4 strips all non-digit characters and redacts everything but the
// last four digits. A value with fewer than four digits carries no safely
// revealable suffix and collapses to the "****" sentinel. The original
// digit grouping is discarded; this is a display-safe mask, not a
// reversible transform.
func MaskLast4(value string) string {
	var digits strings.Builder
	for _, ch := range value {
		if ch >= '0' && ch <= '9' {
			digits.WriteRune(ch)
		}
	}
	s := digits.String()
	if len(s) < 4 {
		return "****"
	}
	return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
}
