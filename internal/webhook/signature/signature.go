// Package signature verifies platform webhook signatures.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// Verifier checks the HMAC-SHA256 signature the platform attaches to
// every webhook delivery.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify recomputes the digest over the raw request body and compares
// it against the base64-encoded header value in constant time. Any
// decode failure or length mismatch is a rejection, never an error the
// caller could mistake for success. An unset secret rejects every
// delivery: a misconfigured deployment must not verify forgeable
// signatures.
func (v *Verifier) Verify(body []byte, header string) bool {
	if len(v.secret) == 0 || header == "" {
		return false
	}
	expected, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), expected)
}

// Sign computes the base64 digest for body. Used by tests and by the
// outbound gateway client, which signs its callbacks the same way.
func (v *Verifier) Sign(body []byte) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
