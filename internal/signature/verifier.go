// Package signature verifies the X-Hub-Signature header sent with upstream webhook callbacks.
package signature

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
)

// HeaderName is the request header carrying the payload signature.
const HeaderName = "X-Hub-Signature"

// prefix is the algorithm tag the provider puts in front of the hex digest.
const prefix = "sha1="

// Policy decides what happens to a webhook whose signature does not verify.
type Policy string

const (
	// PolicyReject drops the webhook with a 4xx response. This is the default.
	PolicyReject Policy = "reject"
	// PolicyLog admits the webhook after logging a warning.
	PolicyLog Policy = "log"
)

// ParsePolicy converts a configuration value into a Policy.
// Empty input yields PolicyReject.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyReject:
		return PolicyReject, nil
	case PolicyLog:
		return PolicyLog, nil
	default:
		return "", fmt.Errorf("unknown signature policy %q", s)
	}
}

// Sign returns the header value for payload keyed by secret, in the form "sha1=<hex>".
func Sign(payload []byte, secret string) string {
	return prefix + digest(payload, secret)
}

// Verify reports whether presented is the HMAC-SHA1 of payload keyed by secret.
// presented may carry the "sha1=" prefix or be the bare hex digest.
// It returns false when the signature or the secret is missing.
func Verify(payload []byte, presented, secret string) bool {
	if presented == "" || secret == "" {
		return false
	}

	sig := presented
	if i := strings.IndexByte(sig, '='); i >= 0 {
		if sig[:i+1] != prefix {
			return false
		}
		sig = sig[i+1:]
	}

	expected := digest(payload, secret)
	return hmac.Equal([]byte(expected), []byte(sig))
}

func digest(payload []byte, secret string) string {
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verifier binds a secret to Verify so handlers do not carry the secret around.
type Verifier struct {
	secret string
}

// NewVerifier creates a Verifier for the given shared secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: secret}
}

// Verify checks presented against payload using the bound secret.
func (v *Verifier) Verify(payload []byte, presented string) bool {
	return Verify(payload, presented, v.secret)
}

// Configured reports whether a secret is set.
func (v *Verifier) Configured() bool {
	return v.secret != ""
}
