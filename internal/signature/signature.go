package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// Header is the inbound signature header name.
const Header = "X-Ticketing-Signature"

const algoPrefix = "sha256="

// ErrEmptySecret means a tenant record carries no signing secret. That is
// a provisioning bug, never a "signature optional" situation.
var ErrEmptySecret = errors.New("signature: signing secret is empty")

// Sign computes the hex-encoded HMAC-SHA256 digest of body under secret.
func Sign(body, secret []byte) (string, error) {
	if len(secret) == 0 {
		return "", ErrEmptySecret
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Verify checks a caller-supplied signature against the digest of the raw
// request bytes. The supplied value may be a bare hex digest or carry a
// "sha256=" tag. Comparison is constant-time; the body is never re-parsed
// or re-serialized before hashing.
func Verify(body, secret []byte, supplied string) (bool, error) {
	expected, err := Sign(body, secret)
	if err != nil {
		return false, err
	}

	supplied = strings.ToLower(strings.TrimSpace(supplied))
	supplied = strings.TrimPrefix(supplied, algoPrefix)
	if supplied == "" {
		return false, nil
	}

	return hmac.Equal([]byte(expected), []byte(supplied)), nil
}
