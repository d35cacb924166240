package gateway

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"strings"
)

// SignatureHeader carries the HMAC-SHA512 of the raw webhook body, keyed by the secret key.
const SignatureHeader = "x-squad-encrypted-body"

// Sign returns the upper-case hex signature Squad sends for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return strings.ToUpper(hex.EncodeToString(mac.Sum(nil)))
}

// VerifySignature reports whether signature matches body.
func VerifySignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	expected := Sign(secret, body)
	return hmac.Equal([]byte(expected), []byte(strings.ToUpper(strings.TrimSpace(signature))))
}
