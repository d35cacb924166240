package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"Event":"charge_successful"}`)
	sig := Sign("sk_test", body)

	assert.Len(t, sig, 128)
	assert.True(t, VerifySignature("sk_test", body, sig))
	assert.True(t, VerifySignature("sk_test", body, " "+sig+" "))
	assert.False(t, VerifySignature("other", body, sig))
	assert.False(t, VerifySignature("sk_test", []byte(`{}`), sig))
	assert.False(t, VerifySignature("sk_test", body, ""))
	assert.False(t, VerifySignature("", body, sig))
}
