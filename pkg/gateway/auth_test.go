package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(secret, challenge string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(challenge))
	return hex.EncodeToString(h.Sum(nil))
}

func TestGenerateChallenge(t *testing.T) {
	a := NewAuthHandler("secret")

	c1, err := a.GenerateChallenge()
	require.NoError(t, err)
	c2, err := a.GenerateChallenge()
	require.NoError(t, err)

	assert.Len(t, c1, 64, "32 random bytes hex encoded")
	assert.NotEqual(t, c1, c2)
}

func TestVerifySignature(t *testing.T) {
	a := NewAuthHandler("secret")
	challenge := "deadbeef"

	assert.True(t, a.VerifySignature(challenge, sign("secret", challenge)))
	assert.False(t, a.VerifySignature(challenge, sign("wrong-secret", challenge)))
	assert.False(t, a.VerifySignature(challenge, "garbage"))
}

func TestHandleAuthResponseSuccess(t *testing.T) {
	a := NewAuthHandler("secret")
	client := &Client{Challenge: "deadbeef", State: StateAuthenticating}

	result := a.HandleAuthResponse(client, sign("secret", "deadbeef"))

	assert.True(t, result.Success)
	assert.True(t, client.Authenticated)
	assert.Equal(t, StateAuthenticated, client.State)
	assert.Empty(t, client.Challenge, "challenge is single use")
}

func TestHandleAuthResponseFailures(t *testing.T) {
	a := NewAuthHandler("secret")

	// No challenge issued.
	result := a.HandleAuthResponse(&Client{}, "sig")
	assert.False(t, result.Success)

	// Bad signature increments the attempt counter.
	client := &Client{Challenge: "deadbeef"}
	for i := 1; i < maxAuthAttempts; i++ {
		result = a.HandleAuthResponse(client, "bad")
		assert.False(t, result.Success)
		assert.Equal(t, "Invalid signature", result.Message)
		assert.Equal(t, i, client.AuthAttempts)
	}

	result = a.HandleAuthResponse(client, "bad")
	assert.False(t, result.Success)
	assert.Equal(t, "Too many failed attempts", result.Message)
	assert.False(t, client.Authenticated)
}
