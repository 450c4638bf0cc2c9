package security

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestGenerateVerifyRoundTrip(t *testing.T) {
	req := require.New(t)
	opts := DefaultOptions([]byte("test-secret"))

	token, exp, err := Generate(opts, "agent-1")
	req.NoError(err)
	req.NotEmpty(token)
	req.True(exp.After(time.Now()))

	sub, err := Verify(opts, token)
	req.NoError(err)
	req.Equal("agent-1", sub)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	req := require.New(t)

	token, _, err := Generate(DefaultOptions([]byte("secret-a")), "agent-1")
	req.NoError(err)

	_, err = Verify(DefaultOptions([]byte("secret-b")), token)
	req.Error(err)
}

func TestVerifyRejectsExpired(t *testing.T) {
	req := require.New(t)
	opts := DefaultOptions([]byte("test-secret"))

	// sign a token that expired an hour ago
	past := time.Now().Add(-time.Hour)
	tok := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{
		"sub": "agent-1",
		"iat": past.Add(-time.Hour).Unix(),
		"exp": past.Unix(),
	})
	signed, err := tok.SignedString(opts.Secret)
	req.NoError(err)

	_, err = Verify(opts, signed)
	req.Error(err)
}

func TestUnsupportedAlg(t *testing.T) {
	req := require.New(t)
	opts := Options{Secret: []byte("x"), Alg: "none"}

	_, _, err := Generate(opts, "agent-1")
	req.Error(err)
	_, err = Verify(opts, "whatever")
	req.Error(err)
}
