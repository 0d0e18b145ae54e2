package authtoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndVerify(t *testing.T) {
	s, err := NewSigner([]byte("s3cret"), "tester")
	require.NoError(t, err)

	tok, err := s.Token()
	require.NoError(t, err)

	claims, err := Verify([]byte("s3cret"), tok)
	require.NoError(t, err)
	assert.Equal(t, "tester", claims.Subject)
	assert.Equal(t, Issuer, claims.Issuer)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	s, err := NewSigner([]byte("one"), "")
	require.NoError(t, err)
	tok, err := s.Token()
	require.NoError(t, err)

	_, err = Verify([]byte("two"), tok)
	assert.Error(t, err)
}

func TestVerifyRejectsExpired(t *testing.T) {
	s, err := NewSigner([]byte("k"), "")
	require.NoError(t, err)
	s.now = func() time.Time { return time.Now().Add(-2 * TTL) }
	tok, err := s.Token()
	require.NoError(t, err)

	_, err = Verify([]byte("k"), tok)
	assert.Error(t, err)
}

func TestNewSignerRequiresSecret(t *testing.T) {
	_, err := NewSigner(nil, "x")
	assert.Error(t, err)
}
