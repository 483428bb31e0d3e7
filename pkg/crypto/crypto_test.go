package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("agency-s3cret")
	require.NoError(t, err)
	require.NotEqual(t, "agency-s3cret", hash)

	require.True(t, VerifyPassword(hash, "agency-s3cret"))
	require.False(t, VerifyPassword(hash, "wrong-password"))
}

func TestGenerateTokenLengthAndUniqueness(t *testing.T) {
	first, err := GenerateToken(48)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	second, err := GenerateToken(48)
	require.NoError(t, err)
	require.NotEqual(t, first, second)
}
