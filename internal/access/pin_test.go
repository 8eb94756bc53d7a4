package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashPin(t *testing.T) {
	t.Run("hash verifies against the original pin", func(t *testing.T) {
		hash, err := HashPin("1234")
		require.NoError(t, err)
		assert.NotEqual(t, "1234", hash)
		assert.True(t, VerifyPin(hash, "1234"))
	})

	t.Run("empty pin rejected", func(t *testing.T) {
		_, err := HashPin("")
		assert.Error(t, err)
	})
}

func TestVerifyPin(t *testing.T) {
	hash, err := HashPin("1234")
	require.NoError(t, err)

	t.Run("wrong pin", func(t *testing.T) {
		assert.False(t, VerifyPin(hash, "4321"))
	})

	t.Run("empty proof", func(t *testing.T) {
		assert.False(t, VerifyPin(hash, ""))
	})

	t.Run("empty hash", func(t *testing.T) {
		assert.False(t, VerifyPin("", "1234"))
	})

	t.Run("swapped arguments do not verify", func(t *testing.T) {
		// Порядок аргументов канонический: сначала хэш, затем PIN
		assert.False(t, VerifyPin("1234", hash))
	})

	t.Run("accepts hashes produced by bcrypt directly", func(t *testing.T) {
		raw, err := bcrypt.GenerateFromPassword([]byte("0000"), bcrypt.DefaultCost)
		require.NoError(t, err)
		assert.True(t, VerifyPin(string(raw), "0000"))
	})
}
