package privacy

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashForLookup(t *testing.T) {
	key := []byte("lookup-key")

	t.Run("normalizes case and surrounding whitespace", func(t *testing.T) {
		assert.Equal(t, HashForLookup(key, "PK-1001"), HashForLookup(key, "  pk-1001 "))
	})

	t.Run("different keys give different digests", func(t *testing.T) {
		assert.NotEqual(t, HashForLookup(key, "PK-1001"), HashForLookup([]byte("other"), "PK-1001"))
	})

	t.Run("digest is hex encoded 256-bit", func(t *testing.T) {
		assert.Len(t, HashForLookup(nil, "PK-1001"), 64)
	})
}

func TestSealer(t *testing.T) {
	sealer, err := NewSealer(bytes.Repeat([]byte{7}, 32))
	require.NoError(t, err)

	t.Run("round trips", func(t *testing.T) {
		sealed, err := sealer.Seal("TARIQ KHAN")
		require.NoError(t, err)
		assert.NotContains(t, sealed, "TARIQ")

		opened, err := sealer.Open(sealed)
		require.NoError(t, err)
		assert.Equal(t, "TARIQ KHAN", opened)
	})

	t.Run("nonce makes ciphertexts differ", func(t *testing.T) {
		a, _ := sealer.Seal("ALI KHAN")
		b, _ := sealer.Seal("ALI KHAN")
		assert.NotEqual(t, a, b)
	})

	t.Run("plaintext passes through open", func(t *testing.T) {
		opened, err := sealer.Open("ALI KHAN")
		require.NoError(t, err)
		assert.Equal(t, "ALI KHAN", opened)
	})

	t.Run("tampered value fails", func(t *testing.T) {
		sealed, _ := sealer.Seal("ALI KHAN")
		b := []byte(sealed)
		i := len(b) - 5
		if b[i] == 'A' {
			b[i] = 'B'
		} else {
			b[i] = 'A'
		}
		_, err := sealer.Open(string(b))
		assert.Error(t, err)
	})

	t.Run("nil sealer is a no-op", func(t *testing.T) {
		var s *Sealer
		out, err := s.Seal("ALI")
		require.NoError(t, err)
		assert.Equal(t, "ALI", out)
	})

	t.Run("rejects short keys", func(t *testing.T) {
		_, err := NewSealer([]byte("short"))
		assert.Error(t, err)
	})
}

func TestAnonymizeIP(t *testing.T) {
	assert.Equal(t, "203.0.113.0", AnonymizeIP("203.0.113.77"))
	assert.Equal(t, "2001:db8:abcd::", AnonymizeIP("2001:db8:abcd:12::1"))
	assert.Equal(t, "", AnonymizeIP("not-an-ip"))
}
