package hash

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBlake3(t *testing.T) {
	for _, size := range []int{Size16, Size32} {
		p, err := NewBlake3(size)
		require.NoError(t, err)
		assert.Equal(t, size, p.Size())
	}

	for _, size := range []int{0, 8, 20, 64} {
		_, err := NewBlake3(size)
		assert.ErrorIs(t, err, ErrUnsupportedSize)
	}
}

func TestBlake3Sum(t *testing.T) {
	// BLAKE3("") from the reference test vectors.
	const emptyDigest = "af1349b9f5f9a1a6a0404dea36dcc9499bcb25c9adc112b7cc9a93cae41f3262"

	p32, err := NewBlake3(Size32)
	require.NoError(t, err)
	assert.Equal(t, emptyDigest, hex.EncodeToString(p32.Sum(nil)))

	t.Run("short output is a prefix of the long one", func(t *testing.T) {
		p16, err := NewBlake3(Size16)
		require.NoError(t, err)

		msg := []byte("verification claim")
		short := p16.Sum(msg)
		assert.Len(t, short, Size16)
		assert.Equal(t, p32.Sum(msg)[:Size16], short)
	})

	t.Run("deterministic", func(t *testing.T) {
		assert.Equal(t, p32.Sum([]byte("a")), p32.Sum([]byte("a")))
		assert.NotEqual(t, p32.Sum([]byte("a")), p32.Sum([]byte("b")))
	})
}

func TestKeccak256(t *testing.T) {
	// Keccak-256("") as used by Ethereum.
	const emptyDigest = "c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470"
	assert.Equal(t, emptyDigest, hex.EncodeToString(Keccak256()))
	assert.Equal(t, Keccak256([]byte("ab")), Keccak256([]byte("a"), []byte("b")))
	assert.Equal(t, Size32, Keccak{}.Size())
	assert.Equal(t, Keccak256([]byte("x")), Keccak{}.Sum([]byte("x")))
}
