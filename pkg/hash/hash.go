// Package hash provides the digest functions messages are reduced with before
// signing.
package hash

import (
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"lukechampine.com/blake3"
)

// Supported BLAKE3 output lengths.
const (
	Size16 = 16
	Size32 = 32
)

var ErrUnsupportedSize = errors.New("unsupported digest size")

// Provider produces fixed-length digests.
type Provider interface {
	Sum(data []byte) []byte
	Size() int
}

var (
	_ Provider = (*Blake3)(nil)
	_ Provider = Keccak{}
)

// Blake3 is a BLAKE3 provider whose output is truncated to size bytes.
type Blake3 struct {
	size int
}

// NewBlake3 returns a provider emitting size-byte digests. Only Size16 and
// Size32 are accepted.
func NewBlake3(size int) (*Blake3, error) {
	if size != Size16 && size != Size32 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedSize, size)
	}
	return &Blake3{size: size}, nil
}

func (b *Blake3) Sum(data []byte) []byte {
	h := blake3.New(b.size, nil)
	h.Write(data)
	return h.Sum(nil)
}

func (b *Blake3) Size() int { return b.size }

// Keccak is the Ethereum Keccak-256 provider.
type Keccak struct{}

func (Keccak) Sum(data []byte) []byte { return Keccak256(data) }
func (Keccak) Size() int              { return Size32 }

// Keccak256 hashes the concatenation of data.
func Keccak256(data ...[]byte) []byte {
	return ethcrypto.Keccak256(data...)
}
