package sign

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	secpecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/erc7824/nitrolite/claimsigner/pkg/claim"
	"github.com/erc7824/nitrolite/claimsigner/pkg/hash"
)

// Digest lengths a signer can be configured to accept.
const (
	DigestLength16 = 16
	DigestLength32 = 32

	DefaultDigestLength = DigestLength32
)

var _ Signer = (*EthereumSigner)(nil)

type options struct {
	digestLength int
}

// Option configures an EthereumSigner.
type Option func(*options)

// WithDigestLength sets the only digest length SignDigest accepts.
func WithDigestLength(n int) Option {
	return func(o *options) { o.digestLength = n }
}

// EthereumSigner signs with a secp256k1 key and identifies itself by the
// corresponding Ethereum address. It is immutable and safe for concurrent use.
type EthereumSigner struct {
	key          *secp256k1.PrivateKey
	publicKey    *ecdsa.PublicKey
	address      common.Address
	digestLength int
}

// NewEthereumSigner creates a signer from a raw 32-byte private key.
func NewEthereumSigner(key []byte, opts ...Option) (*EthereumSigner, error) {
	o := options{digestLength: DefaultDigestLength}
	for _, opt := range opts {
		opt(&o)
	}
	if o.digestLength != DigestLength16 && o.digestLength != DigestLength32 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedDigestLength, o.digestLength)
	}

	// ToECDSA enforces the length and the [1, n-1] range.
	priv, err := ethcrypto.ToECDSA(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	return &EthereumSigner{
		key:          secp256k1.PrivKeyFromBytes(key),
		publicKey:    &priv.PublicKey,
		address:      ethcrypto.PubkeyToAddress(priv.PublicKey),
		digestLength: o.digestLength,
	}, nil
}

// NewEthereumSignerFromHex creates a signer from a hex private key, with or
// without the 0x prefix.
func NewEthereumSignerFromHex(privateKeyHex string, opts ...Option) (*EthereumSigner, error) {
	privateKeyHex = strings.TrimPrefix(privateKeyHex, "0x")
	key, err := decodeHexKey(privateKeyHex)
	if err != nil {
		return nil, err
	}
	return NewEthereumSigner(key, opts...)
}

// GenerateEthereumSigner creates a signer with a fresh random key.
func GenerateEthereumSigner(opts ...Option) (*EthereumSigner, error) {
	key, err := GenerateKey()
	if err != nil {
		return nil, err
	}
	return NewEthereumSigner(key, opts...)
}

// GenerateKey returns a random valid private key read from crypto/rand.
func GenerateKey() ([]byte, error) {
	priv, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return ethcrypto.FromECDSA(priv), nil
}

func (s *EthereumSigner) SignerKey() common.Address { return s.address }

// PublicKey returns the 65-byte uncompressed public key.
func (s *EthereumSigner) PublicKey() []byte { return ethcrypto.FromECDSAPub(s.publicKey) }

func (s *EthereumSigner) DigestLength() int { return s.digestLength }

// String prints the address only.
func (s *EthereumSigner) String() string { return s.address.Hex() }

// SignDigest signs digest without hashing it again.
func (s *EthereumSigner) SignDigest(digest []byte) (Signature, error) {
	if len(digest) != s.digestLength {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidDigestLength, len(digest), s.digestLength)
	}
	return s.signHash(digest), nil
}

// SignClaim signs the EIP-712 digest of c. The claim digest is always 32
// bytes, whatever length SignDigest is configured for.
func (s *EthereumSigner) SignClaim(c claim.VerificationClaim) (Signature, error) {
	digest, err := claim.Encode(c)
	if err != nil {
		return nil, err
	}
	return s.signHash(digest), nil
}

// SignMessage signs the Keccak-256 hash of message.
func (s *EthereumSigner) SignMessage(message []byte) (Signature, error) {
	return s.signHash(hash.Keccak256(message)), nil
}

func (s *EthereumSigner) signHash(h []byte) Signature {
	// Compact layout is v || r || s with v = 27 + recovery id for an
	// uncompressed key.
	compact := secpecdsa.SignCompact(s.key, h, false)

	sig := make(Signature, SignatureLength)
	copy(sig, compact[1:])
	sig[64] = compact[0]
	return sig
}

func decodeHexKey(s string) ([]byte, error) {
	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed hex", ErrInvalidKey)
	}
	return key, nil
}
