package sign

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/erc7824/nitrolite/claimsigner/pkg/claim"
)

// SignatureLength is the size of an r || s || v signature.
const SignatureLength = 65

var (
	// ErrInvalidKey means the key is not a valid secp256k1 scalar in [1, n-1].
	ErrInvalidKey = errors.New("invalid private key")
	// ErrInvalidDigestLength means the digest does not have the configured length.
	ErrInvalidDigestLength = errors.New("invalid digest length")
	// ErrUnsupportedDigestLength means a signer was configured with a length other than 16 or 32.
	ErrUnsupportedDigestLength = errors.New("unsupported digest length")
	// ErrInvalidSignature means the signature does not decode to a valid (r, s, v)
	// or does not recover to a public key.
	ErrInvalidSignature = errors.New("invalid signature")
)

// Signer signs digests and verification claims with a single key.
type Signer interface {
	// SignerKey is the address derived from the signer's key.
	SignerKey() common.Address
	SignDigest(digest []byte) (Signature, error)
	SignClaim(c claim.VerificationClaim) (Signature, error)
}

// AddressRecoverer recovers the address that produced a signature.
type AddressRecoverer interface {
	RecoverFromDigest(digest []byte, sig Signature) (common.Address, error)
	RecoverFromClaim(c claim.VerificationClaim, sig Signature) (common.Address, error)
}

// Signature is a raw signature. It marshals to JSON as a 0x-prefixed hex string.
type Signature []byte

// Type is the signature scheme, inferred from a signature's layout.
type Type uint8

const (
	TypeEthereum Type = iota
	TypeUnknown  Type = 255
)

func (t Type) String() string {
	switch t {
	case TypeEthereum:
		return "Ethereum"
	default:
		return "Unknown"
	}
}

// Type returns TypeEthereum for 65-byte signatures and TypeUnknown otherwise.
func (s Signature) Type() Type {
	if len(s) == SignatureLength {
		return TypeEthereum
	}
	return TypeUnknown
}

func (s Signature) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Signature) UnmarshalJSON(data []byte) error {
	var hexStr string
	if err := json.Unmarshal(data, &hexStr); err != nil {
		return err
	}
	decoded, err := hexutil.Decode(hexStr)
	if err != nil {
		return err
	}
	*s = decoded
	return nil
}

func (s Signature) String() string {
	return hexutil.Encode(s)
}

// NewAddressRecoverer returns the recoverer for sigType.
func NewAddressRecoverer(sigType Type) (AddressRecoverer, error) {
	switch sigType {
	case TypeEthereum:
		return EthereumAddressRecoverer{}, nil
	default:
		return nil, fmt.Errorf("unsupported signature type: %s", sigType)
	}
}

// NewAddressRecovererFromSignature picks the recoverer matching the layout of sig.
func NewAddressRecovererFromSignature(sig Signature) (AddressRecoverer, error) {
	return NewAddressRecoverer(sig.Type())
}
