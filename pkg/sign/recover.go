package sign

import (
	"fmt"

	secpecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/ethereum/go-ethereum/common"

	"github.com/erc7824/nitrolite/claimsigner/pkg/claim"
	"github.com/erc7824/nitrolite/claimsigner/pkg/hash"
)

var _ AddressRecoverer = EthereumAddressRecoverer{}

// EthereumAddressRecoverer recovers Ethereum addresses from r || s || v signatures.
type EthereumAddressRecoverer struct{}

func (EthereumAddressRecoverer) RecoverFromDigest(digest []byte, sig Signature) (common.Address, error) {
	return RecoverFromDigest(digest, sig)
}

func (EthereumAddressRecoverer) RecoverFromClaim(c claim.VerificationClaim, sig Signature) (common.Address, error) {
	return RecoverFromClaim(c, sig)
}

// RecoverFromDigest returns the address whose key signed digest. The digest
// is used as-is and must be between 1 and 32 bytes.
func RecoverFromDigest(digest []byte, sig Signature) (common.Address, error) {
	if len(digest) == 0 || len(digest) > DigestLength32 {
		return common.Address{}, fmt.Errorf("%w: got %d bytes", ErrInvalidDigestLength, len(digest))
	}
	return recoverHash(digest, sig)
}

// RecoverFromClaim returns the address whose key signed the EIP-712 digest of c.
func RecoverFromClaim(c claim.VerificationClaim, sig Signature) (common.Address, error) {
	digest, err := claim.Encode(c)
	if err != nil {
		return common.Address{}, err
	}
	return recoverHash(digest, sig)
}

// RecoverFromMessage returns the address that produced a SignMessage signature.
func RecoverFromMessage(message []byte, sig Signature) (common.Address, error) {
	return recoverHash(hash.Keccak256(message), sig)
}

// recoverHash accepts v as either 0/1 or 27/28 and never modifies sig.
func recoverHash(h []byte, sig Signature) (common.Address, error) {
	if len(sig) != SignatureLength {
		return common.Address{}, fmt.Errorf("%w: length %d, want %d", ErrInvalidSignature, len(sig), SignatureLength)
	}

	v := sig[64]
	if v >= 27 {
		v -= 27
	}
	if v > 1 {
		return common.Address{}, fmt.Errorf("%w: recovery id %d", ErrInvalidSignature, sig[64])
	}

	compact := make([]byte, SignatureLength)
	compact[0] = 27 + v
	copy(compact[1:], sig[:64])

	pub, _, err := secpecdsa.RecoverCompact(compact, h)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return pubkeyBytesToAddress(pub.SerializeUncompressed()), nil
}

// pubkeyBytesToAddress takes a 65-byte uncompressed key (0x04 || X || Y).
func pubkeyBytesToAddress(pub []byte) common.Address {
	return common.BytesToAddress(hash.Keccak256(pub[1:])[12:])
}
