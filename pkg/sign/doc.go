// Package sign implements deterministic secp256k1 signing of digests and
// verification claims, and recovery of the signing address.
//
// An EthereumSigner owns one private key for its whole lifetime. The derived
// Ethereum address is computed once at construction and returned by
// SignerKey. All signatures are 65 bytes laid out as r || s || v with v in
// {27, 28}, and are deterministic (RFC 6979): signing the same input with the
// same key always yields the same bytes.
//
// # Digests
//
// SignDigest signs the caller's digest as-is, without hashing it again. The
// accepted length is fixed per signer with WithDigestLength (16 or 32 bytes,
// 32 by default); any other length is rejected with ErrInvalidDigestLength.
//
//	signer, err := sign.NewEthereumSigner(key, sign.WithDigestLength(16))
//	if err != nil {
//	    return err
//	}
//	digest := provider.Sum(message) // 16-byte BLAKE3
//	sig, err := signer.SignDigest(digest)
//
// # Claims
//
// SignClaim signs the EIP-712 digest of a claim.VerificationClaim. Recovery
// goes through RecoverFromDigest and RecoverFromClaim:
//
//	sig, err := signer.SignClaim(c)
//	addr, err := sign.RecoverFromClaim(c, sig)
//	// addr == signer.SignerKey()
//
// Private key material is never exposed: the signer prints as its address and
// has no accessor for the key.
package sign
