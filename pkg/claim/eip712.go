package claim

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// EIP-712 domain shared with the verifying hubs. Changing any of these values
// invalidates every signature issued so far.
const (
	DomainName    = "Farcaster Verify Ethereum Address"
	DomainVersion = "2.0.0"
	DomainSalt    = "0xf2d857f4a3edcb9b78b4d503bfe733db1e3f6cdc2b7971ee739626c97e86a558"

	PrimaryType = "VerificationClaim"
)

var claimTypes = apitypes.Types{
	"EIP712Domain": {
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "salt", Type: "bytes32"},
	},
	PrimaryType: {
		{Name: "fid", Type: "uint256"},
		{Name: "address", Type: "address"},
		{Name: "blockHash", Type: "bytes32"},
		{Name: "network", Type: "uint8"},
	},
}

// TypedData returns the EIP-712 document for c.
func TypedData(c VerificationClaim) (apitypes.TypedData, error) {
	if err := c.Validate(); err != nil {
		return apitypes.TypedData{}, err
	}

	return apitypes.TypedData{
		Types:       claimTypes,
		PrimaryType: PrimaryType,
		Domain: apitypes.TypedDataDomain{
			Name:    DomainName,
			Version: DomainVersion,
			Salt:    DomainSalt,
		},
		Message: apitypes.TypedDataMessage{
			"fid":       new(big.Int).Set(c.Fid),
			"address":   c.Address.Hex(),
			"blockHash": c.BlockHash.Hex(),
			"network":   new(big.Int).SetUint64(uint64(c.Network)),
		},
	}, nil
}

// Encode returns the 32-byte EIP-712 digest of c:
// keccak256(0x1901 || domainSeparator || hashStruct(c)).
func Encode(c VerificationClaim) ([]byte, error) {
	td, err := TypedData(c)
	if err != nil {
		return nil, err
	}

	digest, _, err := apitypes.TypedDataAndHash(td)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	return digest, nil
}
