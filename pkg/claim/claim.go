// Package claim defines the verification claim an address owner signs to link
// that address to an fid, and its canonical EIP-712 encoding.
package claim

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ErrEncoding is returned when a claim field is outside its declared domain.
var ErrEncoding = errors.New("claim encoding error")

// Network identifies the network a claim is valid on. It is part of the
// signed payload.
type Network uint8

const (
	NetworkMainnet Network = 1
	NetworkTestnet Network = 2
	NetworkDevnet  Network = 3
)

func (n Network) String() string {
	switch n {
	case NetworkMainnet:
		return "mainnet"
	case NetworkTestnet:
		return "testnet"
	case NetworkDevnet:
		return "devnet"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(n))
	}
}

func (n Network) Valid() bool {
	return n >= NetworkMainnet && n <= NetworkDevnet
}

// ParseNetwork accepts the lower-case network name.
func ParseNetwork(s string) (Network, error) {
	switch strings.ToLower(s) {
	case "mainnet":
		return NetworkMainnet, nil
	case "testnet":
		return NetworkTestnet, nil
	case "devnet":
		return NetworkDevnet, nil
	default:
		return 0, fmt.Errorf("%w: unknown network %q", ErrEncoding, s)
	}
}

// VerificationClaim states that Address belongs to the account Fid, as of the
// block identified by BlockHash.
type VerificationClaim struct {
	Fid       *big.Int
	Address   common.Address
	BlockHash common.Hash
	Network   Network
}

// NewVerificationClaim builds a claim from raw inputs, rejecting an address
// that is not 20 bytes or a block hash that is not 32 bytes.
func NewVerificationClaim(fid *big.Int, address, blockHash []byte, network Network) (VerificationClaim, error) {
	if len(address) != common.AddressLength {
		return VerificationClaim{}, fmt.Errorf("%w: address must be %d bytes, got %d", ErrEncoding, common.AddressLength, len(address))
	}
	if len(blockHash) != common.HashLength {
		return VerificationClaim{}, fmt.Errorf("%w: block hash must be %d bytes, got %d", ErrEncoding, common.HashLength, len(blockHash))
	}

	c := VerificationClaim{
		Address:   common.BytesToAddress(address),
		BlockHash: common.BytesToHash(blockHash),
		Network:   network,
	}
	if fid != nil {
		c.Fid = new(big.Int).Set(fid)
	}
	if err := c.Validate(); err != nil {
		return VerificationClaim{}, err
	}
	return c, nil
}

// Validate checks the fields that the type system does not: fid must be a
// non-negative uint256 and the network must be a declared value.
func (c VerificationClaim) Validate() error {
	switch {
	case c.Fid == nil:
		return fmt.Errorf("%w: fid is required", ErrEncoding)
	case c.Fid.Sign() < 0:
		return fmt.Errorf("%w: fid must not be negative", ErrEncoding)
	case c.Fid.BitLen() > 256:
		return fmt.Errorf("%w: fid exceeds uint256", ErrEncoding)
	case !c.Network.Valid():
		return fmt.Errorf("%w: invalid network %d", ErrEncoding, uint8(c.Network))
	}
	return nil
}

// Equal reports whether both claims carry the same field values.
func (c VerificationClaim) Equal(other VerificationClaim) bool {
	if (c.Fid == nil) != (other.Fid == nil) {
		return false
	}
	if c.Fid != nil && c.Fid.Cmp(other.Fid) != 0 {
		return false
	}
	return c.Address == other.Address && c.BlockHash == other.BlockHash && c.Network == other.Network
}
