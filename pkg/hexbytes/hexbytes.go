// Package hexbytes converts between raw byte sequences and their 0x-prefixed
// hex presentation.
package hexbytes

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// BytesToHex returns the lower-case, 0x-prefixed hex form of b.
func BytesToHex(b []byte) string {
	return hexutil.Encode(b)
}

// HexToBytes decodes a 0x-prefixed, even-length hex string. Upper-case digits
// are accepted; BytesToHex always emits lower case.
func HexToBytes(s string) ([]byte, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex string %q: %w", s, err)
	}
	return b, nil
}

// HexToFixed decodes s and checks that it is exactly n bytes long.
func HexToFixed(s string, n int) ([]byte, error) {
	b, err := HexToBytes(s)
	if err != nil {
		return nil, err
	}
	if len(b) != n {
		return nil, fmt.Errorf("invalid length for %q: got %d bytes, want %d", s, len(b), n)
	}
	return b, nil
}
