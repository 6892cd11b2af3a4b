package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erc7824/nitrolite/claimsigner/pkg/hash"
	"github.com/erc7824/nitrolite/claimsigner/pkg/hexbytes"
	"github.com/erc7824/nitrolite/claimsigner/pkg/sign"
)

// parseCliOutput splits "key: value" and "KEY=value" lines.
func parseCliOutput(t *testing.T, out string) map[string]string {
	t.Helper()

	fields := make(map[string]string)
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if key, value, ok := strings.Cut(line, ": "); ok {
			fields[key] = value
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		require.True(t, ok, "unexpected line %q", line)
		fields[key] = value
	}
	return fields
}

func TestRunGenerateKeyCli(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runGenerateKeyCli(&out))

	fields := parseCliOutput(t, out.String())
	require.Contains(t, fields, "SIGNER_PRIVATE_KEY")
	require.Contains(t, fields, "address")

	signer, err := sign.NewEthereumSignerFromHex(fields["SIGNER_PRIVATE_KEY"])
	require.NoError(t, err)
	assert.Equal(t, signer.SignerKey().Hex(), fields["address"])

	var second bytes.Buffer
	require.NoError(t, runGenerateKeyCli(&second))
	assert.NotEqual(t, fields["SIGNER_PRIVATE_KEY"], parseCliOutput(t, second.String())["SIGNER_PRIVATE_KEY"])
}

func TestSignMessageCli(t *testing.T) {
	message := []byte("verify me")

	for _, length := range []int{sign.DigestLength16, sign.DigestLength32} {
		conf := SignerConfig{PrivateKey: testSignerKey, DigestLength: length, Network: "testnet"}

		var out bytes.Buffer
		require.NoError(t, signMessage(&out, conf, message))
		fields := parseCliOutput(t, out.String())

		signer := setupTestSigner(t, sign.WithDigestLength(length))
		assert.Equal(t, signer.SignerKey().Hex(), fields["signer"])

		hasher, err := hash.NewBlake3(length)
		require.NoError(t, err)
		digest := hasher.Sum(message)
		assert.Equal(t, hexbytes.BytesToHex(digest), fields["digest"])

		sig, err := hexbytes.HexToBytes(fields["signature"])
		require.NoError(t, err)
		recovered, err := sign.RecoverFromDigest(digest, sig)
		require.NoError(t, err)
		assert.Equal(t, signer.SignerKey(), recovered)
	}

	t.Run("invalid key", func(t *testing.T) {
		var out bytes.Buffer
		err := signMessage(&out, SignerConfig{PrivateKey: "0x00", DigestLength: sign.DigestLength32}, message)
		require.ErrorIs(t, err, sign.ErrInvalidKey)
		assert.Empty(t, out.String())
	})

	t.Run("ephemeral key", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, signMessage(&out, SignerConfig{DigestLength: sign.DigestLength32}, message))
		fields := parseCliOutput(t, out.String())
		assert.True(t, common.IsHexAddress(fields["signer"]))
		assert.NotEqual(t, setupTestSigner(t).SignerKey().Hex(), fields["signer"])
	})
}
