package sign

import (
	"fmt"
	"math/big"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erc7824/nitrolite/claimsigner/pkg/claim"
	"github.com/erc7824/nitrolite/claimsigner/pkg/hash"
)

const (
	testPrivKey = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	testAddress = "0x2c7536E3605D9C16a7a3D7b1898e529396a65c23"

	// Address of the private key 0x00..01.
	minKeyAddress = "0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf"
)

// secp256k1 group order.
var curveOrder = ethcrypto.S256().Params().N

func setupSigner(t *testing.T, opts ...Option) *EthereumSigner {
	t.Helper()
	signer, err := NewEthereumSignerFromHex(testPrivKey, opts...)
	require.NoError(t, err)
	return signer
}

func minimalKey() []byte {
	key := make([]byte, 32)
	key[31] = 1
	return key
}

func testClaim(address common.Address) claim.VerificationClaim {
	return claim.VerificationClaim{
		Fid:       big.NewInt(1234),
		Address:   address,
		BlockHash: common.HexToHash("0x0a1b2c3d4e5f60718293a4b5c6d7e8f90a1b2c3d4e5f60718293a4b5c6d7e8f9"),
		Network:   claim.NetworkTestnet,
	}
}

func TestNewEthereumSigner(t *testing.T) {
	t.Run("hex with and without prefix", func(t *testing.T) {
		for _, in := range []string{testPrivKey, strings.TrimPrefix(testPrivKey, "0x")} {
			signer, err := NewEthereumSignerFromHex(in)
			require.NoError(t, err)
			assert.Equal(t, common.HexToAddress(testAddress), signer.SignerKey())
		}
	})

	t.Run("minimal scalar", func(t *testing.T) {
		signer, err := NewEthereumSigner(minimalKey())
		require.NoError(t, err)
		assert.Equal(t, minKeyAddress, signer.SignerKey().Hex())
	})

	t.Run("invalid keys", func(t *testing.T) {
		tcs := map[string][]byte{
			"empty":    nil,
			"short":    make([]byte, 31),
			"long":     append(minimalKey(), 0x00),
			"zero":     make([]byte, 32),
			"order":    common.LeftPadBytes(curveOrder.Bytes(), 32),
			"above n":  common.LeftPadBytes(new(big.Int).Add(curveOrder, big.NewInt(1)).Bytes(), 32),
			"all ones": common.FromHex("0xffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff"),
		}
		for name, key := range tcs {
			t.Run(name, func(t *testing.T) {
				signer, err := NewEthereumSigner(key)
				assert.ErrorIs(t, err, ErrInvalidKey)
				assert.Nil(t, signer)
			})
		}

		_, err := NewEthereumSignerFromHex("0xinvalidkey")
		assert.ErrorIs(t, err, ErrInvalidKey)
	})

	t.Run("largest valid scalar", func(t *testing.T) {
		key := common.LeftPadBytes(new(big.Int).Sub(curveOrder, big.NewInt(1)).Bytes(), 32)
		_, err := NewEthereumSigner(key)
		assert.NoError(t, err)
	})

	t.Run("digest length option", func(t *testing.T) {
		assert.Equal(t, DefaultDigestLength, setupSigner(t).DigestLength())
		assert.Equal(t, DigestLength16, setupSigner(t, WithDigestLength(16)).DigestLength())

		for _, n := range []int{0, 20, 33, 64} {
			_, err := NewEthereumSignerFromHex(testPrivKey, WithDigestLength(n))
			assert.ErrorIs(t, err, ErrUnsupportedDigestLength)
		}
	})

	t.Run("generated keys", func(t *testing.T) {
		s1, err := GenerateEthereumSigner()
		require.NoError(t, err)
		s2, err := GenerateEthereumSigner()
		require.NoError(t, err)
		assert.NotEqual(t, s1.SignerKey(), s2.SignerKey())
	})
}

func TestSignerKey(t *testing.T) {
	signer := setupSigner(t)

	priv, err := ethcrypto.HexToECDSA(strings.TrimPrefix(testPrivKey, "0x"))
	require.NoError(t, err)
	assert.Equal(t, ethcrypto.PubkeyToAddress(priv.PublicKey), signer.SignerKey())
	assert.Equal(t, signer.SignerKey(), signer.SignerKey())

	pub := signer.PublicKey()
	assert.Len(t, pub, 65)
	assert.Equal(t, byte(0x04), pub[0])
	assert.Equal(t, ethcrypto.FromECDSAPub(&priv.PublicKey), pub)

	assert.Equal(t, testAddress, signer.String())
	assert.NotContains(t, strings.ToLower(signer.String()), strings.TrimPrefix(testPrivKey, "0x"))
}

func TestSignDigest(t *testing.T) {
	t.Run("minimal key, zero 16-byte digest", func(t *testing.T) {
		signer, err := NewEthereumSigner(minimalKey(), WithDigestLength(16))
		require.NoError(t, err)

		digest := make([]byte, 16)
		sig, err := signer.SignDigest(digest)
		require.NoError(t, err)
		assert.Len(t, sig, SignatureLength)

		recovered, err := RecoverFromDigest(digest, sig)
		require.NoError(t, err)
		assert.Equal(t, minKeyAddress, recovered.Hex())
	})

	for _, length := range []int{DigestLength16, DigestLength32} {
		provider, err := hash.NewBlake3(length)
		require.NoError(t, err)
		signer := setupSigner(t, WithDigestLength(length))

		t.Run(fmt.Sprintf("recovers with %d-byte blake3 digest", length), func(t *testing.T) {
			for i := 0; i < 10; i++ {
				digest := provider.Sum([]byte{byte(i), 0xaa})
				sig, err := signer.SignDigest(digest)
				require.NoError(t, err)
				assert.Contains(t, []byte{27, 28}, sig[64])

				recovered, err := RecoverFromDigest(digest, sig)
				require.NoError(t, err)
				assert.Equal(t, signer.SignerKey(), recovered)
			}
		})

		t.Run(fmt.Sprintf("deterministic %d", length), func(t *testing.T) {
			digest := provider.Sum([]byte("same input"))
			sig1, err := signer.SignDigest(digest)
			require.NoError(t, err)
			sig2, err := signer.SignDigest(append([]byte(nil), digest...))
			require.NoError(t, err)
			assert.Equal(t, sig1, sig2)
		})

		t.Run(fmt.Sprintf("rejects lengths other than %d", length), func(t *testing.T) {
			for _, n := range []int{0, 1, 15, 17, 31, 33, 64} {
				if n == length {
					continue
				}
				sig, err := signer.SignDigest(make([]byte, n))
				assert.ErrorIs(t, err, ErrInvalidDigestLength)
				assert.Nil(t, sig)
			}
		})
	}

	t.Run("matches go-ethereum for 32-byte digests", func(t *testing.T) {
		signer := setupSigner(t)
		priv, err := ethcrypto.HexToECDSA(strings.TrimPrefix(testPrivKey, "0x"))
		require.NoError(t, err)

		digest := ethcrypto.Keccak256([]byte("test message for signing"))
		sig, err := signer.SignDigest(digest)
		require.NoError(t, err)

		expected, err := ethcrypto.Sign(digest, priv)
		require.NoError(t, err)
		assert.Equal(t, expected[:64], []byte(sig[:64]))
		assert.Equal(t, expected[64]+27, sig[64])

		raw := append([]byte(nil), sig...)
		raw[64] -= 27
		pub, err := ethcrypto.SigToPub(digest, raw)
		require.NoError(t, err)
		assert.Equal(t, signer.SignerKey(), ethcrypto.PubkeyToAddress(*pub))
	})

	t.Run("random keys", func(t *testing.T) {
		for i := 0; i < 10; i++ {
			signer, err := GenerateEthereumSigner()
			require.NoError(t, err)

			digest := ethcrypto.Keccak256([]byte{byte(i)})
			sig, err := signer.SignDigest(digest)
			require.NoError(t, err)

			recovered, err := RecoverFromDigest(digest, sig)
			require.NoError(t, err)
			assert.Equal(t, signer.SignerKey(), recovered)
		}
	})

	t.Run("concurrent use", func(t *testing.T) {
		signer := setupSigner(t)
		digest := ethcrypto.Keccak256([]byte("concurrent"))
		want, err := signer.SignDigest(digest)
		require.NoError(t, err)

		var wg sync.WaitGroup
		results := make([]Signature, 16)
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i], _ = signer.SignDigest(digest)
			}(i)
		}
		wg.Wait()

		for _, got := range results {
			assert.Equal(t, want, got)
		}
	})
}

func TestSignClaim(t *testing.T) {
	signer := setupSigner(t)
	c := testClaim(signer.SignerKey())

	sig, err := signer.SignClaim(c)
	require.NoError(t, err)
	assert.Len(t, sig, SignatureLength)

	t.Run("recovers signer", func(t *testing.T) {
		recovered, err := RecoverFromClaim(c, sig)
		require.NoError(t, err)
		assert.Equal(t, signer.SignerKey(), recovered)
	})

	t.Run("identical when encoding twice", func(t *testing.T) {
		c2 := claim.VerificationClaim{
			Fid:       new(big.Int).SetInt64(c.Fid.Int64()),
			Address:   common.BytesToAddress(c.Address.Bytes()),
			BlockHash: common.BytesToHash(c.BlockHash.Bytes()),
			Network:   c.Network,
		}
		sig2, err := signer.SignClaim(c2)
		require.NoError(t, err)
		assert.Equal(t, sig, sig2)
		assert.Equal(t, sig.String(), sig2.String())
	})

	t.Run("independent of digest length", func(t *testing.T) {
		short := setupSigner(t, WithDigestLength(16))
		sig16, err := short.SignClaim(c)
		require.NoError(t, err)
		assert.Equal(t, sig, sig16)
	})

	t.Run("different claim recovers a different address", func(t *testing.T) {
		other := c
		other.Fid = big.NewInt(4321)
		recovered, err := RecoverFromClaim(other, sig)
		require.NoError(t, err)
		assert.NotEqual(t, signer.SignerKey(), recovered)
	})

	t.Run("rejects invalid claim", func(t *testing.T) {
		bad := c
		bad.Fid = big.NewInt(-5)
		_, err := signer.SignClaim(bad)
		assert.ErrorIs(t, err, claim.ErrEncoding)

		bad = c
		bad.Network = 0
		_, err = signer.SignClaim(bad)
		assert.ErrorIs(t, err, claim.ErrEncoding)
	})
}

func TestSignMessage(t *testing.T) {
	signer := setupSigner(t)
	message := []byte(`{"res":[1,"get_signer",{},1700000000000]}`)

	sig, err := signer.SignMessage(message)
	require.NoError(t, err)

	recovered, err := RecoverFromMessage(message, sig)
	require.NoError(t, err)
	assert.Equal(t, signer.SignerKey(), recovered)

	viaDigest, err := signer.SignDigest(hash.Keccak256(message))
	require.NoError(t, err)
	assert.Equal(t, viaDigest, sig)
}
