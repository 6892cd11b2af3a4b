package sign

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestType(t *testing.T) {
	tests := []struct {
		sigType  Type
		expected string
	}{
		{TypeEthereum, "Ethereum"},
		{TypeUnknown, "Unknown"},
		{Type(42), "Unknown"},
	}

	for _, test := range tests {
		assert.Equal(t, test.expected, test.sigType.String())
	}
}

func TestSignature(t *testing.T) {
	t.Run("type from layout", func(t *testing.T) {
		tests := []struct {
			name     string
			sig      Signature
			expected Type
		}{
			{"65 bytes", make(Signature, 65), TypeEthereum},
			{"64 bytes", make(Signature, 64), TypeUnknown},
			{"96 bytes", make(Signature, 96), TypeUnknown},
			{"empty", Signature{}, TypeUnknown},
		}

		for _, test := range tests {
			t.Run(test.name, func(t *testing.T) {
				assert.Equal(t, test.expected, test.sig.Type())
			})
		}
	})

	t.Run("JSON", func(t *testing.T) {
		data, err := json.Marshal(Signature{0xde, 0xad, 0xbe, 0xef})
		require.NoError(t, err)
		assert.Equal(t, `"0xdeadbeef"`, string(data))

		var sig Signature
		require.NoError(t, json.Unmarshal(data, &sig))
		assert.Equal(t, Signature{0xde, 0xad, 0xbe, 0xef}, sig)

		assert.Error(t, json.Unmarshal([]byte(`"deadbeef"`), &sig))
		assert.Error(t, json.Unmarshal([]byte(`"0xzz"`), &sig))
		assert.Error(t, json.Unmarshal([]byte(`12`), &sig))
	})

	t.Run("JSON inside struct", func(t *testing.T) {
		type envelope struct {
			Sig Signature `json:"sig"`
		}
		var out envelope
		require.NoError(t, json.Unmarshal([]byte(`{"sig":"0x0102"}`), &out))
		assert.Equal(t, Signature{0x01, 0x02}, out.Sig)
	})
}

func TestNewAddressRecoverer(t *testing.T) {
	recoverer, err := NewAddressRecoverer(TypeEthereum)
	require.NoError(t, err)
	assert.IsType(t, EthereumAddressRecoverer{}, recoverer)

	_, err = NewAddressRecoverer(TypeUnknown)
	assert.EqualError(t, err, "unsupported signature type: Unknown")

	_, err = NewAddressRecovererFromSignature(make(Signature, 10))
	assert.Error(t, err)
}
