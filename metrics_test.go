package main

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erc7824/nitrolite/claimsigner/pkg/claim"
	"github.com/erc7824/nitrolite/claimsigner/pkg/log"
)

func TestNewMetricsWithRegistry(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetricsWithRegistry(registry)

	metrics.SignaturesIssued.WithLabelValues(SignatureKindClaim).Inc()
	metrics.ConnectedClients.Inc()

	families, err := registry.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, family := range families {
		names[family.GetName()] = true
	}
	assert.True(t, names["claimsigner_signatures_issued_total"])
	assert.True(t, names["claimsigner_connected_clients"])

	// A second set of metrics on its own registry must not collide.
	assert.NotPanics(t, func() { NewMetricsWithRegistry(prometheus.NewRegistry()) })
}

func TestUpdateClaimMetrics(t *testing.T) {
	ctx := context.Background()
	store := NewClaimStore(setupTestSqlite(t))
	signer := setupTestSigner(t)
	address := common.HexToAddress("0x4444444444444444444444444444444444444444")

	for fid := int64(1); fid <= 3; fid++ {
		_, err := store.Record(ctx, signTestClaim(t, signer, newTestClaim(fid, address, claim.NetworkMainnet)))
		require.NoError(t, err)
	}
	_, err := store.Record(ctx, signTestClaim(t, signer, newTestClaim(9, address, claim.NetworkDevnet)))
	require.NoError(t, err)

	metrics := NewMetricsWithRegistry(prometheus.NewRegistry())
	metrics.UpdateClaimMetrics(ctx, store, log.NewNoopLogger())

	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.RecordedClaims.WithLabelValues("mainnet")))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.RecordedClaims.WithLabelValues("testnet")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RecordedClaims.WithLabelValues("devnet")))
}
