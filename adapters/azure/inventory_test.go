package azure

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"costpilot/internal/errors"
	"costpilot/store"
)

func TestInventorySnapshot(t *testing.T) {
	responses := map[string]string{
		UnattachedDisksQuery: `{"data": [
			{"id": "/subscriptions/s/resourceGroups/rg/providers/Microsoft.Compute/disks/d1", "name": "d1", "sku": "Premium_LRS", "sizeGb": 128},
			{"id": "", "name": "ignored"}
		]}`,
		UnusedPublicIPsQuery: `{"data": [
			{"id": "/subscriptions/s/resourceGroups/rg/providers/Microsoft.Network/publicIPAddresses/ip1", "name": "ip1", "sku": "Standard", "allocation": "Static"}
		]}`,
		StoppedVMsQuery: `{"data": [
			{"id": "/subscriptions/s/resourceGroups/rg/providers/Microsoft.Compute/virtualMachines/vm1", "name": "vm1", "powerState": "PowerState/deallocated"}
		]}`,
	}

	fetch := func(_ context.Context, subscriptionID, query string) ([]byte, error) {
		assert.Equal(t, "sub-1", subscriptionID)
		payload, ok := responses[query]
		require.True(t, ok, "unexpected query:\n%s", query)
		return []byte(payload), nil
	}

	snapshot, err := NewInventoryAdapter(fetch).Snapshot(context.Background(),
		store.Target{SubscriptionID: "sub-1"})
	require.NoError(t, err)

	require.Len(t, snapshot.Disks, 1)
	assert.Equal(t, "d1", snapshot.Disks[0].Name)
	assert.Equal(t, "Premium_LRS", snapshot.Disks[0].SKU)
	assert.Equal(t, 128, snapshot.Disks[0].SizeGB)

	require.Len(t, snapshot.PublicIPs, 1)
	assert.Equal(t, "Standard", snapshot.PublicIPs[0].SKU)
	assert.Equal(t, "Static", snapshot.PublicIPs[0].AllocationMethod)

	require.Len(t, snapshot.StoppedVMs, 1)
	assert.Equal(t, "PowerState/deallocated", snapshot.StoppedVMs[0].PowerState)
}

func TestInventorySnapshotEmptyResults(t *testing.T) {
	fetch := func(_ context.Context, _, _ string) ([]byte, error) {
		return []byte(`{"data": []}`), nil
	}
	snapshot, err := NewInventoryAdapter(fetch).Snapshot(context.Background(), store.Target{})
	require.NoError(t, err)
	assert.Empty(t, snapshot.Disks)
	assert.Empty(t, snapshot.PublicIPs)
	assert.Empty(t, snapshot.StoppedVMs)
}

func TestInventorySnapshotFetchFailureIsUpstream(t *testing.T) {
	fetch := func(_ context.Context, _, _ string) ([]byte, error) {
		return nil, assert.AnError
	}
	_, err := NewInventoryAdapter(fetch).Snapshot(context.Background(), store.Target{})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.TypeUpstream))
}

func TestInventorySnapshotMalformedPayload(t *testing.T) {
	fetch := func(_ context.Context, _, _ string) ([]byte, error) {
		return []byte(`not json`), nil
	}
	_, err := NewInventoryAdapter(fetch).Snapshot(context.Background(), store.Target{})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.TypeDataShape))
}
