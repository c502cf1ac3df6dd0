package azure

import (
	"context"
	"encoding/json"

	"costpilot/core/types"
	"costpilot/internal/errors"
	"costpilot/store"
)

// Resource Graph queries for the three waste signals
const (
	UnattachedDisksQuery = `Resources
| where type =~ 'microsoft.compute/disks'
| where isempty(tostring(managedBy))
| project id, name, subscriptionId, sku = tostring(sku.name), sizeGb = toint(properties.diskSizeGB)`

	UnusedPublicIPsQuery = `Resources
| where type =~ 'microsoft.network/publicipaddresses'
| extend ipConfigId = tostring(properties.ipConfiguration.id)
| extend natGatewayId = tostring(properties.natGateway.id)
| where isempty(ipConfigId) and isempty(natGatewayId)
| project id, name, subscriptionId, sku = tostring(sku.name), allocation = tostring(properties.publicIPAllocationMethod)`

	StoppedVMsQuery = `Resources
| where type =~ 'microsoft.compute/virtualmachines'
| extend powerState = tostring(properties.extended.instanceView.powerState.code)
| where powerState has 'stopped' or powerState has 'deallocated'
| project id, name, subscriptionId, powerState`
)

// GraphFetchFunc runs one Resource Graph query against a subscription
// and returns the raw response body.
type GraphFetchFunc func(ctx context.Context, subscriptionID, query string) ([]byte, error)

// InventoryAdapter turns Resource Graph responses into an inventory
// snapshot. It satisfies waste.InventoryProvider.
type InventoryAdapter struct {
	fetch GraphFetchFunc
}

// NewInventoryAdapter creates an inventory adapter over the given
// fetch function.
func NewInventoryAdapter(fetch GraphFetchFunc) *InventoryAdapter {
	return &InventoryAdapter{fetch: fetch}
}

type graphResponse struct {
	Data []json.RawMessage `json:"data"`
}

// Snapshot fetches the three waste signals for one target. Each query
// is independent; the first failure aborts the snapshot so the scan
// never classifies from a partial inventory.
func (a *InventoryAdapter) Snapshot(ctx context.Context, target store.Target) (types.InventorySnapshot, error) {
	var snapshot types.InventorySnapshot

	disks, err := a.query(ctx, target.SubscriptionID, UnattachedDisksQuery)
	if err != nil {
		return snapshot, err
	}
	for _, row := range disks {
		var disk struct {
			ID     string `json:"id"`
			Name   string `json:"name"`
			SKU    string `json:"sku"`
			SizeGB int    `json:"sizeGb"`
		}
		if err := json.Unmarshal(row, &disk); err != nil {
			return snapshot, errors.Wrap(errors.TypeDataShape, "decoding disk row", err)
		}
		if disk.ID == "" {
			continue
		}
		snapshot.Disks = append(snapshot.Disks, types.UnattachedDisk{
			ResourceID: disk.ID,
			Name:       disk.Name,
			SKU:        disk.SKU,
			SizeGB:     disk.SizeGB,
		})
	}

	ips, err := a.query(ctx, target.SubscriptionID, UnusedPublicIPsQuery)
	if err != nil {
		return snapshot, err
	}
	for _, row := range ips {
		var ip struct {
			ID         string `json:"id"`
			Name       string `json:"name"`
			SKU        string `json:"sku"`
			Allocation string `json:"allocation"`
		}
		if err := json.Unmarshal(row, &ip); err != nil {
			return snapshot, errors.Wrap(errors.TypeDataShape, "decoding public ip row", err)
		}
		if ip.ID == "" {
			continue
		}
		snapshot.PublicIPs = append(snapshot.PublicIPs, types.UnusedPublicIP{
			ResourceID:       ip.ID,
			Name:             ip.Name,
			SKU:              ip.SKU,
			AllocationMethod: ip.Allocation,
		})
	}

	vms, err := a.query(ctx, target.SubscriptionID, StoppedVMsQuery)
	if err != nil {
		return snapshot, err
	}
	for _, row := range vms {
		var vm struct {
			ID         string `json:"id"`
			Name       string `json:"name"`
			PowerState string `json:"powerState"`
		}
		if err := json.Unmarshal(row, &vm); err != nil {
			return snapshot, errors.Wrap(errors.TypeDataShape, "decoding vm row", err)
		}
		if vm.ID == "" {
			continue
		}
		snapshot.StoppedVMs = append(snapshot.StoppedVMs, types.StoppedVM{
			ResourceID: vm.ID,
			Name:       vm.Name,
			PowerState: vm.PowerState,
		})
	}

	return snapshot, nil
}

func (a *InventoryAdapter) query(ctx context.Context, subscriptionID, query string) ([]json.RawMessage, error) {
	payload, err := a.fetch(ctx, subscriptionID, query)
	if err != nil {
		return nil, errors.Upstream("resource graph query failed", err)
	}
	var response graphResponse
	if err := json.Unmarshal(payload, &response); err != nil {
		return nil, errors.Wrap(errors.TypeDataShape, "decoding resource graph response", err)
	}
	return response.Data, nil
}
