// Package types - Cost anomaly and waste finding types
package types

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Confidence is the qualitative confidence label attached to an
// anomaly signal or a waste classification.
type Confidence string

const (
	ConfidenceLow    Confidence = "Low"
	ConfidenceMedium Confidence = "Medium"
	ConfidenceHigh   Confidence = "High"
)

// String returns the string representation
func (c Confidence) String() string {
	return string(c)
}

// FindingType identifies a waste finding category
type FindingType string

const (
	FindingUnattachedDisk FindingType = "unattached_disk"
	FindingUnusedPublicIP FindingType = "unused_public_ip"
	FindingStoppedVM      FindingType = "stopped_vm"
)

// TrackedFindingTypes are the finding types replaced on every scan cycle
var TrackedFindingTypes = []FindingType{
	FindingUnattachedDisk,
	FindingUnusedPublicIP,
	FindingStoppedVM,
}

// Classification labels for stopped VM findings
const (
	ClassificationPossiblyUnused = "Possibly unused"
	ClassificationLikelyUnused   = "Likely unused"
)

// MaxResourceIDLength is the persisted resource identifier limit
const MaxResourceIDLength = 1024

// DailyCostRecord is one vendor-supplied cost row: the cost of one
// resource on one calendar date.
// Natural key: (UserID, SubscriptionID, Date, ResourceID).
type DailyCostRecord struct {
	UserID         uuid.UUID       `json:"user_id"`
	SubscriptionID string          `json:"subscription_id"`
	Date           Date            `json:"date"`
	ResourceID     string          `json:"resource_id"`
	Cost           decimal.Decimal `json:"cost"`
	Currency       string          `json:"currency"`
}

// CauseAttribution identifies the single dominant contributor to a
// day-over-day cost increase. A summary either has a full attribution
// or none at all.
type CauseAttribution struct {
	ResourceID     string          `json:"resource_id"`
	ResourceName   string          `json:"resource_name"`
	ResourceType   string          `json:"resource_type"`
	IncreaseAmount decimal.Decimal `json:"increase_amount"`
}

// CostSummary is the persisted evaluation result for one user and one
// billing date. It is replaced wholesale each time the engine runs.
type CostSummary struct {
	ID             uuid.UUID         `json:"id"`
	UserID         uuid.UUID         `json:"user_id"`
	Date           Date              `json:"date"`
	TotalYesterday decimal.Decimal   `json:"total_yesterday"`
	TotalToday     decimal.Decimal   `json:"total_today"`
	Difference     decimal.Decimal   `json:"difference"`
	Baseline       decimal.Decimal   `json:"baseline"`
	SpikeFlag      bool              `json:"spike_flag"`
	Confidence     Confidence        `json:"confidence"`
	TopCause       *CauseAttribution `json:"top_cause,omitempty"`
	SuggestionText string            `json:"suggestion_text"`
	CreatedAtUtc   time.Time         `json:"created_at_utc"`
}

// WasteFinding is one idle/unattached resource detected by a scan
// cycle. Findings are a point-in-time snapshot, not an append log.
// The VM-only fields are nil for disk and public IP findings.
type WasteFinding struct {
	ID                   uuid.UUID        `json:"id"`
	UserID               uuid.UUID        `json:"user_id"`
	SubscriptionID       string           `json:"subscription_id"`
	FindingType          FindingType      `json:"finding_type"`
	ResourceID           string           `json:"resource_id"`
	ResourceName         string           `json:"resource_name"`
	EstimatedMonthlyCost *decimal.Decimal `json:"estimated_monthly_cost,omitempty"`
	Classification       string           `json:"classification,omitempty"`
	InactiveDurationDays *decimal.Decimal `json:"inactive_duration_days,omitempty"`
	WasteConfidenceLevel Confidence       `json:"waste_confidence_level,omitempty"`
	LastSeenActiveUtc    *time.Time       `json:"last_seen_active_utc,omitempty"`
	Status               string           `json:"status"`
	DetectedAtUtc        time.Time        `json:"detected_at_utc"`
}

// UnattachedDisk is an inventory row for a disk with no owner
type UnattachedDisk struct {
	ResourceID string `json:"id"`
	Name       string `json:"name"`
	SKU        string `json:"sku"`
	SizeGB     int    `json:"size_gb"`
}

// UnusedPublicIP is an inventory row for an IP with neither an
// attached IP configuration nor a NAT gateway
type UnusedPublicIP struct {
	ResourceID       string `json:"id"`
	Name             string `json:"name"`
	SKU              string `json:"sku"`
	AllocationMethod string `json:"allocation"`
}

// StoppedVM is an inventory row for a powered-off virtual machine
type StoppedVM struct {
	ResourceID string `json:"id"`
	Name       string `json:"name"`
	PowerState string `json:"power_state"`
}

// InventorySnapshot bundles the three waste scan inputs for one
// subscription
type InventorySnapshot struct {
	Disks      []UnattachedDisk `json:"disks"`
	PublicIPs  []UnusedPublicIP `json:"public_ips"`
	StoppedVMs []StoppedVM      `json:"stopped_vms"`
}
