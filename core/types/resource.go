// Package types - Resource identifier parsing
package types

import "strings"

// UnknownResourceName is used when a name cannot be derived from an
// identifier
const UnknownResourceName = "Unknown Resource"

// UnknownResourceType is used when an identifier carries no provider
// namespace
const UnknownResourceType = "unknown"

// NormalizeResourceID canonicalizes a resource identifier for
// comparison. Identifier comparisons are case-insensitive throughout.
func NormalizeResourceID(resourceID string) string {
	return strings.ToLower(strings.TrimSpace(resourceID))
}

// TruncateResourceID clips an identifier to the persisted limit
func TruncateResourceID(resourceID string) string {
	if len(resourceID) <= MaxResourceIDLength {
		return resourceID
	}
	return resourceID[:MaxResourceIDLength]
}

// ParseResourceName extracts the display name from a resource
// identifier: the last non-empty path segment.
func ParseResourceName(resourceID string) string {
	parts := splitResourceID(resourceID)
	if len(parts) == 0 {
		return UnknownResourceName
	}
	return parts[len(parts)-1]
}

// ParseResourceType extracts the provider type from a resource
// identifier, e.g. "Microsoft.Compute/virtualMachines". The provider
// namespace follows the "providers" path marker; type segments
// alternate with instance names after it.
func ParseResourceType(resourceID string) string {
	parts := splitResourceID(resourceID)
	providerIndex := -1
	for i, part := range parts {
		if strings.EqualFold(part, "providers") {
			providerIndex = i
			break
		}
	}
	if providerIndex < 0 || providerIndex+1 >= len(parts) {
		return UnknownResourceType
	}

	provider := parts[providerIndex+1]
	var typeSegments []string
	for i := providerIndex + 2; i < len(parts); i += 2 {
		typeSegments = append(typeSegments, parts[i])
	}
	if len(typeSegments) == 0 {
		return provider
	}
	return provider + "/" + strings.Join(typeSegments, "/")
}

func splitResourceID(resourceID string) []string {
	var parts []string
	for _, part := range strings.Split(resourceID, "/") {
		part = strings.TrimSpace(part)
		if part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}
