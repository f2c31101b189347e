// Package tools implements the tool catalog: named, tenant-bindable
// platform actions tagged with a safety tier, resolved against a policy cap
// before each model run.
package tools

import "fmt"

// SafetyTier classifies how dangerous a tool is. The ordering is fixed and
// total: TierLow < TierMid < TierHigh.
type SafetyTier int

const (
	// TierLow marks read-only or otherwise harmless actions.
	TierLow SafetyTier = iota

	// TierMid marks actions that modify tenant state reversibly.
	TierMid

	// TierHigh marks destructive or privilege-sensitive actions.
	TierHigh
)

// String returns the lowercase tier name.
func (t SafetyTier) String() string {
	switch t {
	case TierLow:
		return "low"
	case TierMid:
		return "mid"
	case TierHigh:
		return "high"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// ParseTier converts a tier name to its SafetyTier value.
func ParseTier(s string) (SafetyTier, error) {
	switch s {
	case "low":
		return TierLow, nil
	case "mid":
		return TierMid, nil
	case "high":
		return TierHigh, nil
	default:
		return TierLow, fmt.Errorf("unknown safety tier: %q", s)
	}
}
