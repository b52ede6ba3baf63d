package domain

// Tier is the magnitude-derived severity bucket.
type Tier string

const (
	TierLow      Tier = "low"
	TierModerate Tier = "moderate"
	TierHigh     Tier = "high"
	TierSevere   Tier = "severe"
)

const (
	moderateThreshold = 4.0
	highThreshold     = 5.0
	severeThreshold   = 6.0

	markerMinSize   = 20.0
	markerMaxSize   = 50.0
	markerSizeScale = 5.0
)

// ClassifyMagnitude maps a magnitude to its tier. Thresholds are inclusive
// lower bounds, so 4.0, 5.0 and 6.0 land in the higher tier.
func ClassifyMagnitude(m float64) Tier {
	switch {
	case m >= severeThreshold:
		return TierSevere
	case m >= highThreshold:
		return TierHigh
	case m >= moderateThreshold:
		return TierModerate
	default:
		return TierLow
	}
}

// MarkerSize returns the marker diameter in display units: 20 + 5m clamped
// to [20, 50].
func MarkerSize(m float64) float64 {
	return max(markerMinSize, min(markerMaxSize, markerMinSize+m*markerSizeScale))
}

// LegendEntry describes one tier for map legends.
type LegendEntry struct {
	Tier  Tier   `json:"tier"`
	Label string `json:"label"`
}

// Legend lists the tiers from weakest to strongest.
func Legend() []LegendEntry {
	return []LegendEntry{
		{Tier: TierLow, Label: "< 4.0"},
		{Tier: TierModerate, Label: "4.0 - 4.9"},
		{Tier: TierHigh, Label: "5.0 - 5.9"},
		{Tier: TierSevere, Label: ">= 6.0"},
	}
}
