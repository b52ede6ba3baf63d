package mapview

import (
	"fmt"
	"time"

	"github.com/couchcryptid/quake-feed-service/internal/domain"
)

const (
	selectedZIndex = 1000
)

// Marker is the render model for one earthquake on the map.
type Marker struct {
	ID         string      `json:"id"`
	Lat        float64     `json:"lat"`
	Lon        float64     `json:"lon"`
	Magnitude  float64     `json:"magnitude"`
	Label      string      `json:"label"`
	Tier       domain.Tier `json:"tier"`
	Size       float64     `json:"size"`
	Selected   bool        `json:"selected"`
	ZIndex     int         `json:"z_index"`
	Title      string      `json:"title"`
	DepthKm    float64     `json:"depth_km"`
	OccurredAt time.Time   `json:"occurred_at"`
	Epicenter  string      `json:"epicenter,omitempty"`
}

// tierZIndex stacks stronger events above weaker ones.
var tierZIndex = map[domain.Tier]int{
	domain.TierLow:      0,
	domain.TierModerate: 1,
	domain.TierHigh:     2,
	domain.TierSevere:   3,
}

// NewMarker builds the marker for rec.
func NewMarker(rec domain.EarthquakeRecord, selected bool) Marker {
	tier := rec.Tier()
	z := tierZIndex[tier]
	if selected {
		z = selectedZIndex
	}
	return Marker{
		ID:         rec.ID,
		Lat:        rec.Coordinates.Lat,
		Lon:        rec.Coordinates.Lon,
		Magnitude:  rec.Magnitude,
		Label:      fmt.Sprintf("%.1f", rec.Magnitude),
		Tier:       tier,
		Size:       domain.MarkerSize(rec.Magnitude),
		Selected:   selected,
		ZIndex:     z,
		Title:      rec.Title,
		DepthKm:    rec.DepthKm,
		OccurredAt: rec.OccurredAt,
		Epicenter:  rec.EpicenterName(),
	}
}

// BuildMarkers returns one marker per record in record order.
func BuildMarkers(records []domain.EarthquakeRecord, selectedID string) []Marker {
	markers := make([]Marker, 0, len(records))
	for i := range records {
		markers = append(markers, NewMarker(records[i], selectedID != "" && records[i].ID == selectedID))
	}
	return markers
}
