// Package mapview keeps map markers and the viewport in sync with the feed
// records and the externally owned selection.
package mapview

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/couchcryptid/quake-feed-service/internal/domain"
)

const (
	// DetailZoom is the zoom level used when focusing a single event.
	DetailZoom = 8.0
	// DefaultZoom frames the whole country.
	DefaultZoom = 6.0

	MinZoom = 0.0
	MaxZoom = 18.0

	recenterDuration = time.Second
)

// DefaultCenter is the geographic middle of Turkey.
var DefaultCenter = LatLng{Lat: 39.0, Lon: 35.0}

// LatLng is a map position.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Viewport describes where the map is looking. Animated viewports carry the
// transition duration.
type Viewport struct {
	Center   LatLng        `json:"center"`
	Zoom     float64       `json:"zoom"`
	Animated bool          `json:"animated"`
	Duration time.Duration `json:"duration"`
}

// View renders markers and moves the viewport when the selection changes. It
// never changes the selection itself; clicks are reported through OnSelect.
type View struct {
	logger *slog.Logger

	mu         sync.Mutex
	records    []domain.EarthquakeRecord
	markers    []Marker
	selectedID string
	ready      bool
	viewport   Viewport

	listenerMu        sync.Mutex
	selectListeners   []func(id string)
	viewportListeners []func(Viewport)
}

// New returns a View framing DefaultCenter. The viewport is not ready until
// MarkReady is called.
func New(logger *slog.Logger) *View {
	return &View{
		logger:   logger,
		viewport: Viewport{Center: DefaultCenter, Zoom: DefaultZoom},
	}
}

// OnSelect registers fn to receive marker click events.
func (v *View) OnSelect(fn func(id string)) {
	v.listenerMu.Lock()
	defer v.listenerMu.Unlock()
	v.selectListeners = append(v.selectListeners, fn)
}

// OnViewportChange registers fn to receive every viewport move.
func (v *View) OnViewportChange(fn func(Viewport)) {
	v.listenerMu.Lock()
	defer v.listenerMu.Unlock()
	v.viewportListeners = append(v.viewportListeners, fn)
}

// Render replaces the records and returns the markers for them. When
// selectedID changed to an id present in records the viewport recenters on
// it. A cleared selection or an id that is not present leaves the viewport
// where it is.
func (v *View) Render(records []domain.EarthquakeRecord, selectedID string) []Marker {
	v.mu.Lock()
	changed := selectedID != v.selectedID
	v.records = records
	v.selectedID = selectedID
	v.markers = BuildMarkers(records, selectedID)
	out := append([]Marker(nil), v.markers...)

	var moved *Viewport
	if changed && selectedID != "" {
		moved = v.focusLocked(selectedID)
	}
	v.mu.Unlock()

	if moved != nil {
		v.notifyViewport(*moved)
	}
	return out
}

// Recenter focuses the record with id even if it is already selected. It
// reports whether the viewport moved.
func (v *View) Recenter(id string) bool {
	v.mu.Lock()
	moved := v.focusLocked(id)
	v.mu.Unlock()

	if moved == nil {
		return false
	}
	v.notifyViewport(*moved)
	return true
}

// Click reports a user click on the marker with id. Every click is reported,
// including repeated clicks on the same marker. Ids without a marker are
// ignored.
func (v *View) Click(id string) bool {
	v.mu.Lock()
	_, ok := domain.FindRecord(v.records, id)
	v.mu.Unlock()
	if !ok {
		return false
	}

	v.listenerMu.Lock()
	listeners := slices.Clone(v.selectListeners)
	v.listenerMu.Unlock()

	for _, fn := range listeners {
		fn(id)
	}
	return true
}

// MarkReady flags the viewport as usable. A selection rendered before the
// viewport was ready is focused now.
func (v *View) MarkReady() {
	v.mu.Lock()
	if v.ready {
		v.mu.Unlock()
		return
	}
	v.ready = true
	moved := v.focusLocked(v.selectedID)
	v.mu.Unlock()

	if moved != nil {
		v.notifyViewport(*moved)
	}
}

// Ready reports whether MarkReady has been called.
func (v *View) Ready() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.ready
}

// ResetView animates back to the country-wide default framing.
func (v *View) ResetView() Viewport {
	vp := Viewport{Center: DefaultCenter, Zoom: DefaultZoom, Animated: true, Duration: recenterDuration}
	v.mu.Lock()
	v.viewport = vp
	v.mu.Unlock()

	v.notifyViewport(vp)
	return vp
}

// Pan records a user-driven move. Zoom is clamped to [MinZoom, MaxZoom].
func (v *View) Pan(center LatLng, zoom float64) Viewport {
	vp := Viewport{Center: center, Zoom: max(MinZoom, min(MaxZoom, zoom))}
	v.mu.Lock()
	v.viewport = vp
	v.mu.Unlock()

	v.notifyViewport(vp)
	return vp
}

// Viewport returns the current viewport.
func (v *View) Viewport() Viewport {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.viewport
}

// Markers returns the markers from the last Render.
func (v *View) Markers() []Marker {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]Marker(nil), v.markers...)
}

// SelectedID returns the selection passed to the last Render.
func (v *View) SelectedID() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.selectedID
}

// Legend lists the magnitude tiers shown on the map.
func (v *View) Legend() []domain.LegendEntry {
	return domain.Legend()
}

// focusLocked moves the viewport onto the record with id. It returns nil
// when the viewport is not ready or no record matches. Caller holds mu.
func (v *View) focusLocked(id string) *Viewport {
	if !v.ready || id == "" {
		return nil
	}
	rec, ok := domain.FindRecord(v.records, id)
	if !ok {
		v.logger.Debug("selection has no matching record", "id", id)
		return nil
	}
	v.viewport = Viewport{
		Center:   LatLng{Lat: rec.Coordinates.Lat, Lon: rec.Coordinates.Lon},
		Zoom:     DetailZoom,
		Animated: true,
		Duration: recenterDuration,
	}
	vp := v.viewport
	return &vp
}

func (v *View) notifyViewport(vp Viewport) {
	v.listenerMu.Lock()
	listeners := slices.Clone(v.viewportListeners)
	v.listenerMu.Unlock()

	for _, fn := range listeners {
		fn(vp)
	}
}
