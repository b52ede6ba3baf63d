package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/couchcryptid/quake-feed-service/internal/domain"
	"github.com/couchcryptid/quake-feed-service/internal/mapview"
	"github.com/couchcryptid/quake-feed-service/internal/session"
)

const maxRequestBody = 4 << 10

type feedResponse struct {
	Records     []domain.EarthquakeRecord `json:"records"`
	Loading     bool                      `json:"loading"`
	Error       string                    `json:"error,omitempty"`
	LastUpdated *time.Time                `json:"last_updated,omitempty"`
	Notice      *domain.Notice            `json:"notice,omitempty"`
	Sequence    uint64                    `json:"sequence"`
}

func newFeedResponse(s domain.FeedState) feedResponse {
	resp := feedResponse{
		Records:  s.Records,
		Loading:  s.Loading,
		Notice:   s.Notice,
		Sequence: s.Sequence,
	}
	if resp.Records == nil {
		resp.Records = []domain.EarthquakeRecord{}
	}
	if s.Err != nil {
		resp.Error = s.Err.Error()
	}
	if !s.LastUpdated.IsZero() {
		t := s.LastUpdated
		resp.LastUpdated = &t
	}
	return resp
}

type viewportResponse struct {
	Center     mapview.LatLng `json:"center"`
	Zoom       float64        `json:"zoom"`
	Animated   bool           `json:"animated"`
	DurationMS int64          `json:"duration_ms,omitempty"`
}

type mapResponse struct {
	Markers    []mapview.Marker     `json:"markers"`
	Viewport   viewportResponse     `json:"viewport"`
	Legend     []domain.LegendEntry `json:"legend"`
	SelectedID string               `json:"selected_id,omitempty"`
	ActiveView string               `json:"active_view"`
	Ready      bool                 `json:"ready"`
}

func (s *Server) mapState() mapResponse {
	sess := s.deps.Session
	vp := sess.Viewport()
	markers := sess.Markers()
	if markers == nil {
		markers = []mapview.Marker{}
	}
	return mapResponse{
		Markers: markers,
		Viewport: viewportResponse{
			Center:     vp.Center,
			Zoom:       vp.Zoom,
			Animated:   vp.Animated,
			DurationMS: vp.Duration.Milliseconds(),
		},
		Legend:     sess.View().Legend(),
		SelectedID: sess.SelectedID(),
		ActiveView: sess.ActiveView(),
		Ready:      sess.View().Ready(),
	}
}

func (s *Server) handleEarthquakes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, newFeedResponse(s.deps.Feed.Snapshot()))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if lim := s.deps.RefreshLimiter; lim != nil && !lim.Allow() {
		s.deps.Metrics.ManualRefreshLimit.Inc()
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusTooManyRequests, "refresh rate limit exceeded")
		return
	}

	if err := s.deps.Feed.RefreshNow(r.Context()); err != nil {
		s.logger.Warn("manual refresh failed", "error", err)
		writeJSON(w, http.StatusBadGateway, newFeedResponse(s.deps.Feed.Snapshot()))
		return
	}
	writeJSON(w, http.StatusOK, newFeedResponse(s.deps.Feed.Snapshot()))
}

func (s *Server) handleMap(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.mapState())
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Session.Select(r.PathValue("id")); err != nil {
		if errors.Is(err, session.ErrUnknownRecord) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.mapState())
}

func (s *Server) handleClearSelection(w http.ResponseWriter, _ *http.Request) {
	s.deps.Session.ClearSelection()
	writeJSON(w, http.StatusOK, s.mapState())
}

func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.deps.Session.View().Click(id) {
		writeError(w, http.StatusNotFound, "no marker with id "+id)
		return
	}
	writeJSON(w, http.StatusOK, s.mapState())
}

func (s *Server) handleViewReady(w http.ResponseWriter, _ *http.Request) {
	s.deps.Session.View().MarkReady()
	writeJSON(w, http.StatusOK, s.mapState())
}

func (s *Server) handleResetView(w http.ResponseWriter, _ *http.Request) {
	s.deps.Session.View().ResetView()
	writeJSON(w, http.StatusOK, s.mapState())
}

type panRequest struct {
	Lat  *float64 `json:"lat"`
	Lon  *float64 `json:"lon"`
	Zoom *float64 `json:"zoom"`
}

func (s *Server) handlePan(w http.ResponseWriter, r *http.Request) {
	var req panRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid viewport: "+err.Error())
		return
	}
	if req.Lat == nil || req.Lon == nil || req.Zoom == nil {
		writeError(w, http.StatusBadRequest, "lat, lon and zoom are required")
		return
	}
	if *req.Lat < -90 || *req.Lat > 90 || *req.Lon < -180 || *req.Lon > 180 {
		writeError(w, http.StatusBadRequest, "coordinates out of range")
		return
	}
	s.deps.Session.View().Pan(mapview.LatLng{Lat: *req.Lat, Lon: *req.Lon}, *req.Zoom)
	writeJSON(w, http.StatusOK, s.mapState())
}

func (s *Server) handleActiveView(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Session.SetActiveView(r.PathValue("name")); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.mapState())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
