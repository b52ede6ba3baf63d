// Package session connects the feed controller to the map view and owns the
// selection shared by list and map renderers.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/couchcryptid/quake-feed-service/internal/domain"
	"github.com/couchcryptid/quake-feed-service/internal/mapview"
)

// ViewMap is the view name that keeps a selection alive.
const ViewMap = "map"

var (
	// ErrUnknownRecord is returned when selecting an id the feed does not hold.
	ErrUnknownRecord = errors.New("unknown earthquake record")
	// ErrInvalidView is returned for an empty view name.
	ErrInvalidView = errors.New("invalid view name")
)

// Feed is the part of the feed controller a Session consumes.
type Feed interface {
	Snapshot() domain.FeedState
	Subscribe() (<-chan domain.FeedState, func())
}

// Session holds the selection and keeps the view rendered against the latest
// feed state.
type Session struct {
	feed   Feed
	view   *mapview.View
	logger *slog.Logger

	mu         sync.Mutex
	state      domain.FeedState
	selectedID string
	activeView string
}

// New creates a Session rendering into view. Marker clicks on the view
// become selections.
func New(feed Feed, view *mapview.View, logger *slog.Logger) *Session {
	s := &Session{
		feed:       feed,
		view:       view,
		logger:     logger,
		activeView: ViewMap,
	}
	s.Apply(feed.Snapshot())
	view.OnSelect(func(id string) {
		if err := s.Select(id); err != nil {
			s.logger.Debug("ignoring click", "id", id, "error", err)
		}
	})
	return s
}

// Run applies feed updates until ctx is cancelled or the feed closes the
// subscription.
func (s *Session) Run(ctx context.Context) error {
	updates, unsubscribe := s.feed.Subscribe()
	defer unsubscribe()

	s.logger.Info("session started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("session stopping", "reason", ctx.Err())
			return nil
		case state, ok := <-updates:
			if !ok {
				return nil
			}
			s.Apply(state)
		}
	}
}

// Apply renders state. A selection whose record is gone is cleared.
func (s *Session) Apply(state domain.FeedState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = state
	if s.selectedID != "" {
		if _, ok := domain.FindRecord(state.Records, s.selectedID); !ok {
			s.logger.Debug("selected record no longer in feed, clearing selection", "id", s.selectedID)
			s.selectedID = ""
		}
	}
	s.view.Render(state.Records, s.selectedID)
}

// Select highlights the record with id and focuses the map on it. Selecting
// the current selection again refocuses.
func (s *Session) Select(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := domain.FindRecord(s.state.Records, id); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownRecord, id)
	}
	if id == s.selectedID {
		s.view.Recenter(id)
		return nil
	}
	s.selectedID = id
	s.view.Render(s.state.Records, id)
	return nil
}

// ClearSelection removes the highlight. The viewport stays where it is.
func (s *Session) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
}

// SetActiveView records which view the user is on. Leaving the map clears
// the selection.
func (s *Session) SetActiveView(name string) error {
	if name == "" {
		return ErrInvalidView
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.activeView = name
	if name != ViewMap {
		s.clearLocked()
	}
	return nil
}

// ActiveView returns the current view name.
func (s *Session) ActiveView() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeView
}

// SelectedRecord returns the selected record, if any.
func (s *Session) SelectedRecord() (domain.EarthquakeRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.FindRecord(s.state.Records, s.selectedID)
}

// SelectedID returns the selected id or "".
func (s *Session) SelectedID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedID
}

// State returns the feed state last applied to the session.
func (s *Session) State() domain.FeedState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Markers returns the markers currently rendered.
func (s *Session) Markers() []mapview.Marker { return s.view.Markers() }

// Viewport returns the map viewport.
func (s *Session) Viewport() mapview.Viewport { return s.view.Viewport() }

// View exposes the underlying map view.
func (s *Session) View() *mapview.View { return s.view }

func (s *Session) clearLocked() {
	if s.selectedID == "" {
		return
	}
	s.selectedID = ""
	s.view.Render(s.state.Records, "")
}
