package domain

import "time"

// Coordinates is a WGS-84 position. The feed orders it longitude first.
type Coordinates struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// ClosestCity describes the nearest populated place to the epicenter.
type ClosestCity struct {
	Name       string  `json:"name"`
	DistanceM  float64 `json:"distance_m,omitempty"`
	Population int64   `json:"population,omitempty"`
}

// Epicenter names the region the event occurred in.
type Epicenter struct {
	Name       string `json:"name"`
	Population int64  `json:"population,omitempty"`
}

// LocationProperties holds the optional descriptive data attached to a record.
type LocationProperties struct {
	ClosestCity *ClosestCity `json:"closest_city,omitempty"`
	Epicenter   *Epicenter   `json:"epicenter,omitempty"`

	// Set when the epicenter name came from reverse geocoding rather than the feed.
	GeocodedName string `json:"geocoded_name,omitempty"`
}

// EarthquakeRecord is a single reported seismic event. Values are treated as
// immutable once received; a refresh replaces the full set.
type EarthquakeRecord struct {
	ID           string              `json:"id"`
	EarthquakeID string              `json:"earthquake_id,omitempty"`
	Provider     string              `json:"provider,omitempty"`
	Title        string              `json:"title"`
	Magnitude    float64             `json:"magnitude"`
	DepthKm      float64             `json:"depth_km"`
	OccurredAt   time.Time           `json:"occurred_at"`
	TimeZone     string              `json:"time_zone,omitempty"`
	Coordinates  Coordinates         `json:"coordinates"`
	Location     *LocationProperties `json:"location,omitempty"`
}

// Tier returns the magnitude tier used for visual encoding.
func (r EarthquakeRecord) Tier() Tier {
	return ClassifyMagnitude(r.Magnitude)
}

// EpicenterName returns the best available region name, or "" when unknown.
func (r EarthquakeRecord) EpicenterName() string {
	if r.Location == nil {
		return ""
	}
	if r.Location.Epicenter != nil && r.Location.Epicenter.Name != "" {
		return r.Location.Epicenter.Name
	}
	return r.Location.GeocodedName
}

// FindRecord returns the record with the given id.
func FindRecord(records []EarthquakeRecord, id string) (EarthquakeRecord, bool) {
	if id == "" {
		return EarthquakeRecord{}, false
	}
	for i := range records {
		if records[i].ID == id {
			return records[i], true
		}
	}
	return EarthquakeRecord{}, false
}

// Notice is a user-facing notification about feed activity.
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`
	At      time.Time  `json:"at"`
}

// NoticeKind classifies a Notice.
type NoticeKind string

const (
	NoticeRefreshing    NoticeKind = "refreshing"
	NoticeRefreshed     NoticeKind = "refreshed"
	NoticeRefreshFailed NoticeKind = "refresh_failed"
	NoticeFetchFailed   NoticeKind = "fetch_failed"
)

// FeedState is a point-in-time copy of the feed. Err reflects the last
// completed attempt; it is cleared when a new attempt starts.
type FeedState struct {
	Records     []EarthquakeRecord
	Loading     bool
	Err         error
	LastUpdated time.Time
	Notice      *Notice

	// Sequence of the fetch whose records are currently held. Zero before the
	// first success.
	Sequence uint64
}

// Clone returns a copy that shares no mutable memory with s.
func (s FeedState) Clone() FeedState {
	out := s
	if s.Records != nil {
		out.Records = make([]EarthquakeRecord, len(s.Records))
		copy(out.Records, s.Records)
	}
	if s.Notice != nil {
		n := *s.Notice
		out.Notice = &n
	}
	return out
}
