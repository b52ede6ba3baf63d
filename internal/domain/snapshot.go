package domain

import "time"

// Snapshot is one successfully fetched record set, as forwarded downstream.
type Snapshot struct {
	Sequence  uint64
	FetchedAt time.Time
	Records   []EarthquakeRecord
}

// SnapshotOf returns the records held by s. It reports false before the
// first successful fetch.
func SnapshotOf(s FeedState) (Snapshot, bool) {
	if s.Sequence == 0 {
		return Snapshot{}, false
	}
	return Snapshot{Sequence: s.Sequence, FetchedAt: s.LastUpdated, Records: s.Records}, true
}
