package domain

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

const (
	dateTimeLayout = "2006-01-02 15:04:05"
	dateLayout     = "2006.01.02 15:04:05"
	defaultZone    = "Europe/Istanbul"
)

// Turkey has observed UTC+3 all year since 2016. Used when the host has no
// zoneinfo database.
var turkeyFixedZone = time.FixedZone("TRT", 3*60*60)

// FeedResponse is the envelope returned by the feed endpoint.
type FeedResponse struct {
	Status     *bool        `json:"status"`
	HTTPStatus int          `json:"httpStatus"`
	Metadata   FeedMetadata `json:"metadata"`
	Result     []FeedRecord `json:"result"`
}

// FeedMetadata carries the upstream result count.
type FeedMetadata struct {
	Total int `json:"total"`
}

// FeedRecord is one earthquake as it appears on the wire.
type FeedRecord struct {
	ID                 string           `json:"_id"`
	EarthquakeID       string           `json:"earthquake_id"`
	Provider           string           `json:"provider"`
	Title              string           `json:"title"`
	Date               string           `json:"date"`
	Mag                float64          `json:"mag"`
	Depth              float64          `json:"depth"`
	GeoJSON            FeedGeoJSON      `json:"geojson"`
	LocationProperties *FeedLocationRaw `json:"location_properties"`
	DateTime           string           `json:"date_time"`
	CreatedAt          int64            `json:"created_at"`
	LocationTZ         string           `json:"location_tz"`
}

// FeedGeoJSON is a GeoJSON point, [longitude, latitude].
type FeedGeoJSON struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// FeedLocationRaw mirrors location_properties on the wire.
type FeedLocationRaw struct {
	ClosestCity *struct {
		Name       string  `json:"name"`
		Distance   float64 `json:"distance"`
		Population int64   `json:"population"`
	} `json:"closestCity"`
	EpiCenter *struct {
		Name       string `json:"name"`
		Population int64  `json:"population"`
	} `json:"epiCenter"`
}

// ParseFeedResponse decodes a feed body into records in upstream order.
// Any shape problem yields an error wrapping ErrMalformedPayload. An empty
// result list with status=true is a valid, earthquake-free response.
func ParseFeedResponse(body []byte) ([]EarthquakeRecord, error) {
	var resp FeedResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", ErrMalformedPayload, err)
	}
	if resp.Status == nil {
		return nil, fmt.Errorf("%w: missing status flag", ErrMalformedPayload)
	}
	if !*resp.Status {
		return nil, fmt.Errorf("%w: upstream reported status=false (httpStatus %d)", ErrMalformedPayload, resp.HTTPStatus)
	}
	if resp.Result == nil {
		return nil, fmt.Errorf("%w: missing result array", ErrMalformedPayload)
	}

	records := make([]EarthquakeRecord, 0, len(resp.Result))
	for i := range resp.Result {
		rec, err := resp.Result[i].toRecord()
		if err != nil {
			return nil, fmt.Errorf("%w: result[%d]: %w", ErrMalformedPayload, i, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func (f FeedRecord) toRecord() (EarthquakeRecord, error) {
	if f.ID == "" {
		return EarthquakeRecord{}, fmt.Errorf("missing _id")
	}
	if len(f.GeoJSON.Coordinates) != 2 {
		return EarthquakeRecord{}, fmt.Errorf("record %s: expected [lon, lat], got %d values", f.ID, len(f.GeoJSON.Coordinates))
	}
	occurred, err := parseEventTime(f.DateTime, f.Date, f.LocationTZ)
	if err != nil {
		return EarthquakeRecord{}, fmt.Errorf("record %s: %w", f.ID, err)
	}

	return EarthquakeRecord{
		ID:           f.ID,
		EarthquakeID: f.EarthquakeID,
		Provider:     f.Provider,
		Title:        f.Title,
		Magnitude:    f.Mag,
		DepthKm:      max(f.Depth, 0),
		OccurredAt:   occurred,
		TimeZone:     f.LocationTZ,
		Coordinates:  Coordinates{Lon: f.GeoJSON.Coordinates[0], Lat: f.GeoJSON.Coordinates[1]},
		Location:     f.LocationProperties.toProperties(),
	}, nil
}

func (l *FeedLocationRaw) toProperties() *LocationProperties {
	if l == nil || (l.ClosestCity == nil && l.EpiCenter == nil) {
		return nil
	}
	props := &LocationProperties{}
	if l.ClosestCity != nil {
		props.ClosestCity = &ClosestCity{
			Name:       l.ClosestCity.Name,
			DistanceM:  l.ClosestCity.Distance,
			Population: l.ClosestCity.Population,
		}
	}
	if l.EpiCenter != nil {
		props.Epicenter = &Epicenter{
			Name:       l.EpiCenter.Name,
			Population: l.EpiCenter.Population,
		}
	}
	return props
}

// parseEventTime prefers date_time and falls back to the dotted "date" field.
func parseEventTime(dateTime, date, tz string) (time.Time, error) {
	loc := loadZone(tz)

	if dateTime != "" {
		if t, err := time.ParseInLocation(dateTimeLayout, dateTime, loc); err == nil {
			return t, nil
		}
		if t, err := time.Parse(time.RFC3339, dateTime); err == nil {
			return t, nil
		}
		return time.Time{}, fmt.Errorf("unparseable date_time %q", dateTime)
	}
	if date != "" {
		if t, err := time.ParseInLocation(dateLayout, date, loc); err == nil {
			return t, nil
		}
		return time.Time{}, fmt.Errorf("unparseable date %q", date)
	}
	return time.Time{}, fmt.Errorf("missing event time")
}

var (
	zoneMu    sync.Mutex
	zoneCache = map[string]*time.Location{}
)

func loadZone(name string) *time.Location {
	if name == "" {
		name = defaultZone
	}
	zoneMu.Lock()
	defer zoneMu.Unlock()

	if loc, ok := zoneCache[name]; ok {
		return loc
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		loc = turkeyFixedZone
	}
	zoneCache[name] = loc
	return loc
}
