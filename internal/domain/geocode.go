package domain

import (
	"context"
	"log/slog"
)

// EnrichWithGeocoding fills in a region name for records the feed left
// without one. Records that already name their epicenter are returned as-is,
// and a nil geocoder or a lookup failure leaves the record unchanged.
func EnrichWithGeocoding(ctx context.Context, rec EarthquakeRecord, geocoder Geocoder, logger *slog.Logger) EarthquakeRecord {
	if geocoder == nil || rec.EpicenterName() != "" {
		return rec
	}

	result, err := geocoder.ReverseGeocode(ctx, rec.Coordinates.Lat, rec.Coordinates.Lon)
	if err != nil {
		logger.Warn("reverse geocoding failed",
			"record_id", rec.ID,
			"lat", rec.Coordinates.Lat,
			"lon", rec.Coordinates.Lon,
			"error", err,
		)
		return rec
	}
	if result.PlaceName == "" && result.FormattedAddress == "" {
		return rec
	}

	name := result.FormattedAddress
	if name == "" {
		name = result.PlaceName
	}

	// Copy so the caller's LocationProperties are never mutated.
	props := LocationProperties{}
	if rec.Location != nil {
		props = *rec.Location
	}
	props.GeocodedName = name
	rec.Location = &props
	return rec
}

// EnrichAll applies EnrichWithGeocoding to each record, preserving order.
// It stops early and returns what it has if ctx is cancelled.
func EnrichAll(ctx context.Context, records []EarthquakeRecord, geocoder Geocoder, logger *slog.Logger) []EarthquakeRecord {
	if geocoder == nil {
		return records
	}
	out := make([]EarthquakeRecord, len(records))
	copy(out, records)
	for i := range out {
		if ctx.Err() != nil {
			break
		}
		out[i] = EnrichWithGeocoding(ctx, out[i], geocoder, logger)
	}
	return out
}
