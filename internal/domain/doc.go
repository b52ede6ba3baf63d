// Package domain models recent Turkey earthquake data as published by the
// Kandilli Observatory live feed.
//
// # Data Source
//
// Records come from a public JSON endpoint that proxies the Kandilli
// Observatory (KOERI) live catalogue, e.g.
// https://api.orhanaydogdu.com.tr/deprem/kandilli/live?limit=100. The endpoint
// returns the most recent events first; the service does not re-sort them.
//
// # Feed Conventions
//
// Response envelope:
//
//	{"status": true, "httpStatus": 200, "metadata": {"total": 3}, "result": [...]}
//
//	"status" false or absent means the upstream itself failed, even on HTTP 200.
//
// Coordinates:
//
//	geojson.coordinates is a GeoJSON [longitude, latitude] pair. Depth is a
//	separate "depth" field in kilometres, not a third coordinate.
//
// Time format:
//
//	"date_time" is local wall-clock time without an offset, e.g.
//	"2025-04-23 12:49:46", interpreted in the zone named by "location_tz"
//	(normally Europe/Istanbul). RFC 3339 values are accepted as well.
//
// Location properties:
//
//	location_properties.closestCity {name, distance (metres), population} and
//	location_properties.epiCenter {name, population}. Either or both may be
//	missing, and the whole object may be absent.
//
// # Magnitude Tiers
//
// Markers encode magnitude with a four-level scale. Lower bounds are inclusive:
//
//	low < 4.0 | moderate < 5.0 | high < 6.0 | severe >= 6.0
//
// Marker diameter grows 5 display units per magnitude step from a 20 unit
// floor and is capped at 50. See [ClassifyMagnitude] and [MarkerSize].
package domain
