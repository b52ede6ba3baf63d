// Command feedcheck fetches the earthquake feed once (or reads a saved
// response) and checks it the way the service would: response shape, record
// fields, ordering and coordinate plausibility. It prints a per-phase report
// and a tier breakdown.
//
// Usage:
//
//	go run ./cmd/feedcheck -limit 100
//	go run ./cmd/feedcheck -file internal/domain/testdata/kandilli_live.json
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/couchcryptid/quake-feed-service/internal/adapter/kandilli"
	"github.com/couchcryptid/quake-feed-service/internal/domain"
)

const defaultURL = "https://api.orhanaydogdu.com.tr/deprem/kandilli/live"

// Rough bounding box of Turkey and its surrounding seas.
const (
	minLat, maxLat = 34.0, 43.5
	minLon, maxLon = 24.0, 46.0
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name     string
	errors   []string
	warnings []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) warnf(format string, args ...any) {
	p.warnings = append(p.warnings, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	feedURL := flag.String("url", defaultURL, "feed endpoint")
	limit := flag.Int("limit", 100, "number of records to request")
	timeout := flag.Duration("timeout", 15*time.Second, "request timeout")
	file := flag.String("file", "", "check a saved response instead of fetching")
	flag.Parse()

	if *limit <= 0 {
		flag.Usage()
		os.Exit(1)
	}
	os.Exit(run(*feedURL, *limit, *timeout, *file))
}

func run(feedURL string, limit int, timeout time.Duration, file string) int {
	fmt.Println("=== Earthquake Feed Check ===")
	fmt.Println()

	records, source, err := load(feedURL, limit, timeout, file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}
	fmt.Printf("Source: %s\n\n", source)

	phases := []*phase{
		checkFields(records),
		checkUniqueIDs(records),
		checkOrdering(records),
		checkCoordinates(records),
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		} else if len(p.warnings) > 0 {
			status = fmt.Sprintf("\033[33mWARN (%d)\033[0m", len(p.warnings))
		}
		fmt.Printf("  %-32s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d\n", len(records))
	counts := tierCounts(records)
	for _, e := range domain.Legend() {
		fmt.Printf("  %-9s %-10s %d\n", e.Tier, e.Label, counts[e.Tier])
	}

	for _, p := range phases {
		if len(p.errors) == 0 && len(p.warnings) == 0 {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [E%d] %s\n", i+1, e)
		}
		for i, w := range p.warnings {
			fmt.Printf("  [W%d] %s\n", i+1, w)
		}
	}

	if allPassed {
		fmt.Println("\nAll checks passed.")
		return 0
	}
	fmt.Println("\nCheck FAILED.")
	return 1
}

func load(feedURL string, limit int, timeout time.Duration, file string) ([]domain.EarthquakeRecord, string, error) {
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, "", fmt.Errorf("read %s: %w", file, err)
		}
		records, err := domain.ParseFeedResponse(data)
		if err != nil {
			return nil, "", err
		}
		return records, file, nil
	}

	client := kandilli.NewClient(feedURL, timeout, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	records, err := client.Fetch(ctx, limit)
	if err != nil {
		return nil, "", err
	}
	return records, fmt.Sprintf("%s (limit %d)", feedURL, limit), nil
}

// ── Phases ──

func checkFields(records []domain.EarthquakeRecord) *phase {
	p := &phase{name: "Record fields"}
	for _, r := range records {
		if r.Title == "" {
			p.warnf("%s: empty title", r.ID)
		}
		if r.Magnitude < 0 || r.Magnitude > 10 {
			p.errorf("%s: magnitude %.1f out of range", r.ID, r.Magnitude)
		}
		if r.OccurredAt.IsZero() {
			p.errorf("%s: missing event time", r.ID)
		}
		if r.EpicenterName() == "" {
			p.warnf("%s (%s): no epicenter name", r.ID, r.Title)
		}
	}
	return p
}

func checkUniqueIDs(records []domain.EarthquakeRecord) *phase {
	p := &phase{name: "Unique ids"}
	seen := make(map[string]bool, len(records))
	for _, r := range records {
		if seen[r.ID] {
			p.errorf("duplicate id %s", r.ID)
		}
		seen[r.ID] = true
	}
	return p
}

// The feed lists newest events first.
func checkOrdering(records []domain.EarthquakeRecord) *phase {
	p := &phase{name: "Newest first"}
	for i := 1; i < len(records); i++ {
		if records[i].OccurredAt.After(records[i-1].OccurredAt) {
			p.warnf("%s (%s) is newer than the record before it", records[i].ID, records[i].OccurredAt.Format(time.RFC3339))
		}
	}
	return p
}

func checkCoordinates(records []domain.EarthquakeRecord) *phase {
	p := &phase{name: "Coordinates"}
	for _, r := range records {
		c := r.Coordinates
		if c.Lat < -90 || c.Lat > 90 || c.Lon < -180 || c.Lon > 180 {
			p.errorf("%s: invalid coordinates lat=%.4f lon=%.4f", r.ID, c.Lat, c.Lon)
			continue
		}
		if c.Lat < minLat || c.Lat > maxLat || c.Lon < minLon || c.Lon > maxLon {
			p.warnf("%s: lat=%.4f lon=%.4f outside the Turkey region, possibly swapped", r.ID, c.Lat, c.Lon)
		}
	}
	return p
}

func tierCounts(records []domain.EarthquakeRecord) map[domain.Tier]int {
	counts := make(map[domain.Tier]int, 4)
	for _, r := range records {
		counts[r.Tier()]++
	}
	return counts
}
