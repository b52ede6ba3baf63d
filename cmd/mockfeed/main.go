// Command mockfeed serves a fake earthquake feed for local runs and demos.
// It either replays a saved response or generates deterministic records
// around Turkey, and can inject latency and upstream failures.
//
// Usage:
//
//	go run ./cmd/mockfeed -file internal/domain/testdata/kandilli_live.json
//	go run ./cmd/mockfeed -generate 200 -fail-every 5 -delay 2s
//
// Then point the service at it with FEED_URL=http://localhost:8081/live.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/couchcryptid/quake-feed-service/internal/domain"
)

// regions seeds generated epicenters with real seismic areas.
var regions = []struct {
	title    string
	lat, lon float64
}{
	{"MARMARA DENIZI", 40.85, 28.20},
	{"SINDIRGI (BALIKESIR)", 39.21, 28.18},
	{"EGE DENIZI", 38.97, 26.05},
	{"PAZARCIK (KAHRAMANMARAS)", 37.29, 37.04},
	{"DUZCE", 40.84, 31.16},
	{"ELBISTAN (KAHRAMANMARAS)", 38.08, 37.20},
	{"GOKOVA KORFEZI (AKDENIZ)", 36.95, 27.70},
	{"ERZINCAN", 39.75, 39.49},
}

func main() {
	if err := run(); err != nil {
		slog.Error("mockfeed failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", ":8081", "listen address")
	file := flag.String("file", "", "saved feed response to replay")
	generate := flag.Int("generate", 0, "generate this many records instead of replaying a file")
	seed := flag.Uint64("seed", 1, "seed for generated records")
	delay := flag.Duration("delay", 0, "latency added to every response")
	failEvery := flag.Int("fail-every", 0, "answer every Nth request with HTTP 500")
	flag.Parse()

	if (*file == "") == (*generate <= 0) {
		flag.Usage()
		return errors.New("exactly one of -file or -generate is required")
	}

	var body domain.FeedResponse
	if *file != "" {
		data, err := os.ReadFile(*file)
		if err != nil {
			return fmt.Errorf("read %s: %w", *file, err)
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return fmt.Errorf("decode %s: %w", *file, err)
		}
		if _, err := domain.ParseFeedResponse(data); err != nil {
			return err
		}
	} else {
		body = generateResponse(*generate, *seed, time.Now())
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	var requests atomic.Int64

	mux := http.NewServeMux()
	mux.HandleFunc("GET /live", func(w http.ResponseWriter, r *http.Request) {
		n := requests.Add(1)
		if *delay > 0 {
			select {
			case <-time.After(*delay):
			case <-r.Context().Done():
				return
			}
		}
		if *failEvery > 0 && n%int64(*failEvery) == 0 {
			logger.Info("injecting failure", "request", n)
			http.Error(w, `{"status":false,"httpStatus":500,"desc":"injected failure"}`, http.StatusInternalServerError)
			return
		}

		resp := body
		if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && limit >= 0 && limit < len(resp.Result) {
			resp.Result = resp.Result[:limit]
		}
		resp.Metadata.Total = len(resp.Result)

		logger.Info("serving feed", "request", n, "records", len(resp.Result))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp) //nolint:errcheck // best-effort mock response
	})

	srv := &http.Server{Addr: *addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("mock feed listening", "addr", *addr, "records", len(body.Result))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// generateResponse builds n records, newest first, spaced a few minutes apart.
func generateResponse(n int, seed uint64, now time.Time) domain.FeedResponse {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	istanbul, err := time.LoadLocation("Europe/Istanbul")
	if err != nil {
		istanbul = time.FixedZone("TRT", 3*60*60)
	}

	ok := true
	resp := domain.FeedResponse{Status: &ok, HTTPStatus: http.StatusOK}
	resp.Result = make([]domain.FeedRecord, 0, n)

	at := now.In(istanbul).Truncate(time.Second)
	for i := range n {
		region := regions[rng.IntN(len(regions))]
		lat := round(region.lat+rng.NormFloat64()*0.15, 2)
		lon := round(region.lon+rng.NormFloat64()*0.15, 2)
		// Gutenberg-Richter style: small events dominate.
		mag := round(min(7.8, 1.0+rng.ExpFloat64()*0.9), 1)

		rec := domain.FeedRecord{
			ID:           fmt.Sprintf("mock%020d", n-i),
			EarthquakeID: fmt.Sprintf("MOCK%07d", n-i),
			Provider:     "kandilli",
			Title:        region.title,
			Date:         at.Format("2006.01.02 15:04:05"),
			Mag:          mag,
			Depth:        round(2+rng.Float64()*25, 1),
			DateTime:     at.Format("2006-01-02 15:04:05"),
			CreatedAt:    at.Unix(),
			LocationTZ:   "Europe/Istanbul",
		}
		rec.GeoJSON.Type = "Point"
		rec.GeoJSON.Coordinates = []float64{lon, lat}
		resp.Result = append(resp.Result, rec)

		at = at.Add(-time.Duration(2+rng.IntN(30)) * time.Minute)
	}
	resp.Metadata.Total = len(resp.Result)
	return resp
}

func round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
