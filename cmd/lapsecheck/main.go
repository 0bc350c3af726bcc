// Command lapsecheck compares the service's lapse-rate correction against
// a provider's own point downscaling at stations of known elevation.
//
// For each station it fetches the same model twice from Open-Meteo: once as
// the raw grid cell (GRID_AVERAGE) and once downscaled to the station
// altitude (POINT_CORRECTED). The grid answer is then corrected locally and
// the residual against the provider's answer is reported per station.
//
// Usage:
//
//	go run ./cmd/lapsecheck -hours 12 -tolerance 0.5
//	go run ./cmd/lapsecheck -stations stations.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"time"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/hazard-forecast-service/internal/adapter/openmeteo"
	"github.com/couchcryptid/hazard-forecast-service/internal/config"
	"github.com/couchcryptid/hazard-forecast-service/internal/domain"
	"github.com/couchcryptid/hazard-forecast-service/internal/observability"
)

// station is a summit or mountain observatory with a surveyed elevation.
type station struct {
	Name      string  `yaml:"name"`
	Lat       float64 `yaml:"lat"`
	Lon       float64 `yaml:"lon"`
	Elevation float64 `yaml:"elevation_m"`
}

var defaultStations = []station{
	{Name: "Jungfraujoch", Lat: 46.5475, Lon: 7.9853, Elevation: 3571},
	{Name: "Zugspitze", Lat: 47.4211, Lon: 10.9847, Elevation: 2962},
	{Name: "Sonnblick", Lat: 47.0540, Lon: 12.9570, Elevation: 3106},
	{Name: "Fanaråken", Lat: 61.5158, Lon: 7.9058, Elevation: 2062},
	{Name: "Mount Washington", Lat: 44.2705, Lon: -71.3033, Elevation: 1917},
	{Name: "Pikes Peak", Lat: 38.8405, Lon: -105.0442, Elevation: 4302},
}

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// comparison holds both answers for one station.
type comparison struct {
	station   station
	grid      domain.FetchResult
	point     domain.FetchResult
	corrected []domain.NormalizedHourlyForecast
	status    domain.CorrectionStatus
	err       error
}

func main() {
	stationsPath := flag.String("stations", "", "YAML list of stations (name, lat, lon, elevation_m); built-in list when empty")
	hours := flag.Int("hours", 12, "forecast horizon to compare")
	tolerance := flag.Float64("tolerance", 0.5, "maximum mean absolute residual in °C")
	flag.Parse()

	stations := defaultStations
	if *stationsPath != "" {
		var err error
		stations, err = loadStations(*stationsPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load stations: %v\n", err)
			os.Exit(1)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load config: %v\n", err)
		os.Exit(1)
	}

	if code := run(cfg, stations, *hours, *tolerance); code != 0 {
		os.Exit(code)
	}
}

func run(cfg *config.Config, stations []station, hours int, tolerance float64) int {
	fmt.Println("=== Lapse-Rate Correction Check ===")
	fmt.Println()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := openmeteo.NewClient(cfg.OpenMeteoBaseURL, cfg.ProviderTimeout, logger, observability.NewMetricsForTesting())
	grid := domain.DefaultProviderTable().Fallback()
	point := grid
	point.ElevationSemantics = domain.PointCorrected

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	comparisons := fetchAll(ctx, client, stations, grid, point, hours)

	phases := []*phase{
		checkFetches(comparisons, hours),
		checkResiduals(comparisons, tolerance),
		checkIdentity(comparisons),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll checks passed.")
		return 0
	}
	fmt.Println("\nCheck FAILED.")
	return 1
}

func loadStations(path string) ([]station, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out []station
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no stations in %s", path)
	}
	return out, nil
}

// fetchAll queries both variants for every station, a few stations at a time.
func fetchAll(ctx context.Context, client *openmeteo.Client, stations []station, grid, point domain.ProviderDescriptor, hours int) []comparison {
	out := make([]comparison, len(stations))
	now := time.Now().UTC()

	var g errgroup.Group
	g.SetLimit(3)
	for i, st := range stations {
		g.Go(func() error {
			c := comparison{station: st}
			target := domain.Float(st.Elevation)
			req := domain.FetchRequest{
				Location:        domain.Location{ID: st.Name, Lat: st.Lat, Lon: st.Lon},
				TargetElevation: target,
				Hours:           hours,
				Now:             now,
			}

			req.Descriptor = grid
			c.grid, c.err = client.Fetch(ctx, req)
			if c.err == nil {
				req.Descriptor = point
				c.point, c.err = client.Fetch(ctx, req)
			}
			if c.err == nil {
				c.corrected, c.status = domain.CorrectElevation(c.grid.Records, target, grid.ElevationSemantics)
			}
			out[i] = c
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// ── Phases ──

func checkFetches(cs []comparison, hours int) *phase {
	p := &phase{name: "Provider answers"}
	for _, c := range cs {
		if c.err != nil {
			p.errorf("%s: %v", c.station.Name, c.err)
			continue
		}
		if len(c.grid.Records) != hours+1 {
			p.errorf("%s: grid answer has %d records, want %d", c.station.Name, len(c.grid.Records), hours+1)
		}
		if c.status != domain.CorrectionApplied {
			p.errorf("%s: correction not applied (%s)", c.station.Name, c.status)
		}
	}
	return p
}

func checkResiduals(cs []comparison, tolerance float64) *phase {
	p := &phase{name: fmt.Sprintf("Corrected vs downscaled (≤ %.2f °C)", tolerance)}
	fmt.Printf("  %-20s %9s %9s %9s %9s\n", "station", "target", "grid", "mean|Δ|", "max|Δ|")
	for _, c := range cs {
		if c.err != nil || c.status != domain.CorrectionApplied {
			continue
		}
		points := indexByOffset(c.point.Records)
		var sum, maxAbs float64
		n := 0
		for _, r := range c.corrected {
			pr, ok := points[r.Offset]
			if !ok || r.Temperature == nil || pr.Temperature == nil {
				continue
			}
			d := math.Abs(*r.Temperature - *pr.Temperature)
			sum += d
			maxAbs = math.Max(maxAbs, d)
			n++
		}
		if n == 0 {
			p.errorf("%s: no overlapping hours", c.station.Name)
			continue
		}
		mean := sum / float64(n)
		fmt.Printf("  %-20s %8.0fm %9s %8.2f° %8.2f°\n",
			c.station.Name, c.station.Elevation, gridElevation(c.grid.Records), mean, maxAbs)
		if mean > tolerance {
			p.errorf("%s: mean residual %.2f °C exceeds %.2f °C", c.station.Name, mean, tolerance)
		}
	}
	return p
}

// checkIdentity verifies that correcting to the grid's own elevation leaves
// every temperature untouched.
func checkIdentity(cs []comparison) *phase {
	p := &phase{name: "Identity at reference elevation"}
	for _, c := range cs {
		if c.err != nil || len(c.grid.Records) == 0 || c.grid.Records[0].ReferenceElevation == nil {
			continue
		}
		ref := c.grid.Records[0].ReferenceElevation
		same, _ := domain.CorrectElevation(c.grid.Records, ref, domain.GridAverage)
		for i := range same {
			a, b := same[i].Temperature, c.grid.Records[i].Temperature
			if a == nil || b == nil {
				continue
			}
			if *a != *b {
				p.errorf("%s offset %d: %.4f became %.4f", c.station.Name, same[i].Offset, *b, *a)
			}
		}
	}
	return p
}

func indexByOffset(records []domain.NormalizedHourlyForecast) map[int]domain.NormalizedHourlyForecast {
	out := make(map[int]domain.NormalizedHourlyForecast, len(records))
	for _, r := range records {
		out[r.Offset] = r
	}
	return out
}

func gridElevation(records []domain.NormalizedHourlyForecast) string {
	for _, r := range records {
		if r.ReferenceElevation != nil {
			return fmt.Sprintf("%.0fm", *r.ReferenceElevation)
		}
	}
	return "?"
}
