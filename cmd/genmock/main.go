// Command genmock writes synthetic disaster and weather CSV files for local
// training runs. It reads the files back through the real CSV source and
// matcher so the printed stats match what cmd/train will see.
//
// Usage:
//
//	go run ./cmd/genmock -out-dir data/mock -per-type 200 -seed 7
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/couchcryptid/disaster-prediction/internal/adapter/csvsource"
	"github.com/couchcryptid/disaster-prediction/internal/domain"
	"github.com/couchcryptid/disaster-prediction/internal/geo"
)

// region is a cluster of one disaster type with typical weather.
type region struct {
	disasterType string
	lat, lon     float64
	deaths       float64 // mean
	loss         float64 // mean, '000 US$
	temperature  float64
	pressure     float64
	humidity     float64
	windSpeed    float64
}

var regions = []region{
	{"Earthquake", 35.7, 139.7, 300, 90000, 18, 1015, 50, 4},
	{"Flood", 28.6, 77.2, 45, 2000, 30, 1000, 85, 12},
	{"Cyclone", 21.5, 89.5, 150, 40000, 28, 975, 90, 60},
	{"Landslide", 27.7, 85.3, 25, 800, 16, 1008, 88, 6},
	{"Drought", -1.3, 36.8, 10, 5000, 33, 1012, 20, 8},
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	outDir := flag.String("out-dir", "", "directory for disasters.csv and weather.csv")
	perType := flag.Int("per-type", 100, "disaster records per disaster type")
	seed := flag.Uint64("seed", 42, "random seed")
	canonical := flag.Bool("canonical-headers", false, "write canonical column names instead of source-style headers")
	flag.Parse()

	if *outDir == "" || *perType <= 0 {
		flag.Usage()
		return fmt.Errorf("missing required flags: -out-dir, positive -per-type")
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return err
	}

	rng := rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15))
	disasters, weather := generate(rng, *perType)

	disasterPath := filepath.Join(*outDir, "disasters.csv")
	weatherPath := filepath.Join(*outDir, "weather.csv")
	if err := writeCSV(disasterPath, disasterHeader(*canonical), disasters); err != nil {
		return fmt.Errorf("writing disasters: %w", err)
	}
	log.Printf("wrote %s: %d records", disasterPath, len(disasters))
	if err := writeCSV(weatherPath, weatherHeader(*canonical), weather); err != nil {
		return fmt.Errorf("writing weather: %w", err)
	}
	log.Printf("wrote %s: %d records", weatherPath, len(weather))

	return printStats(disasterPath, weatherPath)
}

// generate returns one disaster row per record plus one weather station
// within a few kilometres of it. Roughly 5% of weather stations are pushed
// far away so the matcher's threshold is exercised.
func generate(rng *rand.Rand, perType int) (disasters, weather [][]string) {
	jitter := func(scale float64) float64 { return rng.NormFloat64() * scale }
	f := func(v float64, prec int) string { return strconv.FormatFloat(v, 'f', prec, 64) }

	for _, r := range regions {
		for range perType {
			lat, lon := r.lat+jitter(0.8), r.lon+jitter(0.8)
			deaths := max(0, r.deaths*(1+jitter(0.3)))
			loss := max(0, r.loss*(1+jitter(0.3)))
			disasters = append(disasters, []string{
				f(lat, 4), f(lon, 4), r.disasterType, f(deaths, 0), f(loss, 0),
			})

			wlat, wlon := lat+jitter(0.02), lon+jitter(0.02)
			if rng.Float64() < 0.05 {
				wlat += 5
			}
			weather = append(weather, []string{
				f(wlat, 4), f(wlon, 4),
				f(r.temperature+jitter(2), 1),
				f(r.pressure+jitter(3), 1),
				f(min(100, max(0, r.humidity+jitter(5))), 0),
				f(max(0, r.windSpeed+jitter(r.windSpeed*0.2)), 1),
			})
		}
	}
	return disasters, weather
}

func disasterHeader(canonical bool) []string {
	if canonical {
		return domain.DisasterColumns
	}
	return []string{"Latitude", "Longitude", "Disaster Type", "Total Deaths", "Total Damage ('000 US$)"}
}

func weatherHeader(canonical bool) []string {
	if canonical {
		return domain.WeatherColumns
	}
	return []string{"latitude", "longitude", "temperature_celsius", "pressure_mb", "humidity", "wind_kph"}
}

func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printStats(disasterPath, weatherPath string) error {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	src := csvsource.NewSource(disasterPath, weatherPath, logger)

	ctx := context.Background()
	disasters, err := src.LoadDisasters(ctx)
	if err != nil {
		return err
	}
	weather, err := src.LoadWeather(ctx)
	if err != nil {
		return err
	}

	matched, report, err := geo.NewMatcher(geo.DefaultMaxDistanceKm, logger).Match(disasters, weather)
	if err != nil {
		return err
	}

	counts := make(map[string]int)
	for _, m := range matched {
		counts[m.Disaster.DisasterType]++
	}
	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Strings(types)

	fmt.Printf("\nmatched %d of %d disasters (mean distance %.2f km, %d beyond threshold)\n",
		report.Matched, report.DisasterInput, report.MeanDistanceKm, report.Unmatched)
	for _, t := range types {
		fmt.Printf("  %-12s %d\n", t, counts[t])
	}
	return nil
}
