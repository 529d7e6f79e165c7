// Package csvsource loads disaster history and weather observations from CSV
// files with loosely formatted headers.
package csvsource

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/couchcryptid/disaster-prediction/internal/domain"
)

// table is a header-normalized CSV body.
type table struct {
	index map[string]int
	rows  [][]string
}

func readTable(r io.Reader, dataset string, required []string) (*table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &domain.DataError{Dataset: dataset, Reason: "file is empty"}
	}
	if err != nil {
		return nil, fmt.Errorf("read %s header: %w", dataset, err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		col := domain.CanonicalColumn(h)
		if _, seen := index[col]; !seen {
			index[col] = i
		}
	}
	if missing := domain.MissingColumns(index, required); len(missing) > 0 {
		return nil, &domain.DataError{Dataset: dataset, Missing: missing}
	}

	var rows [][]string
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s rows: %w", dataset, err)
		}
		rows = append(rows, row)
	}
	return &table{index: index, rows: rows}, nil
}

func (t *table) text(row []string, col string) string {
	i := t.index[col]
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// number coerces a cell to float64; empty or non-numeric cells become NaN.
func (t *table) number(row []string, col string) float64 {
	s := t.text(row, col)
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// ReadDisasters parses a disaster history table.
func ReadDisasters(r io.Reader) ([]domain.DisasterRecord, error) {
	t, err := readTable(r, "disasters", domain.DisasterColumns)
	if err != nil {
		return nil, err
	}

	records := make([]domain.DisasterRecord, 0, len(t.rows))
	for _, row := range t.rows {
		records = append(records, domain.DisasterRecord{
			Latitude:           t.number(row, domain.ColLatitude),
			Longitude:          t.number(row, domain.ColLongitude),
			DisasterType:       t.text(row, domain.ColDisasterType),
			TotalDeaths:        t.number(row, domain.ColTotalDeaths),
			InfrastructureLoss: t.number(row, domain.ColInfrastructureLoss),
		})
	}
	return records, nil
}

// ReadWeather parses a weather observation table.
func ReadWeather(r io.Reader) ([]domain.WeatherRecord, error) {
	t, err := readTable(r, "weather", domain.WeatherColumns)
	if err != nil {
		return nil, err
	}

	records := make([]domain.WeatherRecord, 0, len(t.rows))
	for _, row := range t.rows {
		records = append(records, domain.WeatherRecord{
			Latitude:    t.number(row, domain.ColLatitude),
			Longitude:   t.number(row, domain.ColLongitude),
			Temperature: t.number(row, domain.ColTemperature),
			Pressure:    t.number(row, domain.ColPressure),
			Humidity:    t.number(row, domain.ColHumidity),
			WindSpeed:   t.number(row, domain.ColWindSpeed),
		})
	}
	return records, nil
}

// Source reads both datasets from files on disk.
type Source struct {
	disasterPath string
	weatherPath  string
	logger       *slog.Logger
}

// NewSource creates a file-backed Source.
func NewSource(disasterPath, weatherPath string, logger *slog.Logger) *Source {
	return &Source{disasterPath: disasterPath, weatherPath: weatherPath, logger: logger}
}

// LoadDisasters reads the disaster history file.
func (s *Source) LoadDisasters(ctx context.Context) ([]domain.DisasterRecord, error) {
	records, err := readFile(ctx, s.disasterPath, ReadDisasters)
	if err != nil {
		return nil, err
	}
	s.logger.Info("disaster data loaded", "path", s.disasterPath, "rows", len(records))
	return records, nil
}

// LoadWeather reads the weather observation file.
func (s *Source) LoadWeather(ctx context.Context) ([]domain.WeatherRecord, error) {
	records, err := readFile(ctx, s.weatherPath, ReadWeather)
	if err != nil {
		return nil, err
	}
	s.logger.Info("weather data loaded", "path", s.weatherPath, "rows", len(records))
	return records, nil
}

func readFile[T any](ctx context.Context, path string, parse func(io.Reader) ([]T, error)) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	records, err := parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return records, nil
}
