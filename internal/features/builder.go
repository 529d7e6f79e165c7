// Package features turns matched disaster/weather pairs into a standardized
// training matrix with encoded labels.
package features

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/couchcryptid/disaster-prediction/internal/domain"
)

// Dataset is a cleaned, scaled training set. Row i of X corresponds to entry i
// of each target slice.
type Dataset struct {
	X         [][]float64
	Types     []int
	Deaths    []float64
	InfraLoss []float64

	Scaler  *StandardScaler
	Encoder *LabelEncoder
}

// Len returns the number of training rows.
func (d *Dataset) Len() int { return len(d.X) }

// BuildReport counts what cleaning did to the matched rows.
type BuildReport struct {
	Input          int
	DroppedMissing int
	DroppedInvalid int // negative deaths
	ClippedLoss    int
	Rows           int
	Classes        []string
}

// Builder produces a Dataset from matched records.
type Builder struct {
	logger *slog.Logger
}

// NewBuilder creates a Builder.
func NewBuilder(logger *slog.Logger) *Builder {
	return &Builder{logger: logger}
}

// Build cleans matched rows, fits a fresh scaler and label encoder, and returns
// the scaled dataset.
func (b *Builder) Build(matched []domain.MatchedRecord) (*Dataset, BuildReport, error) {
	report := BuildReport{Input: len(matched)}

	raw := make([][]float64, 0, len(matched))
	labels := make([]string, 0, len(matched))
	deaths := make([]float64, 0, len(matched))
	losses := make([]float64, 0, len(matched))

	for _, m := range matched {
		row := m.Features()
		label := strings.TrimSpace(m.Disaster.DisasterType)
		if !complete(row) || label == "" ||
			!domain.IsFinite(m.Disaster.TotalDeaths) || !domain.IsFinite(m.Disaster.InfrastructureLoss) {
			report.DroppedMissing++
			continue
		}
		if m.Disaster.TotalDeaths < 0 {
			report.DroppedInvalid++
			continue
		}
		loss := m.Disaster.InfrastructureLoss
		if loss < 0 {
			loss = 0
			report.ClippedLoss++
		}

		raw = append(raw, row)
		labels = append(labels, label)
		deaths = append(deaths, m.Disaster.TotalDeaths)
		losses = append(losses, loss)
	}
	report.Rows = len(raw)

	b.logger.Info("training rows cleaned",
		"input", report.Input,
		"dropped_missing", report.DroppedMissing,
		"dropped_invalid", report.DroppedInvalid,
		"clipped_loss", report.ClippedLoss,
		"rows", report.Rows,
	)

	if report.Rows == 0 {
		return nil, report, &domain.InsufficientDataError{Dropped: report.DroppedMissing + report.DroppedInvalid}
	}

	encoder := FitLabelEncoder(labels)
	report.Classes = encoder.Classes
	if encoder.Len() < 2 {
		return nil, report, &domain.InsufficientClassesError{Classes: encoder.Classes}
	}

	scaler, err := FitScaler(raw)
	if err != nil {
		return nil, report, err
	}
	x, err := scaler.Transform(raw)
	if err != nil {
		return nil, report, err
	}
	types, err := encoder.EncodeAll(labels)
	if err != nil {
		return nil, report, fmt.Errorf("encode disaster types: %w", err)
	}

	b.logger.Info("feature matrix built",
		"rows", report.Rows,
		"features", scaler.Width(),
		"classes", len(encoder.Classes),
	)

	return &Dataset{
		X:         x,
		Types:     types,
		Deaths:    deaths,
		InfraLoss: losses,
		Scaler:    scaler,
		Encoder:   encoder,
	}, report, nil
}

func complete(row []float64) bool {
	for _, v := range row {
		if !domain.IsFinite(v) {
			return false
		}
	}
	return true
}
