package emissions

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Feature names understood by the default model
const (
	FeaturePopulation = "Population"
	FeatureGDP        = "GDP"
	FeatureEnergyUse  = "Energy Use"
)

// PredictionColumn is appended to every row produced by BatchPredict
const PredictionColumn = "Predicted Emissions"

// Predictor is a trained regression model that maps features to an emission value
type Predictor interface {
	Predict(features map[string]float64) (float64, error)
}

// PredictorFunc adapts a plain function to the Predictor interface
type PredictorFunc func(features map[string]float64) (float64, error)

// Predict calls f(features)
func (f PredictorFunc) Predict(features map[string]float64) (float64, error) {
	return f(features)
}

// LinearModel is a serialized linear regression artifact
type LinearModel struct {
	Version      string    `json:"version"`
	Features     []string  `json:"features"`
	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`
}

// DefaultLinearModel returns the reference model trained on population, GDP and energy use
func DefaultLinearModel() *LinearModel {
	return &LinearModel{
		Version:      "reference",
		Features:     []string{FeaturePopulation, FeatureGDP, FeatureEnergyUse},
		Coefficients: []float64{2.5, 0.8, 1.2},
	}
}

// LoadModel reads a model artifact from disk
func LoadModel(path string) (*LinearModel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	defer f.Close()
	return ParseModel(f)
}

// ParseModel decodes and validates a model artifact
func ParseModel(r io.Reader) (*LinearModel, error) {
	var m LinearModel
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("%w: failed to decode model: %v", ErrModelUnavailable, err)
	}
	if len(m.Features) == 0 {
		return nil, fmt.Errorf("%w: model has no features", ErrModelUnavailable)
	}
	if len(m.Features) != len(m.Coefficients) {
		return nil, fmt.Errorf("%w: model has %d features but %d coefficients",
			ErrModelUnavailable, len(m.Features), len(m.Coefficients))
	}
	return &m, nil
}

// Predict computes the intercept plus the weighted sum of features. Every
// model feature must be present.
func (m *LinearModel) Predict(features map[string]float64) (float64, error) {
	if m == nil {
		return 0, ErrModelUnavailable
	}
	y := m.Intercept
	for i, name := range m.Features {
		v, ok := features[name]
		if !ok {
			return 0, fmt.Errorf("%w: missing feature %q", ErrInvalidInput, name)
		}
		y += m.Coefficients[i] * v
	}
	return y, nil
}

// PredictionRow is one input row of a batch together with its prediction
type PredictionRow struct {
	Features   map[string]float64 `json:"features"`
	Prediction float64            `json:"prediction"`
}

// BatchPredict reads a CSV with a header row and predicts every data row.
// Column names are matched against the feature names after trimming spaces.
func BatchPredict(model Predictor, r io.Reader) ([]PredictionRow, error) {
	if model == nil {
		return nil, ErrModelUnavailable
	}

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty csv", ErrMissingData)
		}
		return nil, fmt.Errorf("%w: failed to read csv header: %v", ErrInvalidInput, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows []PredictionRow
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidInput, line, err)
		}

		features := make(map[string]float64, len(header))
		for i, name := range header {
			if i >= len(record) {
				break
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(record[i]), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d column %q: %v", ErrInvalidInput, line, name, err)
			}
			features[name] = v
		}

		prediction, err := model.Predict(features)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rows = append(rows, PredictionRow{Features: features, Prediction: prediction})
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: csv has no data rows", ErrMissingData)
	}
	return rows, nil
}
