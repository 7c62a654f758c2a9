package emissions

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinearModel_Predict(t *testing.T) {
	model := DefaultLinearModel()

	got, err := model.Predict(map[string]float64{
		FeaturePopulation: 100,
		FeatureGDP:        500,
		FeatureEnergyUse:  200,
	})
	require.NoError(t, err)
	assert.InDelta(t, 100*2.5+500*0.8+200*1.2, got, 1e-9)

	_, err = model.Predict(map[string]float64{FeaturePopulation: 1})
	assert.True(t, errors.Is(err, ErrInvalidInput))

	var missing *LinearModel
	_, err = missing.Predict(nil)
	assert.True(t, errors.Is(err, ErrModelUnavailable))
}

func TestParseModel(t *testing.T) {
	model, err := ParseModel(strings.NewReader(`{"version":"v2","features":["a","b"],"coefficients":[1,2],"intercept":3}`))
	require.NoError(t, err)
	got, err := model.Predict(map[string]float64{"a": 1, "b": 1})
	require.NoError(t, err)
	assert.Equal(t, 6.0, got)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"features":`},
		{"no features", `{"features":[],"coefficients":[]}`},
		{"length mismatch", `{"features":["a"],"coefficients":[1,2]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseModel(strings.NewReader(tt.body))
			assert.True(t, errors.Is(err, ErrModelUnavailable))
		})
	}
}

func TestLoadModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"features":["x"],"coefficients":[2],"intercept":1}`), 0o600))

	model, err := LoadModel(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, model.Features)

	_, err = LoadModel(filepath.Join(t.TempDir(), "missing.json"))
	assert.True(t, errors.Is(err, ErrModelUnavailable))
}

func TestBatchPredict(t *testing.T) {
	input := "Population,GDP,Energy Use\n100,500,200\n 10, 20, 30\n"

	rows, err := BatchPredict(DefaultLinearModel(), strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.InDelta(t, 890.0, rows[0].Prediction, 1e-9)
	assert.InDelta(t, 25+16+36, rows[1].Prediction, 1e-9)
	assert.Equal(t, 10.0, rows[1].Features[FeaturePopulation])
}

func TestBatchPredict_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"empty", "", ErrMissingData},
		{"header only", "Population,GDP,Energy Use\n", ErrMissingData},
		{"not a number", "Population,GDP,Energy Use\n1,abc,3\n", ErrInvalidInput},
		{"missing column", "Population,GDP\n1,2\n", ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BatchPredict(DefaultLinearModel(), strings.NewReader(tt.input))
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}

	_, err := BatchPredict(nil, strings.NewReader("a\n1\n"))
	assert.True(t, errors.Is(err, ErrModelUnavailable))

	failing := PredictorFunc(func(map[string]float64) (float64, error) { return 0, ErrModelUnavailable })
	_, err = BatchPredict(failing, strings.NewReader("a\n1\n"))
	assert.True(t, errors.Is(err, ErrModelUnavailable))
}
