package benchmarks

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockPeerRepository is a mock implementation of the PeerRepository interface
type MockPeerRepository struct {
	mock.Mock
}

func (m *MockPeerRepository) ListSectorTotals(ctx context.Context, sector string) ([]float64, error) {
	args := m.Called(ctx, sector)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float64), args.Error(1)
}

func TestForSector(t *testing.T) {
	assert.Equal(t, SectorBenchmark{Sector: SectorEnergy, Average: 20000, Best: 8000}, ForSector(SectorEnergy))
	assert.Equal(t, 1000.0, ForSector(SectorIT).Average)

	unknown := ForSector("Agriculture")
	assert.Equal(t, 3000.0, unknown.Average)
	assert.Equal(t, 1000.0, unknown.Best)
	assert.False(t, ValidSector("Agriculture"))
	assert.True(t, ValidSector(SectorManufacturing))
}

func TestCompare_Positions(t *testing.T) {
	c := NewComparator(nil, zap.NewNop())
	ctx := context.Background()

	tests := []struct {
		total    float64
		expected string
	}{
		{7000, PositionAboveAverage},
		{3000, PositionBelowAverage},
		{2000, PositionBestInClass},
		{0, PositionBestInClass},
	}

	for _, tt := range tests {
		result, err := c.Compare(ctx, SectorManufacturing, tt.total)
		require.NoError(t, err)
		assert.Equal(t, tt.expected, result.Position, "total %v", tt.total)
		assert.NotEmpty(t, result.Message)
		assert.Nil(t, result.PeerStatistics)
	}
}

func TestCompare_GapsAndRecommendations(t *testing.T) {
	c := NewComparator(nil, zap.NewNop())

	result, err := c.Compare(context.Background(), SectorManufacturing, 7000)
	require.NoError(t, err)
	require.Len(t, result.GapAnalysis, 2)

	for _, gap := range result.GapAnalysis {
		assert.Equal(t, "above", gap.Direction)
		assert.Equal(t, PriorityHigh, gap.Priority)
	}
	assert.Equal(t, 40.0, result.GapAnalysis[0].GapPercentage)
	assert.Equal(t, 250.0, result.GapAnalysis[1].GapPercentage)

	require.Len(t, result.Recommendations, 2)
	assert.Equal(t, 2000.0, result.Recommendations[0].ExpectedGain)
	assert.NotEmpty(t, result.Recommendations[0].ActionItems)
}

func TestCompare_WithPeers(t *testing.T) {
	peers := new(MockPeerRepository)
	ctx := context.Background()
	peers.On("ListSectorTotals", ctx, SectorIT).Return([]float64{400, 800, 1200, 1600}, nil)

	c := NewComparator(peers, zap.NewNop())
	result, err := c.Compare(ctx, SectorIT, 1000)
	require.NoError(t, err)

	require.NotNil(t, result.PeerStatistics)
	assert.Equal(t, 1000.0, result.PeerStatistics.Mean)
	require.NotNil(t, result.PercentileRanking)
	assert.Equal(t, 50.0, *result.PercentileRanking)

	peers.AssertExpectations(t)
}

func TestCompare_PeerError(t *testing.T) {
	peers := new(MockPeerRepository)
	ctx := context.Background()
	peers.On("ListSectorTotals", ctx, SectorIT).Return(nil, errors.New("connection refused"))

	c := NewComparator(peers, zap.NewNop())
	_, err := c.Compare(ctx, SectorIT, 1000)
	assert.Error(t, err)
}

func TestDeterminePriority(t *testing.T) {
	c := NewComparator(nil, zap.NewNop())
	assert.Equal(t, PriorityHigh, c.determinePriority(-30))
	assert.Equal(t, PriorityMedium, c.determinePriority(11))
	assert.Equal(t, PriorityLow, c.determinePriority(10))
}
