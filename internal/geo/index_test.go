package geo

import (
	"math/rand/v2"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistanceKm_KnownPair(t *testing.T) {
	// New Delhi to a station roughly 1.5 km north-west.
	km := DistanceKm(orb.Point{77.2, 28.6}, orb.Point{77.19, 28.61})
	assert.InDelta(t, 1.5, km, 0.1)
}

func TestDistanceKm_Symmetric(t *testing.T) {
	a, b := orb.Point{-74.0, 40.7}, orb.Point{2.35, 48.85}
	assert.InDelta(t, DistanceKm(a, b), DistanceKm(b, a), 1e-9)
	assert.InDelta(t, 5837, DistanceKm(a, b), 15)
}

func TestIndex_Empty(t *testing.T) {
	ix := NewIndex(nil)

	_, _, ok := ix.Nearest(orb.Point{0, 0})

	assert.False(t, ok)
	assert.Equal(t, 0, ix.Len())
}

func TestIndex_SinglePoint(t *testing.T) {
	ix := NewIndex([]orb.Point{{10, 20}})

	idx, angle, ok := ix.Nearest(orb.Point{10, 20})

	require.True(t, ok)
	assert.Equal(t, 0, idx)
	assert.InDelta(t, 0, angle, 1e-12)
}

func TestIndex_TieBreaksToLowestIndex(t *testing.T) {
	points := []orb.Point{
		{5, 5},
		{1, 0},
		{-1, 0},
		{1, 0},
	}
	ix := NewIndex(points)

	idx, _, ok := ix.Nearest(orb.Point{0, 0})

	require.True(t, ok)
	assert.Equal(t, 1, idx)
}

func TestIndex_DuplicatePointsReturnFirst(t *testing.T) {
	points := make([]orb.Point, 20)
	for i := range points {
		points[i] = orb.Point{3, 3}
	}
	ix := NewIndex(points)

	idx, _, ok := ix.Nearest(orb.Point{3.1, 3.1})

	require.True(t, ok)
	assert.Equal(t, 0, idx)
}

func TestIndex_MatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	randomPoint := func() orb.Point {
		return orb.Point{rng.Float64()*360 - 180, rng.Float64()*180 - 90}
	}

	points := make([]orb.Point, 500)
	for i := range points {
		points[i] = randomPoint()
	}
	ix := NewIndex(points)

	for range 200 {
		q := randomPoint()

		wantIdx, wantAngle := -1, 0.0
		for i, p := range points {
			a := AngularDistance(q, p)
			if wantIdx < 0 || a < wantAngle {
				wantIdx, wantAngle = i, a
			}
		}

		gotIdx, gotAngle, ok := ix.Nearest(q)
		require.True(t, ok)
		assert.Equal(t, wantIdx, gotIdx)
		assert.InDelta(t, wantAngle, gotAngle, 1e-12)
	}
}
