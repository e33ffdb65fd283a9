package weighting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azybler/ch_router/pkg/graph"
)

func TestCarFlags(t *testing.T) {
	f := CarFlags(72, true, false)
	assert.True(t, f.Forward())
	assert.False(t, f.Backward())
	assert.Equal(t, 72.0, SpeedKmh(f))

	// Speed survives a direction swap.
	assert.Equal(t, 72.0, SpeedKmh(f.Reversed()))

	assert.Equal(t, float64(DefaultSpeedKmh), SpeedKmh(graph.FlagBoth))
	assert.Equal(t, float64(MaxSpeedKmh), SpeedKmh(CarFlags(900, true, true)))
}

func TestFastestRevert(t *testing.T) {
	w := FastestWeighting{}
	f := CarFlags(36, true, true) // 10 m/s
	weight := w.CalcWeight(250, f)
	assert.InDelta(t, 25.0, weight, 1e-9)
	assert.InDelta(t, 250.0, w.RevertWeight(weight, f), 1e-9)
	assert.Equal(t, int64(25_000), w.CalcMillis(250, f))
}

func TestShortestRevert(t *testing.T) {
	w := ShortestWeighting{}
	f := CarFlags(36, true, false)
	assert.Equal(t, 123.0, w.CalcWeight(123, f))
	assert.Equal(t, 123.0, w.RevertWeight(123, f))
	assert.Equal(t, int64(12_300), w.CalcMillis(123, f))
}

func TestByName(t *testing.T) {
	w, err := ByName("shortest")
	require.NoError(t, err)
	assert.Equal(t, "shortest", w.Name())

	w, err = ByName("")
	require.NoError(t, err)
	assert.Equal(t, "fastest", w.Name())

	_, err = ByName("bike")
	assert.Error(t, err)
}
