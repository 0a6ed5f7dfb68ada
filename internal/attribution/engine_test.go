// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package attribution

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/dcrm-diagnostics/internal/artifact"
	"github.com/pdiddy/dcrm-diagnostics/internal/model"
	"github.com/pdiddy/dcrm-diagnostics/internal/testfixture"
	"github.com/pdiddy/dcrm-diagnostics/pkg/types"
)

func fixtureEngine(t *testing.T) Engine {
	t.Helper()
	dir := t.TempDir()
	testfixture.WriteAttribution(t, dir)
	b, err := artifact.NewManager(artifact.AttributionLayout(), dir,
		artifact.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))).EnsureReady()
	require.NoError(t, err)

	xgb, ok := b.Primary.(model.TreeExplainer)
	require.True(t, ok)
	ada, ok := b.Secondary.(model.TreeExplainer)
	require.True(t, ok)

	return Engine{
		Schema: b.Schema,
		Scaler: b.Scaler,
		Models: []Model{
			{Name: types.ModelXGBoost, Explainer: xgb},
			{Name: types.ModelAdaBoost, Explainer: ada},
		},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// spikeWaveform has 40 samples at 1 ms. Resistance jumps from 50 to 500 in
// samples 20-29 and travel rises to 10 in samples 10-19.
func spikeWaveform() types.Waveform {
	w := types.Waveform{Columns: []string{"Time (ms)", "Resistance (uOhm)", "Travel (mm)", "Current (A)", "Coil Current C1 (A)"}}
	for i := 0; i < 40; i++ {
		r, travel := 50.0, 0.0
		if i >= 20 && i < 30 {
			r = 500
		}
		if i >= 10 && i < 20 {
			travel = 10
		}
		w.Rows = append(w.Rows, []float64{float64(i), r, travel, 1, 2})
	}
	return w
}

func TestAttribute_ResistanceSpike(t *testing.T) {
	e := fixtureEngine(t)

	res, err := e.Attribute(spikeWaveform(), 10)
	require.NoError(t, err)

	assert.Equal(t, []types.TimeWindow{
		{StartMs: 0, EndMs: 10}, {StartMs: 10, EndMs: 20}, {StartMs: 20, EndMs: 30}, {StartMs: 30, EndMs: 40},
	}, res.Windows)
	assert.Empty(t, res.Degraded)

	xgb := res.Attributions[types.ModelXGBoost]
	assert.Equal(t, types.ChannelAttribution{0, 0, 1, 0}, xgb[types.ChannelResistance])
	assert.Equal(t, types.ChannelAttribution{0, 0, 0, 0}, xgb[types.ChannelTravel])
	assert.Equal(t, types.ChannelAttribution{0, 0, 0, 0}, xgb[types.ChannelCurrent])

	ada := res.Attributions[types.ModelAdaBoost]
	assert.Equal(t, types.ChannelAttribution{0, 1, 0, 0}, ada[types.ChannelTravel])
	assert.Equal(t, types.ChannelAttribution{0, 0, 0, 0}, ada[types.ChannelResistance])
}

func TestAttribute_Bounds(t *testing.T) {
	e := fixtureEngine(t)
	res, err := e.Attribute(spikeWaveform(), 7)
	require.NoError(t, err)

	for name, m := range res.Attributions {
		for _, g := range types.ChannelGroups {
			scores := m[g]
			require.Len(t, scores, len(res.Windows), "%s/%s", name, g)
			for _, s := range scores {
				assert.GreaterOrEqual(t, s, 0.0)
				assert.LessOrEqual(t, s, 1.0)
			}
		}
	}
}

func TestAttribute_DegradedModel(t *testing.T) {
	e := fixtureEngine(t)
	var fallbacks []string
	e.Models = append(e.Models, Model{Name: "legacy"})
	e.OnFallback = func(name string) { fallbacks = append(fallbacks, name) }

	res, err := e.Attribute(spikeWaveform(), 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"legacy"}, res.Degraded)
	assert.Equal(t, []string{"legacy"}, fallbacks)
	assert.Equal(t, types.ChannelAttribution{0, 0, 0, 0}, res.Attributions["legacy"][types.ChannelResistance])
	assert.Equal(t, types.ChannelAttribution{0, 0, 1, 0}, res.Attributions[types.ModelXGBoost][types.ChannelResistance])
}

func TestAttribute_SynthesisedTimeAxis(t *testing.T) {
	e := fixtureEngine(t)
	w := types.Waveform{Columns: []string{"Resistance", "Travel"}}
	for i := 0; i < 250; i++ {
		w.Rows = append(w.Rows, []float64{50, 0})
	}

	// 250 samples at 0.1 ms span 24.9 ms.
	res, err := e.Attribute(w, 10)
	require.NoError(t, err)
	assert.Len(t, res.Windows, 3)
}

func TestAttribute_Unavailable(t *testing.T) {
	e := fixtureEngine(t)

	tests := []struct {
		name   string
		w      types.Waveform
		window float64
	}{
		{"empty waveform", types.Waveform{Columns: []string{"Time (ms)"}}, 10},
		{"zero span", types.Waveform{Columns: []string{"Time (ms)", "Resistance"}, Rows: [][]float64{{0, 1}}}, 10},
		{"zero window", spikeWaveform(), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := e.Attribute(tt.w, tt.window)
			assert.Nil(t, res)
			assert.True(t, IsUnavailable(err))
			var au *types.AttributionUnavailableError
			assert.True(t, errors.As(err, &au))
		})
	}

	_, err := Engine{}.Attribute(spikeWaveform(), 10)
	assert.True(t, IsUnavailable(err))
}
