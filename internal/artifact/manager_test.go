// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package artifact

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/dcrm-diagnostics/internal/model"
	"github.com/pdiddy/dcrm-diagnostics/internal/testfixture"
	"github.com/pdiddy/dcrm-diagnostics/pkg/types"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestManager_MissingDirectoryThenReady(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "new models")
	var outcomes []string
	m := NewManager(AdvancedLayout(), dir,
		WithLogger(quietLogger()),
		WithLoadObserver(func(layout, outcome string) {
			assert.Equal(t, LayoutAdvanced, layout)
			outcomes = append(outcomes, outcome)
		}))

	_, err := m.EnsureReady()
	var ua *types.ArtifactUnavailableError
	require.ErrorAs(t, err, &ua)
	assert.True(t, errors.Is(err, types.ErrArtifactUnavailable))
	assert.Equal(t, "directory", ua.Item)
	assert.Nil(t, m.Peek())

	testfixture.WriteAdvanced(t, dir)
	b, err := m.EnsureReady()
	require.NoError(t, err)
	assert.Equal(t, len(testfixture.AdvancedFeatures), b.Schema.Len())
	assert.Equal(t, []string{"xgboost", "adaboost", "autoencoder"}, b.AvailableModels())
	assert.Equal(t, []string{"Healthy", "Contact Wear", "Coil Fault"}, b.ClassLabels())
	assert.Equal(t, testfixture.AdvancedThreshold, b.Threshold)
	assert.False(t, b.LoadedAt.IsZero())
	assert.NoError(t, m.LastError())

	assert.Equal(t, []string{OutcomeMissingDir, OutcomeReady}, outcomes)
	assert.Equal(t, int64(2), m.Loads())
}

func TestManager_LoadsOnce(t *testing.T) {
	dir := t.TempDir()
	testfixture.WriteAdvanced(t, dir)
	m := NewManager(AdvancedLayout(), dir, WithLogger(quietLogger()))

	var wg sync.WaitGroup
	bundles := make([]*Bundle, 16)
	for i := range bundles {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b, err := m.EnsureReady()
			assert.NoError(t, err)
			bundles[i] = b
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), m.Loads())
	for _, b := range bundles {
		assert.Same(t, bundles[0], b)
	}
}

func TestManager_NamesFirstMissingArtifact(t *testing.T) {
	dir := t.TempDir()
	testfixture.WriteAdvanced(t, dir)
	require.NoError(t, os.Remove(filepath.Join(dir, "autoencoder_model.json")))
	require.NoError(t, os.Remove(filepath.Join(dir, "ae_threshold.json")))

	m := NewManager(AdvancedLayout(), dir, WithLogger(quietLogger()))
	_, err := m.EnsureReady()
	var ua *types.ArtifactUnavailableError
	require.ErrorAs(t, err, &ua)
	assert.Equal(t, "autoencoder_model.json", ua.Item)
	assert.Equal(t, dir, ua.Dir)
	assert.Nil(t, m.Peek(), "no partial bundle")
	assert.Equal(t, err, m.LastError())
}

func TestManager_RejectsCorruptArtifact(t *testing.T) {
	dir := t.TempDir()
	testfixture.WriteAdvanced(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "xgboost_model.json"), []byte(`{"learner":`), 0o644))

	_, err := NewManager(AdvancedLayout(), dir, WithLogger(quietLogger())).EnsureReady()
	var ua *types.ArtifactUnavailableError
	require.ErrorAs(t, err, &ua)
	assert.Equal(t, "xgboost_model.json", ua.Item)
	assert.Error(t, ua.Err)
}

func TestManager_RejectsSchemaMismatch(t *testing.T) {
	dir := t.TempDir()
	testfixture.WriteAdvanced(t, dir)
	testfixture.WriteJSON(t, dir, "feature_names.json", []string{"a", "b"})

	_, err := NewManager(AdvancedLayout(), dir, WithLogger(quietLogger())).EnsureReady()
	var ua *types.ArtifactUnavailableError
	require.ErrorAs(t, err, &ua)
	assert.Equal(t, "scaler.json", ua.Item)
}

func TestManager_InvalidateAndReload(t *testing.T) {
	dir := t.TempDir()
	testfixture.WriteDCRM(t, dir)
	m := NewManager(DCRMLayout(), dir, WithLogger(quietLogger()))

	first, err := m.EnsureReady()
	require.NoError(t, err)
	_, isIdentity := first.Scaler.(model.IdentityScaler)
	assert.True(t, isIdentity)

	m.Invalidate()
	assert.Nil(t, m.Peek())
	second, err := m.EnsureReady()
	require.NoError(t, err)
	assert.NotSame(t, first, second)

	require.NoError(t, os.Remove(filepath.Join(dir, "label_map.json")))
	_, err = m.Reload()
	assert.True(t, errors.Is(err, types.ErrArtifactUnavailable))
	assert.Nil(t, m.Peek())
	assert.Equal(t, int64(3), m.Loads())
}

func TestManager_OptionalScaler(t *testing.T) {
	dir := t.TempDir()
	testfixture.WriteAttribution(t, dir)
	m := NewManager(AttributionLayout(), dir, WithLogger(quietLogger()))

	b, err := m.EnsureReady()
	require.NoError(t, err)
	_, isIdentity := b.Scaler.(model.IdentityScaler)
	assert.True(t, isIdentity)
	assert.Empty(t, b.ClassLabels())

	n := len(testfixture.AttributionFeatures)
	mean := make([]float64, n)
	scale := make([]float64, n)
	for i := range scale {
		scale[i] = 1
	}
	testfixture.WriteJSON(t, dir, "shap_scaler.json", map[string]any{"mean": mean, "scale": scale})
	b, err = m.Reload()
	require.NoError(t, err)
	assert.Equal(t, n, b.Scaler.Dim())
}

func TestBundle_Missing(t *testing.T) {
	var nilBundle *Bundle
	assert.Equal(t, []string{
		"feature_names.json", "scaler.json", "label_encoder.json", "xgboost_model.json",
		"adaboost_model.json", "autoencoder_model.json", "ae_threshold.json",
	}, nilBundle.Missing(AdvancedLayout()))
	assert.False(t, nilBundle.Ready(DCRMLayout()))
}

func TestLayoutByName(t *testing.T) {
	for _, name := range []string{"dcrm", "Advanced", "attribution"} {
		l, err := LayoutByName(name)
		require.NoError(t, err)
		assert.NotEmpty(t, l.Features)
	}
	_, err := LayoutByName("legacy")
	assert.Error(t, err)
}

func TestDecodeSchema(t *testing.T) {
	for _, data := range []string{`["a", "b"]`, `{"features": ["a", "b"]}`, `{"feature_names": ["a", "b"]}`} {
		s, err := decodeSchema([]byte(data))
		require.NoError(t, err, data)
		assert.Equal(t, []string{"a", "b"}, s.Names())
	}
	for _, data := range []string{`[]`, `["a", "a"]`, `{}`, `3`} {
		_, err := decodeSchema([]byte(data))
		assert.Error(t, err, data)
	}
}
