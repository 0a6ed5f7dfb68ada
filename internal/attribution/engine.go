// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package attribution explains a waveform diagnosis over time. The waveform
// is cut into fixed windows, each window is summarised into the features
// the attribution models were trained on, and per-feature TreeSHAP values
// are folded into one normalised score per channel and window.
package attribution

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/pdiddy/dcrm-diagnostics/internal/model"
	"github.com/pdiddy/dcrm-diagnostics/pkg/types"
)

// Model is one named attribution model. A nil Explainer marks a model that
// cannot be attributed; it contributes zeros.
type Model struct {
	Name      string
	Explainer model.TreeExplainer
}

// Engine attributes waveforms against a fixed feature schema.
type Engine struct {
	Schema types.FeatureSchema
	// Scaler is applied to each window vector when set.
	Scaler model.Scaler
	Models []Model

	// SampleIntervalMs spaces the synthesised time axis (default 0.1).
	SampleIntervalMs float64

	Logger *slog.Logger
	// OnFallback is called with the model name whenever a model's
	// attribution is replaced by zeros.
	OnFallback func(model string)
}

// Attribute computes per-window channel attributions for w. Failures before
// any model runs return *types.AttributionUnavailableError; a model that
// fails afterwards is zero-filled and listed in Degraded.
func (e Engine) Attribute(w types.Waveform, windowSizeMs float64) (*types.AttributionResult, error) {
	log := e.Logger
	if log == nil {
		log = slog.Default()
	}
	if e.Schema.IsEmpty() {
		return nil, unavailable("attribution feature schema is empty", nil)
	}
	if w.Len() == 0 {
		return nil, unavailable("waveform has no samples", nil)
	}

	interval := e.SampleIntervalMs
	if interval <= 0 {
		interval = types.DefaultSampleIntervalMs
	}
	axis := ResolveTimeAxis(w, interval)
	if axis.Synthesized() {
		log.Warn("waveform has no time column, synthesising time axis",
			"interval_ms", interval, "samples", w.Len())
	}

	windows, err := Windows(axis.Max(), windowSizeMs)
	if err != nil {
		return nil, unavailable("cannot window waveform", err)
	}

	matrix, err := e.windowMatrix(w, axis, windows)
	if err != nil {
		return nil, err
	}

	result := &types.AttributionResult{
		Windows:      windows,
		Attributions: make(map[string]types.ModelAttribution, len(e.Models)),
	}
	channelFeatures := e.channelFeatures()
	for _, m := range e.Models {
		phi, err := e.explain(m, matrix)
		if err != nil {
			log.Warn("attribution model fell back to zeros", "model", m.Name, "error", err)
			result.Degraded = append(result.Degraded, m.Name)
			if e.OnFallback != nil {
				e.OnFallback(m.Name)
			}
			phi = make([][]float64, len(matrix))
			for i := range phi {
				phi[i] = make([]float64, e.Schema.Len())
			}
		}
		result.Attributions[m.Name] = aggregate(phi, channelFeatures)
	}
	return result, nil
}

// windowMatrix builds one schema-ordered, scaled vector per window.
func (e Engine) windowMatrix(w types.Waveform, axis TimeAxis, windows []types.TimeWindow) ([][]float64, error) {
	channels := ChannelColumns(w.Columns, axis.Column)
	groups := assignRows(axis, windows)
	names := e.Schema.Names()

	matrix := make([][]float64, len(windows))
	for k, rows := range groups {
		features := WindowFeatures(w, channels, rows)
		x := make([]float64, len(names))
		for i, n := range names {
			x[i] = features[n]
		}
		if e.Scaler != nil {
			scaled, err := e.Scaler.Transform(x)
			if err != nil {
				return nil, unavailable("scaling window features", err)
			}
			x = scaled
		}
		matrix[k] = x
	}
	return matrix, nil
}

func (e Engine) explain(m Model, matrix [][]float64) ([][]float64, error) {
	if m.Explainer == nil {
		return nil, model.ErrIncompatibleStructure
	}
	out := make([][]float64, len(matrix))
	for k, x := range matrix {
		phi, err := m.Explainer.Explain(x)
		if err != nil {
			return nil, fmt.Errorf("window %d: %w", k, err)
		}
		if len(phi) != len(x) {
			return nil, fmt.Errorf("window %d: %d attributions for %d features", k, len(phi), len(x))
		}
		out[k] = phi
	}
	return out, nil
}

// channelFeatures lists, per channel group, the schema positions whose
// lowercased name contains the group keyword.
func (e Engine) channelFeatures() map[types.ChannelGroup][]int {
	out := make(map[types.ChannelGroup][]int, len(types.ChannelGroups))
	for i, n := range e.Schema.Names() {
		lower := strings.ToLower(n)
		for _, g := range types.ChannelGroups {
			if strings.Contains(lower, string(g)) {
				out[g] = append(out[g], i)
			}
		}
	}
	return out
}

// aggregate sums |phi| over each channel's features per window and min-max
// normalises the result per channel.
func aggregate(phi [][]float64, channels map[types.ChannelGroup][]int) types.ModelAttribution {
	out := make(types.ModelAttribution, len(types.ChannelGroups))
	for _, g := range types.ChannelGroups {
		scores := make([]float64, len(phi))
		for k, row := range phi {
			for _, i := range channels[g] {
				scores[k] += math.Abs(row[i])
			}
		}
		out[g] = Normalize(scores)
	}
	return out
}

// Normalize rescales v to [0,1] by its min and max. A constant vector
// becomes all zeros.
func Normalize(v []float64) types.ChannelAttribution {
	out := make(types.ChannelAttribution, len(v))
	if len(v) == 0 {
		return out
	}
	lo, hi := v[0], v[0]
	for _, x := range v[1:] {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	if hi-lo == 0 {
		return out
	}
	for i, x := range v {
		out[i] = (x - lo) / (hi - lo)
	}
	return out
}

func unavailable(reason string, err error) error {
	return &types.AttributionUnavailableError{Reason: reason, Err: err}
}

// IsUnavailable reports whether err means attribution could not run.
func IsUnavailable(err error) bool {
	return errors.Is(err, types.ErrAttributionUnavailable)
}
