// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// ChannelGroup is one physical measurement family of a DCRM waveform.
type ChannelGroup string

const (
	ChannelResistance ChannelGroup = "resistance"
	ChannelTravel     ChannelGroup = "travel"
	ChannelCurrent    ChannelGroup = "current"
)

// ChannelGroups lists the groups in reporting order.
var ChannelGroups = []ChannelGroup{ChannelResistance, ChannelTravel, ChannelCurrent}

// Waveform is a raw multi-channel time series as read from a test file.
// Columns name each value position of a row; missing cells are NaN. The time
// axis is not resolved yet: it may be one of the columns or be implied by
// the row ordinal.
type Waveform struct {
	Columns []string    `json:"columns" yaml:"columns"`
	Rows    [][]float64 `json:"rows" yaml:"rows"`
}

// Len returns the number of samples.
func (w Waveform) Len() int { return len(w.Rows) }

// TimeWindow is a half-open [StartMs, EndMs) slice of the time axis.
// Windows tile the axis contiguously in ascending order.
type TimeWindow struct {
	StartMs float64 `json:"start_ms" yaml:"start_ms"`
	EndMs   float64 `json:"end_ms" yaml:"end_ms"`
}

// ChannelAttribution holds one normalised score in [0,1] per TimeWindow.
type ChannelAttribution []float64

// ModelAttribution maps each channel group to its per-window scores.
type ModelAttribution map[ChannelGroup]ChannelAttribution

// AttributionResult is the output of a windowed attribution run.
type AttributionResult struct {
	Windows []TimeWindow `json:"time_windows" yaml:"time_windows"`

	// Attributions is keyed by model name (xgboost, adaboost).
	Attributions map[string]ModelAttribution `json:"shap" yaml:"shap"`

	// Degraded lists models whose attribution was replaced by zeros.
	Degraded []string `json:"degraded,omitempty" yaml:"degraded,omitempty"`
}
