// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package attribution

import (
	"math"
	"strings"

	"github.com/pdiddy/dcrm-diagnostics/pkg/types"
)

// Cross-feature names computed alongside the per-channel aggregates.
const (
	FeatureRpAvg    = "Rp_avg"
	FeatureRaTa     = "Ra_ta"
	FeatureTOverlap = "T_overlap"
)

// ChannelColumns maps each channel group to the waveform columns that carry
// it. A column belongs to a group when its lowercased name contains the
// group keyword; current excludes coil-current columns. The column at skip
// (the time axis) is never assigned.
func ChannelColumns(columns []string, skip int) map[types.ChannelGroup][]int {
	out := make(map[types.ChannelGroup][]int, len(types.ChannelGroups))
	for i, c := range columns {
		if i == skip {
			continue
		}
		lower := strings.ToLower(c)
		for _, g := range types.ChannelGroups {
			if !strings.Contains(lower, string(g)) {
				continue
			}
			if g == types.ChannelCurrent && strings.Contains(lower, "coil") {
				continue
			}
			out[g] = append(out[g], i)
		}
	}
	return out
}

// WindowFeatures aggregates the given rows of w. For each channel group with
// at least one finite value it emits window_mean_<g>, window_std_<g>
// (population) and window_max_<g>, pooling every column of the group. It
// then adds Rp_avg, Ra_ta and T_overlap. No rows means no features.
func WindowFeatures(w types.Waveform, channels map[types.ChannelGroup][]int, rows []int) map[string]float64 {
	features := map[string]float64{}
	if len(rows) == 0 {
		return features
	}

	means := map[types.ChannelGroup]float64{}
	for _, g := range types.ChannelGroups {
		var values []float64
		for _, r := range rows {
			row := w.Rows[r]
			for _, c := range channels[g] {
				if c < len(row) && !math.IsNaN(row[c]) {
					values = append(values, row[c])
				}
			}
		}
		if len(values) == 0 {
			continue
		}
		mean, std, peak := summarize(values)
		means[g] = mean
		features["window_mean_"+string(g)] = mean
		features["window_std_"+string(g)] = std
		features["window_max_"+string(g)] = peak
	}

	if r, ok := means[types.ChannelResistance]; ok {
		features[FeatureRpAvg] = r
	}
	features[FeatureRaTa] = means[types.ChannelResistance] * means[types.ChannelTravel]
	features[FeatureTOverlap] = 0
	return features
}

func summarize(values []float64) (mean, std, peak float64) {
	peak = math.Inf(-1)
	for _, v := range values {
		mean += v
		if v > peak {
			peak = v
		}
	}
	mean /= float64(len(values))
	for _, v := range values {
		d := v - mean
		std += d * d
	}
	std = math.Sqrt(std / float64(len(values)))
	return mean, std, peak
}
