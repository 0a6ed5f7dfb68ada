// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package attribution

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/pdiddy/dcrm-diagnostics/pkg/types"
)

// MaxWindows bounds how many windows one waveform may be cut into.
const MaxWindows = 100000

// TimeAxis is the resolved time of every waveform row, in milliseconds.
type TimeAxis struct {
	Values []float64
	// Column is the waveform column the times came from, or -1 when they
	// were synthesised from the row ordinal.
	Column int
}

// Synthesized reports whether the axis was generated rather than read.
func (a TimeAxis) Synthesized() bool { return a.Column < 0 }

// Max returns the largest non-NaN time, or NaN when there is none.
func (a TimeAxis) Max() float64 {
	m := math.NaN()
	for _, t := range a.Values {
		if math.IsNaN(t) {
			continue
		}
		if math.IsNaN(m) || t > m {
			m = t
		}
	}
	return m
}

// ResolveTimeAxis finds the time column of w. A column matches when its
// normalised name contains both "time" and "ms", or is exactly "time";
// the first match wins. Without one, row i sits at i*sampleIntervalMs.
func ResolveTimeAxis(w types.Waveform, sampleIntervalMs float64) TimeAxis {
	col := -1
	for i, c := range w.Columns {
		n := normalizeName(c)
		if strings.Contains(n, "time") && strings.Contains(n, "ms") {
			col = i
			break
		}
	}
	if col < 0 {
		for i, c := range w.Columns {
			if normalizeName(c) == "time" {
				col = i
				break
			}
		}
	}

	values := make([]float64, len(w.Rows))
	for i, row := range w.Rows {
		switch {
		case col < 0:
			values[i] = float64(i) * sampleIntervalMs
		case col < len(row):
			values[i] = row[col]
		default:
			values[i] = math.NaN()
		}
	}
	return TimeAxis{Values: values, Column: col}
}

func normalizeName(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Windows tiles [0, maxTime] with ceil(maxTime/windowSizeMs) windows of
// width windowSizeMs.
func Windows(maxTime, windowSizeMs float64) ([]types.TimeWindow, error) {
	if !(windowSizeMs > 0) || math.IsInf(windowSizeMs, 0) {
		return nil, fmt.Errorf("window size must be positive, got %v", windowSizeMs)
	}
	if !(maxTime > 0) || math.IsInf(maxTime, 0) {
		return nil, fmt.Errorf("waveform has no positive time span (max time %v)", maxTime)
	}
	n := math.Ceil(maxTime / windowSizeMs)
	if n > MaxWindows {
		return nil, fmt.Errorf("%v ms in %v ms windows exceeds %d windows", maxTime, windowSizeMs, MaxWindows)
	}
	out := make([]types.TimeWindow, int(n))
	for k := range out {
		out[k] = types.TimeWindow{
			StartMs: float64(k) * windowSizeMs,
			EndMs:   float64(k+1) * windowSizeMs,
		}
	}
	return out, nil
}

// assignRows groups row indices by window. Windows are half-open except the
// last, whose end is inclusive. Rows with NaN or out-of-range times are
// left out.
func assignRows(axis TimeAxis, windows []types.TimeWindow) [][]int {
	out := make([][]int, len(windows))
	if len(windows) == 0 {
		return out
	}
	size := windows[0].EndMs - windows[0].StartMs
	last := len(windows) - 1
	for i, t := range axis.Values {
		if math.IsNaN(t) || t < 0 {
			continue
		}
		k := int(math.Floor(t / size))
		if k > last {
			if t > windows[last].EndMs {
				continue
			}
			k = last
		}
		out[k] = append(out[k], i)
	}
	return out
}
