// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package anomaly flags rows whose autoencoder reconstruction error exceeds
// a frozen threshold.
package anomaly

import (
	"fmt"
	"math"

	"github.com/pdiddy/dcrm-diagnostics/internal/model"
	"github.com/pdiddy/dcrm-diagnostics/pkg/types"
)

// Engine scores aligned vectors against Threshold.
type Engine struct {
	Network   model.Reconstructor
	Threshold float64
}

// Reconstruct returns the mean squared reconstruction error of x and
// whether it exceeds the threshold.
func (e Engine) Reconstruct(x []float64) (types.ReconstructionVerdict, error) {
	if e.Network == nil {
		return types.ReconstructionVerdict{}, types.PredictionFailed("reconstruct", fmt.Errorf("no reconstruction network"))
	}
	y, err := e.Network.Reconstruct(x)
	if err != nil {
		return types.ReconstructionVerdict{}, types.PredictionFailed("reconstruct", err)
	}
	mse, err := MeanSquaredError(x, y)
	if err != nil {
		return types.ReconstructionVerdict{}, types.PredictionFailed("reconstruct", err)
	}
	return types.ReconstructionVerdict{
		IsAnomaly:           mse > e.Threshold,
		ReconstructionError: mse,
		Threshold:           e.Threshold,
	}, nil
}

// MeanSquaredError averages (x_i - y_i)^2 over all dimensions.
func MeanSquaredError(x, y []float64) (float64, error) {
	if len(x) != len(y) {
		return 0, fmt.Errorf("reconstruction has %d values for %d inputs", len(y), len(x))
	}
	if len(x) == 0 {
		return 0, fmt.Errorf("empty vector")
	}
	var sum float64
	for i := range x {
		d := x[i] - y[i]
		sum += d * d
	}
	mse := sum / float64(len(x))
	if math.IsNaN(mse) || math.IsInf(mse, 0) {
		return 0, fmt.Errorf("reconstruction error is not finite")
	}
	return mse, nil
}
