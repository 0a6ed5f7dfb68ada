// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package artifact

import (
	"fmt"
	"math"
	"time"

	"github.com/pdiddy/dcrm-diagnostics/internal/model"
	"github.com/pdiddy/dcrm-diagnostics/pkg/types"
)

// Bundle is one fully loaded artifact set. It is never modified after the
// manager publishes it.
type Bundle struct {
	Layout        string
	Dir           string
	Schema        types.FeatureSchema
	Scaler        model.Scaler
	Labels        model.LabelMap
	Primary       model.ProbabilisticClassifier
	Secondary     model.ProbabilisticClassifier
	Reconstructor model.Reconstructor
	Threshold     float64
	LoadedAt      time.Time
}

// Missing lists the artifacts layout requires that b lacks, in layout order.
func (b *Bundle) Missing(l Layout) []string {
	var missing []string
	if b == nil {
		b = &Bundle{Threshold: math.NaN()}
	}
	if b.Schema.IsEmpty() {
		missing = append(missing, l.Features)
	}
	if l.Scaler != "" && !l.ScalerOptional && b.Scaler == nil {
		missing = append(missing, l.Scaler)
	}
	if l.Labels != "" && b.Labels.Len() == 0 {
		missing = append(missing, l.Labels)
	}
	if l.Primary != "" && b.Primary == nil {
		missing = append(missing, l.Primary)
	}
	if l.Secondary != "" && b.Secondary == nil {
		missing = append(missing, l.Secondary)
	}
	if l.Reconstructor != "" && b.Reconstructor == nil {
		missing = append(missing, l.Reconstructor)
	}
	if l.Threshold != "" && (math.IsNaN(b.Threshold) || math.IsInf(b.Threshold, 0)) {
		missing = append(missing, l.Threshold)
	}
	return missing
}

// Ready reports whether b satisfies every requirement of l.
func (b *Bundle) Ready(l Layout) bool {
	return len(b.Missing(l)) == 0
}

// AvailableModels names the models present in b.
func (b *Bundle) AvailableModels() []string {
	names := []string{}
	if b == nil {
		return names
	}
	if b.Primary != nil {
		names = append(names, types.ModelXGBoost)
	}
	if b.Secondary != nil {
		names = append(names, types.ModelAdaBoost)
	}
	if b.Reconstructor != nil {
		names = append(names, types.ModelAutoencoder)
	}
	return names
}

// ClassLabels returns the label map's labels ordered by class index.
func (b *Bundle) ClassLabels() []string {
	if b == nil {
		return []string{}
	}
	return b.Labels.Labels()
}

// featureCounter is implemented by tree models that know their input width.
type featureCounter interface {
	NumFeatures() int
}

// validate cross-checks model input widths against the schema.
func (b *Bundle) validate(l Layout) error {
	n := b.Schema.Len()
	if b.Scaler != nil {
		if d := b.Scaler.Dim(); d >= 0 && d != n {
			return &types.ArtifactUnavailableError{Layout: l.Name, Item: l.Scaler, Dir: b.Dir,
				Err: fmt.Errorf("scaler expects %d features, schema has %d", d, n)}
		}
	}
	for _, m := range []struct {
		file  string
		model any
	}{{l.Primary, b.Primary}, {l.Secondary, b.Secondary}} {
		fc, ok := m.model.(featureCounter)
		if !ok {
			continue
		}
		if got := fc.NumFeatures(); got > n {
			return &types.ArtifactUnavailableError{Layout: l.Name, Item: m.file, Dir: b.Dir,
				Err: fmt.Errorf("model uses %d features, schema has %d", got, n)}
		}
	}
	if b.Reconstructor != nil && b.Reconstructor.InputDim() != n {
		return &types.ArtifactUnavailableError{Layout: l.Name, Item: l.Reconstructor, Dir: b.Dir,
			Err: fmt.Errorf("autoencoder expects %d features, schema has %d", b.Reconstructor.InputDim(), n)}
	}
	return nil
}
