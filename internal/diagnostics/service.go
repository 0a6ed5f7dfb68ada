// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package diagnostics wires the artifact managers, the aligner and the three
// inference engines into the operations served by the CLI and the web layer.
// Every operation loads its artifact set on demand; none of them retries.
package diagnostics

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/pdiddy/dcrm-diagnostics/internal/align"
	"github.com/pdiddy/dcrm-diagnostics/internal/anomaly"
	"github.com/pdiddy/dcrm-diagnostics/internal/artifact"
	"github.com/pdiddy/dcrm-diagnostics/internal/attribution"
	"github.com/pdiddy/dcrm-diagnostics/internal/fusion"
	"github.com/pdiddy/dcrm-diagnostics/internal/model"
	"github.com/pdiddy/dcrm-diagnostics/pkg/types"
)

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger handed to the service and its managers.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// Service owns one lifecycle manager per artifact layout.
type Service struct {
	cfg         types.DiagnosticsConfig
	log         *slog.Logger
	dcrm        *artifact.Manager
	advanced    *artifact.Manager
	attribution *artifact.Manager
}

// New builds a Service from cfg. Nothing is loaded until first use.
func New(cfg types.DiagnosticsConfig, opts ...Option) *Service {
	s := &Service{cfg: cfg.WithDefaults(), log: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	mopts := []artifact.Option{
		artifact.WithLogger(s.log),
		artifact.WithLoadObserver(observeLoad),
	}
	dirs := s.cfg.Artifacts
	s.dcrm = artifact.NewManager(artifact.DCRMLayout(), dirs.DCRMModelDir, mopts...)
	s.advanced = artifact.NewManager(artifact.AdvancedLayout(), dirs.AdvancedModelDir, mopts...)
	s.attribution = artifact.NewManager(artifact.AttributionLayout(), dirs.AttributionModelDir, mopts...)
	return s
}

// Config returns the effective configuration.
func (s *Service) Config() types.DiagnosticsConfig { return s.cfg }

// Manager returns the manager for the named layout, or nil.
func (s *Service) Manager(layout string) *artifact.Manager {
	switch layout {
	case artifact.LayoutDCRM:
		return s.dcrm
	case artifact.LayoutAdvanced:
		return s.advanced
	case artifact.LayoutAttribution:
		return s.attribution
	}
	return nil
}

// Ready reports, per layout, whether a bundle is currently held. It never
// triggers a load.
func (s *Service) Ready() map[string]bool {
	return map[string]bool{
		artifact.LayoutDCRM:        s.dcrm.Peek() != nil,
		artifact.LayoutAdvanced:    s.advanced.Peek() != nil,
		artifact.LayoutAttribution: s.attribution.Peek() != nil,
	}
}

// Reload forces every layout to load again. It returns the first
// unavailability it meets but always attempts all three.
func (s *Service) Reload() error {
	var errs []error
	for _, m := range []*artifact.Manager{s.dcrm, s.advanced, s.attribution} {
		if _, err := m.Reload(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Features returns the feature names of the dcrm layout.
func (s *Service) Features() ([]string, error) {
	b, err := s.dcrm.EnsureReady()
	if err != nil {
		return nil, err
	}
	return b.Schema.Names(), nil
}

// PredictFeatures diagnoses a single feature dictionary with the dcrm
// classifier pair. Missing or unparseable features take the configured
// sentinel; no categorical expansion happens on this path.
func (s *Service) PredictFeatures(features types.RawRow) (diag types.Diagnosis, err error) {
	defer s.observe(PathFeatures, time.Now(), &err)

	b, err := s.dcrm.EnsureReady()
	if err != nil {
		return types.Diagnosis{}, err
	}
	x, err := align.AlignFeatures(features, b.Schema, b.Scaler, s.cfg.Sentinel())
	if err != nil {
		return types.Diagnosis{}, err
	}
	v, err := fusionEngine(b).Classify(x)
	if err != nil {
		return types.Diagnosis{}, err
	}
	return types.Diagnosis{
		Diagnosis:          v.Primary.Label,
		Confidence:         v.Primary.Confidence,
		SecondaryDiagnosis: v.Secondary.Label,
		Probabilities:      v.Primary.Probabilities,
		Status:             v.Status,
	}, nil
}

// PredictRow diagnoses one raw row with the advanced layout.
func (s *Service) PredictRow(idx int, row types.RawRow) (res types.DiagnosticResult, err error) {
	defer s.observe(PathRow, time.Now(), &err)

	b, err := s.advanced.EnsureReady()
	if err != nil {
		return types.DiagnosticResult{}, err
	}
	return predictRow(b, idx, row)
}

// PredictBatch diagnoses rows in index order. A row that fails is recorded
// in Errors and the batch continues; only an unavailable artifact set fails
// the whole call.
func (s *Service) PredictBatch(rows []types.RawRow) (types.BatchResult, error) {
	start := time.Now()
	b, err := s.advanced.EnsureReady()
	if err != nil {
		predictionsTotal.WithLabelValues(PathBatch, OutcomeUnavailable).Inc()
		return types.BatchResult{}, err
	}

	out := types.BatchResult{Results: make([]types.DiagnosticResult, 0, len(rows))}
	for i, row := range rows {
		res, err := predictRow(b, i, row)
		if err != nil {
			s.log.Warn("batch row failed", "row", i, "error", err)
			out.Errors = append(out.Errors, types.RowError{RowIndex: i, Error: err.Error()})
			predictionsTotal.WithLabelValues(PathBatch, OutcomeFailed).Inc()
			continue
		}
		out.Results = append(out.Results, res)
		predictionsTotal.WithLabelValues(PathBatch, OutcomeOK).Inc()
	}
	predictionDuration.WithLabelValues(PathBatch).Observe(time.Since(start).Seconds())
	return out, nil
}

// Explain runs windowed attribution over w. A windowSizeMs of zero selects
// the configured default. Every failure is an
// *types.AttributionUnavailableError; when the artifacts are missing it
// also matches types.ErrArtifactUnavailable.
func (s *Service) Explain(w types.Waveform, windowSizeMs float64) (*types.AttributionResult, error) {
	if windowSizeMs == 0 {
		windowSizeMs = float64(s.cfg.WindowSizeMs)
	}
	b, err := s.attribution.EnsureReady()
	if err != nil {
		attributionRunsTotal.WithLabelValues(OutcomeUnavailable).Inc()
		return nil, &types.AttributionUnavailableError{Reason: "attribution artifacts unavailable", Err: err}
	}

	engine := attribution.Engine{
		Schema: b.Schema,
		Scaler: b.Scaler,
		Models: []attribution.Model{
			{Name: types.ModelXGBoost, Explainer: explainer(b.Primary)},
			{Name: types.ModelAdaBoost, Explainer: explainer(b.Secondary)},
		},
		SampleIntervalMs: s.cfg.SampleIntervalMs,
		Logger:           s.log,
		OnFallback:       observeFallback,
	}
	res, err := engine.Attribute(w, windowSizeMs)
	switch {
	case err != nil:
		attributionRunsTotal.WithLabelValues(OutcomeUnavailable).Inc()
		return nil, err
	case len(res.Degraded) > 0:
		attributionRunsTotal.WithLabelValues(OutcomeDegraded).Inc()
	default:
		attributionRunsTotal.WithLabelValues(OutcomeOK).Inc()
	}
	return res, nil
}

// Status describes the advanced artifact set. When the set is not ready the
// returned status still lists the files on disk and the error says what is
// missing.
func (s *Service) Status() (types.ModelsStatus, error) {
	return s.StatusFor(artifact.LayoutAdvanced)
}

// StatusFor describes the named layout.
func (s *Service) StatusFor(layout string) (types.ModelsStatus, error) {
	m := s.Manager(layout)
	if m == nil {
		return types.ModelsStatus{}, fmt.Errorf("unknown layout %q", layout)
	}
	st := types.ModelsStatus{
		Layout:          layout,
		Directory:       absDir(m.Store().Dir()),
		ClassLabels:     []string{},
		AvailableModels: []string{},
	}
	artifacts, listErr := m.Store().List()
	if listErr != nil {
		return st, fmt.Errorf("listing artifacts: %w", listErr)
	}
	st.Artifacts = artifacts
	st.ArtifactCount = len(artifacts)

	b, err := m.EnsureReady()
	if err != nil {
		return st, err
	}
	st.FeatureCount = b.Schema.Len()
	st.ClassLabels = b.ClassLabels()
	st.AvailableModels = b.AvailableModels()
	st.LoadedAt = b.LoadedAt
	return st, nil
}

// FeatureSpace describes the advanced feature schema.
func (s *Service) FeatureSpace() (types.FeatureSpace, error) {
	b, err := s.advanced.EnsureReady()
	if err != nil {
		return types.FeatureSpace{}, err
	}
	artifacts, err := s.advanced.Store().List()
	if err != nil {
		return types.FeatureSpace{}, fmt.Errorf("listing artifacts: %w", err)
	}
	return types.FeatureSpace{
		Features:        b.Schema.Names(),
		ClassLabels:     b.ClassLabels(),
		ArtifactCount:   len(artifacts),
		AvailableModels: b.AvailableModels(),
	}, nil
}

func predictRow(b *artifact.Bundle, idx int, row types.RawRow) (types.DiagnosticResult, error) {
	x, err := align.Align(row, b.Schema, b.Scaler)
	if err != nil {
		return types.DiagnosticResult{}, err
	}
	v, err := fusionEngine(b).Classify(x)
	if err != nil {
		return types.DiagnosticResult{}, err
	}
	rec, err := anomaly.Engine{Network: b.Reconstructor, Threshold: b.Threshold}.Reconstruct(x)
	if err != nil {
		return types.DiagnosticResult{}, err
	}
	return types.DiagnosticResult{
		RowIndex:       idx,
		Primary:        v.Primary,
		Secondary:      v.Secondary,
		Status:         v.Status,
		Reconstruction: &rec,
	}, nil
}

func fusionEngine(b *artifact.Bundle) fusion.Engine {
	e := fusion.Engine{Primary: b.Primary, Labels: b.Labels}
	if b.Secondary != nil {
		e.Secondary = b.Secondary
	}
	return e
}

func explainer(c model.ProbabilisticClassifier) model.TreeExplainer {
	if te, ok := c.(model.TreeExplainer); ok {
		return te
	}
	return nil
}

func (s *Service) observe(path string, start time.Time, errp *error) {
	predictionDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())
	predictionsTotal.WithLabelValues(path, outcomeOf(*errp)).Inc()
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, types.ErrArtifactUnavailable):
		return OutcomeUnavailable
	default:
		return OutcomeFailed
	}
}

func absDir(dir string) string {
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return dir
}
