// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is. Each typed error below matches exactly one.
var (
	ErrArtifactUnavailable    = errors.New("artifact unavailable")
	ErrPredictionFailed       = errors.New("prediction failed")
	ErrAttributionUnavailable = errors.New("attribution unavailable")
)

// ArtifactUnavailableError reports a required model, schema, or threshold
// that is missing or unreadable. Callers may retry once the artifact appears.
type ArtifactUnavailableError struct {
	// Layout names the artifact set (dcrm, advanced, attribution).
	Layout string
	// Item names the first missing artifact.
	Item string
	// Dir is the artifact directory that was consulted.
	Dir string
	// Err is the underlying load failure, if any.
	Err error
}

func (e *ArtifactUnavailableError) Error() string {
	msg := fmt.Sprintf("%s artifacts unavailable: %s missing in %q", e.Layout, e.Item, e.Dir)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ArtifactUnavailableError) Unwrap() error { return e.Err }

func (e *ArtifactUnavailableError) Is(target error) bool {
	return target == ErrArtifactUnavailable
}

// PredictionFailedError reports a model that rejected its input or raised
// during inference. It is attributable to the caller's input even when the
// root cause is a schema/artifact mismatch, and is never retried.
type PredictionFailedError struct {
	// Stage names where the failure happened (align, primary, secondary, reconstruct).
	Stage string
	Err   error
}

func (e *PredictionFailedError) Error() string {
	return fmt.Sprintf("prediction failed at %s: %v", e.Stage, e.Err)
}

func (e *PredictionFailedError) Unwrap() error { return e.Err }

func (e *PredictionFailedError) Is(target error) bool {
	return target == ErrPredictionFailed
}

// AttributionUnavailableError reports that windowed attribution could not
// be produced. The classification result is still valid.
type AttributionUnavailableError struct {
	Reason string
	Err    error
}

func (e *AttributionUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("attribution unavailable: %s: %v", e.Reason, e.Err)
	}
	return "attribution unavailable: " + e.Reason
}

func (e *AttributionUnavailableError) Unwrap() error { return e.Err }

func (e *AttributionUnavailableError) Is(target error) bool {
	return target == ErrAttributionUnavailable
}

// PredictionFailed wraps err as a PredictionFailedError for stage. An error
// that already is one passes through unchanged.
func PredictionFailed(stage string, err error) error {
	var pf *PredictionFailedError
	if errors.As(err, &pf) {
		return err
	}
	return &PredictionFailedError{Stage: stage, Err: err}
}
