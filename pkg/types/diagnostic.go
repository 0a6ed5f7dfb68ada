// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// HealthyLabel is the class label that maps to StatusHealthy. Every other
// primary label maps to StatusFaulty.
const HealthyLabel = "Healthy"

// Health status values derived from the primary label.
const (
	StatusHealthy = "Healthy"
	StatusFaulty  = "Faulty"
)

// Model names reported by status endpoints and keyed in attribution output.
const (
	ModelXGBoost     = "xgboost"
	ModelAdaBoost    = "adaboost"
	ModelAutoencoder = "autoencoder"
)

// ClassVerdict is one classifier's opinion on one input row.
type ClassVerdict struct {
	// Label is the resolved class name (or "class_<index>" when unmapped).
	Label string `json:"label" yaml:"label"`

	// Confidence is the probability of Label scaled to [0,100]. Zero when
	// the classifier exposes no probabilities.
	Confidence float64 `json:"confidence" yaml:"confidence"`

	// Probabilities maps every class label to its probability in [0,100].
	// Nil when the classifier exposes no probabilities.
	Probabilities map[string]float64 `json:"probabilities,omitempty" yaml:"probabilities,omitempty"`
}

// FusionVerdict is the reconciled output of the primary and secondary
// classifiers for one row.
type FusionVerdict struct {
	Primary   ClassVerdict `json:"primary" yaml:"primary"`
	Secondary ClassVerdict `json:"secondary" yaml:"secondary"`
	Status    string       `json:"status" yaml:"status"`
}

// ReconstructionVerdict is the autoencoder anomaly signal for one row.
// IsAnomaly holds exactly when ReconstructionError > Threshold.
type ReconstructionVerdict struct {
	IsAnomaly           bool    `json:"isAnomaly" yaml:"is_anomaly"`
	ReconstructionError float64 `json:"reconstructionError" yaml:"reconstruction_error"`
	Threshold           float64 `json:"threshold" yaml:"threshold"`
}

// DiagnosticResult combines both signals for one row of a batch. The
// classifier verdict and the reconstruction verdict may disagree; both are
// surfaced unchanged.
type DiagnosticResult struct {
	RowIndex       int                    `json:"rowIndex" yaml:"row_index"`
	Primary        ClassVerdict           `json:"primary" yaml:"primary"`
	Secondary      ClassVerdict           `json:"secondary" yaml:"secondary"`
	Status         string                 `json:"status" yaml:"status"`
	Reconstruction *ReconstructionVerdict `json:"reconstruction,omitempty" yaml:"reconstruction,omitempty"`
}

// Diagnosis is the flat single-row result of the feature-dict path.
type Diagnosis struct {
	RowIndex           int                `json:"rowIndex" yaml:"row_index"`
	Diagnosis          string             `json:"diagnosis" yaml:"diagnosis"`
	Confidence         float64            `json:"confidence" yaml:"confidence"`
	SecondaryDiagnosis string             `json:"secondary_diagnosis" yaml:"secondary_diagnosis"`
	Probabilities      map[string]float64 `json:"probabilities" yaml:"probabilities"`
	Status             string             `json:"status" yaml:"status"`
}

// RowError records a row that failed inside a batch.
type RowError struct {
	RowIndex int    `json:"rowIndex" yaml:"row_index"`
	Error    string `json:"error" yaml:"error"`
}

// BatchResult holds the outcome of a batch prediction. Rows are processed
// in index order and a failing row does not stop the batch.
type BatchResult struct {
	Results []DiagnosticResult `json:"results" yaml:"results"`
	Errors  []RowError         `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// Succeeded returns the number of rows that produced a result.
func (r BatchResult) Succeeded() int { return len(r.Results) }

// Failed returns the number of rows that failed.
func (r BatchResult) Failed() int { return len(r.Errors) }

// Total returns the number of rows processed.
func (r BatchResult) Total() int { return r.Succeeded() + r.Failed() }

// HasFailures reports whether any row failed.
func (r BatchResult) HasFailures() bool { return len(r.Errors) > 0 }
