// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Run is one diagnosed upload as persisted by the results store.
type Run struct {
	ID        string    `json:"id" yaml:"id"`
	Source    string    `json:"source" yaml:"source"`
	CreatedAt time.Time `json:"createdAt" yaml:"created_at"`

	// TotalRows counts the data rows in the upload; ProcessedRows counts
	// the rows that were diagnosed (the upload row limit may cut it short).
	TotalRows     int `json:"totalRows" yaml:"total_rows"`
	ProcessedRows int `json:"processedRows" yaml:"processed_rows"`

	Diagnoses   []Diagnosis        `json:"diagnoses" yaml:"diagnoses"`
	Advanced    *BatchResult       `json:"advanced,omitempty" yaml:"advanced,omitempty"`
	Attribution *AttributionResult `json:"attribution,omitempty" yaml:"attribution,omitempty"`
}

// FaultyRows counts diagnoses whose status is not healthy.
func (r Run) FaultyRows() int {
	n := 0
	for _, d := range r.Diagnoses {
		if d.Status != StatusHealthy {
			n++
		}
	}
	return n
}

// RunSummary is the list view of a Run.
type RunSummary struct {
	ID            string    `json:"id" yaml:"id"`
	Source        string    `json:"source" yaml:"source"`
	CreatedAt     time.Time `json:"createdAt" yaml:"created_at"`
	TotalRows     int       `json:"totalRows" yaml:"total_rows"`
	ProcessedRows int       `json:"processedRows" yaml:"processed_rows"`
	FaultyRows    int       `json:"faultyRows" yaml:"faulty_rows"`
}
