// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// ArtifactInfo describes one file in an artifact directory.
type ArtifactInfo struct {
	Name       string    `json:"name" yaml:"name"`
	Kind       string    `json:"kind" yaml:"kind"`
	SizeBytes  int64     `json:"sizeBytes" yaml:"size_bytes"`
	ModifiedAt time.Time `json:"modifiedAt" yaml:"modified_at"`
}

// ModelsStatus is the introspective description of a loaded artifact set.
// Producing it performs no inference.
type ModelsStatus struct {
	Layout          string         `json:"layout" yaml:"layout"`
	Directory       string         `json:"directory" yaml:"directory"`
	ArtifactCount   int            `json:"artifactCount" yaml:"artifact_count"`
	FeatureCount    int            `json:"featureCount" yaml:"feature_count"`
	ClassLabels     []string       `json:"classLabels" yaml:"class_labels"`
	AvailableModels []string       `json:"availableModels" yaml:"available_models"`
	Artifacts       []ArtifactInfo `json:"artifacts" yaml:"artifacts"`
	LoadedAt        time.Time      `json:"loadedAt" yaml:"loaded_at"`
}

// FeatureSpace describes the feature schema of a loaded artifact set.
type FeatureSpace struct {
	Features        []string `json:"features" yaml:"features"`
	ClassLabels     []string `json:"classLabels" yaml:"class_labels"`
	ArtifactCount   int      `json:"artifactCount" yaml:"artifact_count"`
	AvailableModels []string `json:"availableModels" yaml:"available_models"`
}
