// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package artifact reads trained model artifacts from disk and manages their
// lazy, concurrency-safe loading into immutable bundles.
package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pdiddy/dcrm-diagnostics/pkg/types"
)

// listedSuffixes are the file extensions reported by List.
var listedSuffixes = []string{".json", ".yaml", ".yml", ".pkl", ".joblib", ".keras"}

// Store is a read-only view of one artifact directory.
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir. The directory need not exist yet.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the directory the store reads from.
func (s *Store) Dir() string { return s.dir }

// Exists reports whether the directory exists.
func (s *Store) Exists() bool {
	info, err := os.Stat(s.dir)
	return err == nil && info.IsDir()
}

// Path returns the full path of the named artifact.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// Readable opens the named artifact to confirm it can be read. When the
// open fails with a permission error it tries once to chmod the file to
// 0644 and opens it again.
func (s *Store) Readable(name string) error {
	path := s.Path(name)
	f, err := os.Open(path)
	if err == nil {
		return f.Close()
	}
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("artifact %s not found in %s: %w", name, s.dir, err)
	}
	if !errors.Is(err, fs.ErrPermission) {
		return fmt.Errorf("opening artifact %s: %w", path, err)
	}
	if chmodErr := os.Chmod(path, 0o644); chmodErr != nil {
		return fmt.Errorf("artifact %s is not readable and permissions could not be fixed: %w", path, err)
	}
	f, err = os.Open(path)
	if err != nil {
		return fmt.Errorf("artifact %s is still not readable after chmod: %w", path, err)
	}
	return f.Close()
}

// ReadFile checks readability and returns the artifact contents.
func (s *Store) ReadFile(name string) ([]byte, error) {
	if err := s.Readable(name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path(name))
	if err != nil {
		return nil, fmt.Errorf("reading artifact %s: %w", name, err)
	}
	return data, nil
}

// ReadJSON decodes the named artifact into v.
func (s *Store) ReadJSON(name string, v any) error {
	data, err := s.ReadFile(name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding artifact %s: %w", name, err)
	}
	return nil
}

// List describes every artifact file in the directory, sorted by name. A
// missing directory yields an empty list.
func (s *Store) List() ([]types.ArtifactInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []types.ArtifactInfo{}, nil
		}
		return nil, fmt.Errorf("listing artifacts in %s: %w", s.dir, err)
	}

	out := []types.ArtifactInfo{}
	for _, e := range entries {
		if !e.Type().IsRegular() || !hasListedSuffix(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, types.ArtifactInfo{
			Name:       e.Name(),
			Kind:       InferKind(e.Name()),
			SizeBytes:  info.Size(),
			ModifiedAt: info.ModTime().UTC(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func hasListedSuffix(name string) bool {
	lower := strings.ToLower(name)
	for _, suffix := range listedSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

// InferKind guesses an artifact's role from its file name. Rules are
// checked in order, so "ae_threshold.json" reports as autoencoder.
func InferKind(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "xgb"):
		return "xgboost"
	case strings.Contains(lower, "ada") && strings.Contains(lower, "boost"):
		return "adaboost"
	case strings.Contains(lower, "autoencoder") || strings.Contains(lower, "ae"):
		return "autoencoder"
	case strings.Contains(lower, "encoder"):
		return "encoder"
	case strings.Contains(lower, "scaler"):
		return "scaler"
	case strings.Contains(lower, "threshold"):
		return "threshold"
	default:
		return "artifact"
	}
}
