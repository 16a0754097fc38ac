package pipeline

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/codeready-toolchain/pipeline-orchestrator/pkg/pathfs"
	"github.com/codeready-toolchain/pipeline-orchestrator/pkg/perr"
)

// LoadRegistry reads pipeline-config/registry.json. Read-mostly — runners
// read it once at startup (spec.md §5).
func LoadRegistry(r *pathfs.Resolver) (*Registry, error) {
	data, err := os.ReadFile(r.RegistryPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: pipeline registry", perr.ErrNotFound)
		}
		return nil, fmt.Errorf("pipeline: read registry: %w", err)
	}
	var reg Registry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("pipeline: parse registry: %w", err)
	}
	return &reg, nil
}

// LoadManifest reads pipeline-config/<slug>/pipeline.json.
func LoadManifest(r *pathfs.Resolver, slug string) (*Manifest, error) {
	data, err := os.ReadFile(r.PipelineManifestPath(slug))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: pipeline %q", perr.ErrNotFound, slug)
		}
		return nil, fmt.Errorf("pipeline: read manifest %q: %w", slug, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("pipeline: parse manifest %q: %w", slug, err)
	}
	if len(m.Tasks) == 0 {
		return nil, fmt.Errorf("pipeline %q: manifest has no tasks", slug)
	}
	return &m, nil
}

// ParseSeed validates and parses a seed document's raw bytes.
//
// Returns a *perr.ValidationError for malformed JSON or missing required
// fields, matching the substrings spec.md §8 requires: "Invalid JSON" and
// "Required fields missing".
func ParseSeed(data []byte) (*Seed, error) {
	var s Seed
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, perr.NewValidation("seed", "", fmt.Sprintf("Invalid JSON: %v", err))
	}
	if s.Name == "" || s.Data == nil {
		return nil, perr.NewValidation("seed", "", "Required fields missing: name and data are required")
	}
	return &s, nil
}
