// Package artifact loads snapshot and diff files from disk. Files may
// be JSON or YAML; the extension decides the decoder.
package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v4"

	"driftscope/internal/domain"
)

// LoadSnapshot reads one snapshot side from a file. Node definitions
// missing an explicit name default to their map key, and parent lists
// referring to the node itself are rejected.
func LoadSnapshot(path string) (*domain.Snapshot, error) {
	var snap domain.Snapshot
	if err := decodeFile(path, &snap); err != nil {
		return nil, err
	}
	if snap.Nodes == nil {
		snap.Nodes = make(map[string]*domain.NodeDefinition)
	}
	for id, def := range snap.Nodes {
		if def == nil {
			return nil, domain.ErrValidation("snapshot %s: node %q has no definition", path, id)
		}
		if def.Name == "" {
			def.Name = id
		}
	}
	for child, parents := range snap.Parents {
		for _, parent := range parents {
			if parent == child {
				return nil, domain.ErrValidation("snapshot %s: node %q depends on itself", path, child)
			}
		}
	}
	return &snap, nil
}

// LoadDiff reads an externally computed diff classification from a
// file. An empty path yields a nil diff, which is valid input to the
// graph builder.
func LoadDiff(path string) (*domain.DiffResult, error) {
	if path == "" {
		return nil, nil
	}
	var diff domain.DiffResult
	if err := decodeFile(path, &diff); err != nil {
		return nil, err
	}
	return &diff, nil
}

// LoadColumnLineage reads resolved column-level lineage keyed by node id.
func LoadColumnLineage(path string) (map[string][]domain.ColumnLineage, error) {
	if path == "" {
		return nil, nil
	}
	var lineage map[string][]domain.ColumnLineage
	if err := decodeFile(path, &lineage); err != nil {
		return nil, err
	}
	return lineage, nil
}

func decodeFile(path string, out any) error {
	raw, err := os.ReadFile(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("parse yaml %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("parse json %s: %w", path, err)
		}
	default:
		return domain.ErrValidation("unsupported artifact format %q (want .json, .yaml or .yml)", filepath.Ext(path))
	}
	return nil
}
