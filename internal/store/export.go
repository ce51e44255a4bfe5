// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/arxiv-agent/pkg/types"
)

const exportLimit = 1000000

// ExportFormat selects the export encoding.
type ExportFormat string

const (
	ExportYAML ExportFormat = "yaml"
	ExportJSON ExportFormat = "json"
)

// Export writes the papers matching opts to path in the given format. The
// file is written to a temp file in the same directory and renamed into
// place. A zero Limit exports every paper.
func (s *Store) Export(ctx context.Context, path string, format ExportFormat, opts SearchOptions) (int, error) {
	if opts.Limit <= 0 {
		opts.Limit = exportLimit
	}
	papers, err := s.Search(ctx, opts)
	if err != nil {
		return 0, fmt.Errorf("querying for export: %w", err)
	}
	if papers == nil {
		papers = []*types.Paper{}
	}

	var data []byte
	switch format {
	case ExportJSON:
		data, err = json.MarshalIndent(papers, "", "  ")
	case ExportYAML, "":
		data, err = yaml.Marshal(papers)
	default:
		return 0, fmt.Errorf("unknown export format %q", format)
	}
	if err != nil {
		return 0, fmt.Errorf("marshaling %s: %w", format, err)
	}

	if err := writeFileAtomic(path, data); err != nil {
		return 0, err
	}
	return len(papers), nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".export-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing export: %w", writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing export: %w", closeErr)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming export: %w", err)
	}
	return nil
}
