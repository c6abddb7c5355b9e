// internal/storage/memory/export.go
package memory

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	v1 "github.com/spraywall/spraywall/internal/storage/memory/export/v1"
	"github.com/spraywall/spraywall/pkg/core"
)

// writeExport snapshots the store into path, replacing it atomically.
// Must be called with the write lock held.
func (b *Backend) writeExport(path string) error {
	routes := make([]core.Route, 0, len(b.routes))
	for _, r := range b.routes {
		routes = append(routes, r)
	}
	export := v1.Build(routes, b.now())

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if b.cfg.CompressOutput {
		err = writeGzipJSON(tmp, export)
	} else {
		err = writeJSON(tmp, export)
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	b.lastExportPath = path
	return nil
}

func writeJSON(w io.Writer, data v1.Export) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

func writeGzipJSON(w io.Writer, data v1.Export) error {
	gzWriter := gzip.NewWriter(w)
	if err := json.NewEncoder(gzWriter).Encode(data); err != nil {
		gzWriter.Close()
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	if err := gzWriter.Close(); err != nil {
		return fmt.Errorf("failed to flush gzip: %w", err)
	}
	return nil
}

// readExport loads routes from path. A missing file is an empty store.
// Gzip is detected from the content, so CompressOutput can be toggled
// between runs.
func readExport(path string) ([]core.Route, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	var r io.Reader = br
	if magic, _ := br.Peek(2); len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	var export v1.Export
	if err := json.NewDecoder(r).Decode(&export); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	routes, err := v1.Routes(export)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return routes, nil
}
