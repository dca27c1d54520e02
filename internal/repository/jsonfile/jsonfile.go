// Package jsonfile implements the repository interfaces on top of plain JSON
// documents, one file per store.
//
// Every operation re-reads the document from disk and every mutation rewrites
// it completely. A per-store mutex serialises read-modify-write cycles inside
// the process; the rewrite itself goes through atomicwriter (temp file +
// rename) so a crash never leaves a half-written document behind.
package jsonfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/moby/sys/atomicwriter"
)

const filePerm = 0o644

// readDocument decodes path into v.
//
// It reports false when the file is missing or does not hold valid JSON. The
// caller then falls back to an empty collection: a broken document is treated
// as an empty store, never as an error.
func readDocument(path string, v any, logger *slog.Logger) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("jsonfile: reading document failed, using empty store",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
		}
		return false
	}

	if err := json.Unmarshal(data, v); err != nil {
		logger.Warn("jsonfile: malformed document, using empty store",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return false
	}
	return true
}

// writeDocument replaces path with the indented JSON encoding of v.
//
// HTML escaping is disabled so non-ASCII and <>& characters are stored as
// typed, which keeps the documents readable by hand.
func writeDocument(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("jsonfile: encoding %s: %w", path, err)
	}

	if err := atomicwriter.WriteFile(path, buf.Bytes(), filePerm); err != nil {
		return fmt.Errorf("jsonfile: writing %s: %w", path, err)
	}
	return nil
}

// ensureDocument creates path holding empty if it does not exist yet.
// An existing file is left alone even if it is malformed.
func ensureDocument(path string, empty any) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("jsonfile: creating directory %s: %w", dir, err)
		}
	}

	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("jsonfile: checking %s: %w", path, err)
	}

	return writeDocument(path, empty)
}
