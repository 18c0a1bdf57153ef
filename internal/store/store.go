// Package store persists the calendar document and run summaries as JSON
// files on disk.
package store

import (
	"bytes"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/yanivmizrachiy/luztedi/internal/model"
)

// ErrEmptyPath is returned when a store operation is given no path.
var ErrEmptyPath = errors.New("store path is empty")

// Load reads the document at path. A missing file is an empty dataset.
// The document must pass model.Validate; a wrong version tag or a
// malformed record is an error and the caller must not write.
func Load(path string) (model.Dataset, error) {
	if path == "" {
		return model.Dataset{}, ErrEmptyPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return model.NewDataset(), nil
		}
		return model.Dataset{}, errors.Wrapf(err, "read document %s", path)
	}

	ds, err := model.Validate(data)
	if err != nil {
		return model.Dataset{}, errors.Wrapf(err, "decode document %s", path)
	}
	return ds, nil
}

// ReadRaw returns the document bytes unparsed.
func ReadRaw(path string) ([]byte, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read document %s", path)
	}
	return data, nil
}

// Save writes ds to path as 2-space indented JSON with a trailing newline,
// replacing the previous file atomically.
func Save(path string, ds model.Dataset) error {
	ds.Normalize()
	return WriteJSON(path, ds)
}

// Encode renders v the way every file in the data directory is written.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, errors.Wrap(err, "encode json")
	}
	return buf.Bytes(), nil
}

// WriteJSON encodes v and writes it atomically to path, creating parent
// directories as needed.
func WriteJSON(path string, v any) error {
	data, err := Encode(v)
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, data, 0o644)
}

// WriteFileAtomic writes data to a temp file next to path and renames it
// into place, so readers see either the old or the new content.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	if path == "" {
		return ErrEmptyPath
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create directory %s", dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "write temp file")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "sync temp file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temp file")
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return errors.Wrap(err, "chmod temp file")
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errors.Wrapf(err, "replace %s", path)
	}
	return nil
}

// SummaryPath is where the summary of an import from source is written.
func SummaryPath(dir, source string) string {
	return filepath.Join(dir, source+".json")
}
