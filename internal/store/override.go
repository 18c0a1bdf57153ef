package store

import (
	"encoding/json"
	"io/fs"
	"os"

	"github.com/pkg/errors"

	"github.com/yanivmizrachiy/luztedi/internal/model"
)

// Override is the single local working copy that shadows the committed
// document while someone edits interactively. It is either present or not.
type Override struct {
	path string
}

// NewOverride returns the override slot stored at path.
func NewOverride(path string) *Override {
	return &Override{path: path}
}

// Path of the slot on disk.
func (o *Override) Path() string { return o.path }

// Load returns the stored dataset and whether one exists.
func (o *Override) Load() (model.Dataset, bool, error) {
	if o.path == "" {
		return model.Dataset{}, false, ErrEmptyPath
	}
	data, err := os.ReadFile(o.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return model.Dataset{}, false, nil
		}
		return model.Dataset{}, false, errors.Wrap(err, "read override")
	}
	var ds model.Dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return model.Dataset{}, false, errors.Wrap(err, "decode override")
	}
	ds.Normalize()
	return ds, true, nil
}

// Save stores ds in the slot, replacing whatever was there.
func (o *Override) Save(ds model.Dataset) error {
	if o.path == "" {
		return ErrEmptyPath
	}
	return Save(o.path, ds)
}

// Clear empties the slot. Clearing an empty slot is not an error.
func (o *Override) Clear() error {
	if o.path == "" {
		return ErrEmptyPath
	}
	if err := os.Remove(o.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errors.Wrap(err, "remove override")
	}
	return nil
}

// Effective returns the override when one is stored, otherwise base. The
// boolean reports whether the override was applied.
func (o *Override) Effective(base model.Dataset) (model.Dataset, bool, error) {
	ds, ok, err := o.Load()
	if err != nil {
		return model.Dataset{}, false, err
	}
	if !ok {
		return base, false, nil
	}
	return ds, true, nil
}
