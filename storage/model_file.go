package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"zeitprognose/models"
	"zeitprognose/regressor"
)

// SaveBundle writes the bundle as JSON. The file is written next to path and
// renamed into place, so a failed save leaves the previous artifact intact.
func SaveBundle(path string, b regressor.Bundle) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("model: create dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".model-*.json")
	if err != nil {
		return fmt.Errorf("model: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	if err := enc.Encode(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("model: encode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("model: close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("model: replace %q: %w", path, err)
	}
	return nil
}

// LoadBundle reads a bundle written by SaveBundle. Any failure wraps
// models.ErrModelLoad.
func LoadBundle(path string) (regressor.Bundle, error) {
	var b regressor.Bundle
	raw, err := os.ReadFile(path)
	if err != nil {
		return b, fmt.Errorf("model: read %q: %v: %w", path, err, models.ErrModelLoad)
	}
	if err := json.Unmarshal(raw, &b); err != nil {
		return b, fmt.Errorf("model: decode %q: %v: %w", path, err, models.ErrModelLoad)
	}
	return b, nil
}
