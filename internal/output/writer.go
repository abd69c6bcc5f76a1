package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// checkpointSuffix is appended to the output path for in-progress saves.
const checkpointSuffix = ".tmp"

// Write serializes the collection and writes it atomically: the document
// lands in a temporary file first and is renamed into place, so an
// interrupted run never leaves a truncated output file.
func Write(path string, col *Collection) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	data, err := json.MarshalIndent(col, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal collection: %w", err)
	}

	tmpPath := path + checkpointSuffix
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to finalize %s: %w", path, err)
	}
	return nil
}

// Checkpoint writes the partial collection to the checkpoint path next to
// the final output. The final output file itself is never touched.
func Checkpoint(path string, col *Collection) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	data, err := json.MarshalIndent(col, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	if err := os.WriteFile(path+checkpointSuffix, data, 0644); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	return nil
}

// RemoveCheckpoint deletes a leftover checkpoint file, if any.
func RemoveCheckpoint(path string) error {
	err := os.Remove(path + checkpointSuffix)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove checkpoint: %w", err)
	}
	return nil
}

// Load reads a collection document back from disk.
func Load(path string) (*Collection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read collection %s: %w", path, err)
	}

	var col Collection
	if err := json.Unmarshal(data, &col); err != nil {
		return nil, fmt.Errorf("failed to parse collection %s: %w", path, err)
	}
	return &col, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}
	return nil
}
