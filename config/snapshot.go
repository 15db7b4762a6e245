package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Snapshot is the persisted form of Settings. It carries the version of the
// pipeline that produced it so a later run can reproduce the same processing.
type Snapshot struct {
	Settings
	Version string `json:"version"`
}

// NewSnapshot wraps s with the current pipeline version
func NewSnapshot(s Settings) Snapshot {
	return Snapshot{Settings: s, Version: Version}
}

// ParseSnapshot decodes a snapshot from either a previous run's result
// document (using its "settings" object) or a bare settings object.
func ParseSnapshot(data []byte) (Snapshot, error) {
	var envelope struct {
		Settings json.RawMessage `json:"settings"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return Snapshot{}, fmt.Errorf("%w: failed to parse settings snapshot: %v", ErrInvalidSettings, err)
	}

	payload := data
	if len(envelope.Settings) > 0 && !bytes.Equal(envelope.Settings, []byte("null")) {
		payload = envelope.Settings
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()

	var snap Snapshot
	if err := dec.Decode(&snap); err != nil {
		return Snapshot{}, fmt.Errorf("%w: failed to decode settings snapshot: %v", ErrInvalidSettings, err)
	}
	if err := snap.Settings.Validate(); err != nil {
		return Snapshot{}, fmt.Errorf("settings snapshot: %w", err)
	}

	return snap, nil
}

// LoadSnapshot reads and validates the snapshot stored at path
func LoadSnapshot(path string) (Snapshot, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read settings snapshot: %w", err)
	}
	return ParseSnapshot(data)
}

// SaveSnapshot writes the snapshot of s to path as indented JSON
func SaveSnapshot(path string, s Settings) error {
	payload, err := json.MarshalIndent(NewSnapshot(s), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Clean(path), append(payload, '\n'), 0o644)
}
