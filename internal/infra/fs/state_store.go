package fs

// File-backed watcher state. The watermark and dedupe set used to live only
// in process memory, which meant a restart could pay the same winner twice.
// State is now snapshotted to data_out/watch_state.json keyed by subject id
// and reloaded at startup.

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const dataDir = "data_out"

// SubjectState is the persisted slice of a subject's qualification state.
type SubjectState struct {
	LastSeenBlockTime int64            `json:"lastSeenBlockTime"`
	LastQualifier     string           `json:"lastQualifier,omitempty"`
	Processed         map[string]int64 `json:"processed,omitempty"` // dedupe key -> unix seconds
}

type WatchStateFile struct {
	Subjects map[string]SubjectState `json:"subjects"`
}

func ensureDataDir() error {
	return os.MkdirAll(dataDir, 0755)
}

func statePath(filename string) string {
	return filepath.Join(dataDir, filename)
}

// LoadWatchState reads the snapshot, returning an empty state when the file
// does not exist yet.
func LoadWatchState(filename string) (*WatchStateFile, error) {
	data, err := os.ReadFile(statePath(filename))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &WatchStateFile{Subjects: map[string]SubjectState{}}, nil
		}
		return nil, fmt.Errorf("failed to read watch state file: %w", err)
	}

	var state WatchStateFile
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal watch state: %w", err)
	}
	if state.Subjects == nil {
		state.Subjects = map[string]SubjectState{}
	}
	return &state, nil
}

func SaveWatchState(filename string, state *WatchStateFile) error {
	if err := ensureDataDir(); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	jsonData, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal watch state: %w", err)
	}

	if err := os.WriteFile(statePath(filename), jsonData, 0644); err != nil {
		return fmt.Errorf("failed to save watch state: %w", err)
	}
	return nil
}
