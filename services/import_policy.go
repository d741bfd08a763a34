package services

import (
	"errors"
	"fmt"
	"time"
)

// Import limits enforced before any processing begins.
const (
	MaxImportFileSize = 300 * 1024 * 1024 // bytes
	MaxImportRows     = 500_000           // hard refusal above this
	AutoConservative  = 150_000           // escalate to conservative above this
)

var ErrTooManyRows = errors.New("file exceeds the maximum row count")

// ImportProfile fixes the pacing knobs of one run: how many rows the
// reader pulls per window, how many records each write batch carries,
// and how long the writer waits between batches.
type ImportProfile struct {
	Name       string        `json:"name"`
	ChunkSize  int           `json:"chunk_size"`
	BatchSize  int           `json:"batch_size"`
	BatchDelay time.Duration `json:"batch_delay"`
}

var importProfiles = map[string]ImportProfile{
	"conservative": {Name: "conservative", ChunkSize: 500, BatchSize: 100, BatchDelay: 500 * time.Millisecond},
	"balanced":     {Name: "balanced", ChunkSize: 2000, BatchSize: 500, BatchDelay: 200 * time.Millisecond},
	"fast":         {Name: "fast", ChunkSize: 5000, BatchSize: 1000, BatchDelay: 50 * time.Millisecond},
}

// ProfileByName looks up a named profile.
func ProfileByName(name string) (ImportProfile, bool) {
	p, ok := importProfiles[name]
	return p, ok
}

// SelectProfile picks the effective profile for a run. An explicit name
// is honored unless the estimated row count forces conservative pacing;
// above the hard maximum the file is refused outright. Estimating at or
// exactly on the maximum is still accepted.
func SelectProfile(name string, estimatedRows int) (ImportProfile, error) {
	if estimatedRows > MaxImportRows {
		return ImportProfile{}, fmt.Errorf("%w (%d rows, limit %d)", ErrTooManyRows, estimatedRows, MaxImportRows)
	}

	profile, ok := importProfiles["balanced"]
	if name != "" {
		profile, ok = importProfiles[name]
		if !ok {
			return ImportProfile{}, fmt.Errorf("unknown import profile %q", name)
		}
	}
	if estimatedRows > AutoConservative {
		return importProfiles["conservative"], nil
	}
	return profile, nil
}
