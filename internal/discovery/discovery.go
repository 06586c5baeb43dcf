// Package discovery publishes and reads the dev server discovery record.
//
// The record is a small JSON file under .devrelay/ that tells proxy
// handlers where the dev server currently lives. The supervisor writes it
// once the server is healthy and removes it on shutdown. Proxy handlers
// re-read it per request, so restarts with new ports are picked up
// without re-wiring anything.
//
// Writes go to a temp file in the same directory followed by a rename, so
// a concurrent reader sees either the previous record or the new one,
// never a partial write.
package discovery

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Record is the persisted discovery record for a running dev server.
type Record struct {
	// HTTPBaseURL is the dev server's main HTTP endpoint, e.g.
	// "http://127.0.0.1:5173".
	HTTPBaseURL string `json:"http_base_url"`

	// HMRBaseURL is the HMR websocket endpoint when it differs from the
	// main one. Empty means HMR shares HTTPBaseURL.
	HMRBaseURL string `json:"hmr_base_url,omitempty"`

	// PID is the dev server's process ID, used for stale-record detection.
	PID int `json:"pid"`

	// InstanceID uniquely identifies one dev server launch.
	InstanceID string `json:"instance_id"`

	// StartedAt is when the dev server became ready.
	StartedAt time.Time `json:"started_at"`
}

// Target is the resolved pair of upstream endpoints proxy handlers dial.
type Target struct {
	// HTTPBaseURL is the endpoint for plain HTTP traffic.
	HTTPBaseURL string

	// HMRBaseURL is the endpoint for HMR websocket traffic. Always
	// non-empty; it falls back to HTTPBaseURL.
	HMRBaseURL string
}

// NewRecord creates a record for a freshly started dev server.
//
// Parameters:
//   - httpBaseURL: The main endpoint
//   - hmrBaseURL: The HMR endpoint, empty if shared
//   - pid: The dev server process ID
//
// Returns:
//   - *Record: A record with a fresh instance ID and start time
func NewRecord(httpBaseURL, hmrBaseURL string, pid int) *Record {
	return &Record{
		HTTPBaseURL: httpBaseURL,
		HMRBaseURL:  hmrBaseURL,
		PID:         pid,
		InstanceID:  uuid.NewString(),
		StartedAt:   time.Now().UTC(),
	}
}

// Target resolves the record into concrete proxy endpoints.
func (r *Record) Target() Target {
	hmr := r.HMRBaseURL
	if hmr == "" {
		hmr = r.HTTPBaseURL
	}
	return Target{HTTPBaseURL: r.HTTPBaseURL, HMRBaseURL: hmr}
}

// Uptime returns how long the dev server has been ready.
func (r *Record) Uptime() time.Duration {
	return time.Since(r.StartedAt)
}

// Write publishes a record atomically.
//
// Parameters:
//   - path: The record file path
//   - rec: The record to publish
//
// Returns:
//   - error: Any error that occurred
func Write(path string, rec *Record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create discovery directory: %w", err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal discovery record: %w", err)
	}

	// Temp file in the same directory so the rename stays on one filesystem.
	tmp := path + ".tmp." + uuid.NewString()[:8]
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write discovery record: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to publish discovery record: %w", err)
	}

	return nil
}

// Read loads the current record.
//
// A missing file is the normal "dev server not ready" condition and
// returns (nil, nil). A present but unreadable record returns an error.
//
// Parameters:
//   - path: The record file path
//
// Returns:
//   - *Record: The record, or nil if absent
//   - error: Any error reading or parsing a present record
func Read(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read discovery record: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse discovery record: %w", err)
	}
	if rec.HTTPBaseURL == "" {
		return nil, fmt.Errorf("discovery record at %s has no http_base_url", path)
	}

	return &rec, nil
}

// Clear removes the record. Safe to call when no record exists.
//
// Parameters:
//   - path: The record file path
//
// Returns:
//   - error: Any error other than the record already being gone
func Clear(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove discovery record: %w", err)
	}
	return nil
}
