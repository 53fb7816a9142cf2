// Package history persists a capped, newest-first record of past scans.
package history

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// Entry is one persisted scan record.
type Entry struct {
	Timestamp   string   `json:"timestamp"` // ISO-8601
	ScanType    string   `json:"scan_type"`
	Targets     []string `json:"targets"`
	Principal   string   `json:"principal"`
	ResultCount int      `json:"result_count"`
}

// Manager reads and writes the JSON history artifact. Load failures degrade
// to an empty history; history is convenience data, never worth failing a
// scan over.
type Manager struct {
	file       string
	maxEntries int
}

func NewManager(storageDir string, maxEntries int) *Manager {
	if err := os.MkdirAll(storageDir, 0o755); err != nil {
		log.Printf("cannot create storage directory %s: %v", storageDir, err)
	}
	return &Manager{
		file:       filepath.Join(storageDir, "scan_history.json"),
		maxEntries: maxEntries,
	}
}

// Add prepends a new scan record and rewrites the artifact, dropping the
// oldest entries beyond the cap.
func (m *Manager) Add(scanType string, targets []string, principal string, resultCount int) error {
	entries := m.load()
	entry := Entry{
		Timestamp:   time.Now().Format(time.RFC3339),
		ScanType:    scanType,
		Targets:     append([]string(nil), targets...),
		Principal:   principal,
		ResultCount: resultCount,
	}
	entries = append([]Entry{entry}, entries...)
	if len(entries) > m.maxEntries {
		entries = entries[:m.maxEntries]
	}
	return m.save(entries)
}

// Entries returns the stored history, most recent first.
func (m *Manager) Entries() []Entry {
	return m.load()
}

// Clear removes the history artifact. Safe when it does not exist.
func (m *Manager) Clear() error {
	err := os.Remove(m.file)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clearing history: %w", err)
	}
	return nil
}

func (m *Manager) load() []Entry {
	data, err := os.ReadFile(m.file)
	if err != nil {
		return nil
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		log.Printf("invalid history format in %s: %v", m.file, err)
		return nil
	}
	return entries
}

func (m *Manager) save(entries []Entry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding history: %w", err)
	}
	if err := os.WriteFile(m.file, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("saving history: %w", err)
	}
	return nil
}
