/*
File: history.go
Version: 1.0.0
Description: Newest-first log of blocked navigations, persisted to a JSON state file.
*/

package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

const historyURLLimit = 100

type HistoryEntry struct {
	ID             string      `json:"id"`
	URL            string      `json:"url"`
	Domain         string      `json:"domain,omitempty"`
	ThreatType     ThreatClass `json:"threatType"`
	PredictedClass ThreatClass `json:"predictedClass"`
	Score          int         `json:"score"`
	Confidence     float64     `json:"confidence"`
	Timestamp      time.Time   `json:"timestamp"`
}

// historyState is the on-disk format.
type historyState struct {
	Entries []HistoryEntry `json:"entries"`
	SavedAt time.Time      `json:"saved_at"`
}

type BlockHistory struct {
	mu        sync.RWMutex
	entries   []HistoryEntry
	limit     int
	stateFile string
	dirty     bool
}

func NewBlockHistory(limit int, stateFile string) *BlockHistory {
	return &BlockHistory{limit: limit, stateFile: stateFile}
}

// Record prepends an entry for a blocked URL and trims to the limit.
func (h *BlockHistory) Record(rawURL string, v Verdict) HistoryEntry {
	entry := HistoryEntry{
		ID:             uuid.NewString(),
		URL:            truncate(rawURL, historyURLLimit),
		Domain:         registrableDomain(hostnameOf(rawURL)),
		ThreatType:     v.ThreatType,
		PredictedClass: v.PredictedClass,
		Score:          v.Score,
		Confidence:     v.Confidence,
		Timestamp:      time.Now().UTC(),
	}

	h.mu.Lock()
	h.entries = append([]HistoryEntry{entry}, h.entries...)
	if h.limit > 0 && len(h.entries) > h.limit {
		h.entries = h.entries[:h.limit]
	}
	h.dirty = true
	h.mu.Unlock()
	return entry
}

func (h *BlockHistory) Entries() []HistoryEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]HistoryEntry, len(h.entries))
	copy(out, h.entries)
	return out
}

func (h *BlockHistory) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

func (h *BlockHistory) Reset() {
	h.mu.Lock()
	h.entries = nil
	h.dirty = true
	h.mu.Unlock()
}

// Load warms the history from the state file. A missing file is not an error.
func (h *BlockHistory) Load() error {
	if h.stateFile == "" {
		return nil
	}
	data, err := os.ReadFile(h.stateFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var state historyState
	if err := json.Unmarshal(data, &state); err != nil {
		return err
	}

	h.mu.Lock()
	h.entries = state.Entries
	if h.limit > 0 && len(h.entries) > h.limit {
		h.entries = h.entries[:h.limit]
	}
	h.mu.Unlock()
	return nil
}

// Save writes the state file atomically, skipping the write when nothing changed.
func (h *BlockHistory) Save() error {
	if h.stateFile == "" {
		return nil
	}
	h.mu.Lock()
	if !h.dirty {
		h.mu.Unlock()
		return nil
	}
	state := historyState{Entries: append([]HistoryEntry(nil), h.entries...), SavedAt: time.Now().UTC()}
	h.dirty = false
	h.mu.Unlock()

	if err := h.writeState(state); err != nil {
		h.mu.Lock()
		h.dirty = true
		h.mu.Unlock()
		return err
	}
	return nil
}

func (h *BlockHistory) writeState(state historyState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(h.stateFile), ".history-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), h.stateFile); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}

// StartPersistence saves on every tick and once more on shutdown.
func (h *BlockHistory) StartPersistence(ctx context.Context, interval time.Duration) {
	if h.stateFile == "" {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := h.Save(); err != nil {
				LogWarn("[HISTORY] Failed to save state to %s: %v", h.stateFile, err)
			}
		case <-ctx.Done():
			LogInfo("[HISTORY] Saving state on shutdown...")
			if err := h.Save(); err != nil {
				LogWarn("[HISTORY] Failed to save state to %s: %v", h.stateFile, err)
			}
			return
		}
	}
}
