package eval

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Action is the optimizer's decision for one evaluation.
type Action string

const (
	ActionKeep     Action = "keep"
	ActionUpdate   Action = "update"
	ActionRollback Action = "rollback"
)

// HistoryEntry is one appended record of the prompt-tuning log. Entries are
// never rewritten; rollback restores text by copying it from an old entry
// into a new one.
type HistoryEntry struct {
	Timestamp     string   `json:"timestamp"`
	Stage         string   `json:"stage"`
	Hash          string   `json:"hash"`
	Prompt        string   `json:"prompt"`
	Score         float64  `json:"score"`
	FailedMetrics []string `json:"failed_metrics,omitempty"`
	Action        Action   `json:"action"`
}

func newEntry(stage, hash, prompt string, score float64, failed []string, action Action) HistoryEntry {
	return HistoryEntry{
		Timestamp:     time.Now().UTC().Format(time.RFC3339Nano),
		Stage:         stage,
		Hash:          hash,
		Prompt:        prompt,
		Score:         score,
		FailedMetrics: failed,
		Action:        action,
	}
}

// History is the append-only prompt-tuning log.
type History interface {
	Append(e HistoryEntry) error
	// Last returns the most recent entry for a stage, or false when the
	// stage has no history yet.
	Last(stage string) (HistoryEntry, bool, error)
}

// MemoryHistory keeps the log in process, for tests and ephemeral runs.
type MemoryHistory struct {
	mu      sync.Mutex
	entries []HistoryEntry
}

func NewMemoryHistory() *MemoryHistory { return &MemoryHistory{} }

func (h *MemoryHistory) Append(e HistoryEntry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, e)
	return nil
}

func (h *MemoryHistory) Last(stage string) (HistoryEntry, bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := len(h.entries) - 1; i >= 0; i-- {
		if h.entries[i].Stage == stage {
			return h.entries[i], true, nil
		}
	}
	return HistoryEntry{}, false, nil
}

// Entries returns a copy of the full log.
func (h *MemoryHistory) Entries() []HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]HistoryEntry, len(h.entries))
	copy(out, h.entries)
	return out
}

// FileHistory appends JSON lines to a single log file. Concurrent appends
// are serialized by the mutex; the file is opened per append so an external
// log rotation never strands a handle.
type FileHistory struct {
	path string
	mu   sync.Mutex
}

func NewFileHistory(path string) *FileHistory { return &FileHistory{path: path} }

func (h *FileHistory) Append(e HistoryEntry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("eval: marshal history entry: %w", err)
	}
	f, err := os.OpenFile(h.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("eval: open history log: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(b, '\n')); err != nil {
		return fmt.Errorf("eval: append history entry: %w", err)
	}
	return nil
}

func (h *FileHistory) Last(stage string) (HistoryEntry, bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	f, err := os.Open(h.path)
	if err != nil {
		if os.IsNotExist(err) {
			return HistoryEntry{}, false, nil
		}
		return HistoryEntry{}, false, err
	}
	defer f.Close()

	var last HistoryEntry
	found := false
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		var e HistoryEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			continue // tolerate a torn trailing line
		}
		if e.Stage == stage {
			last = e
			found = true
		}
	}
	if err := sc.Err(); err != nil {
		return HistoryEntry{}, false, err
	}
	return last, found, nil
}
