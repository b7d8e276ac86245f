// Package promptstore is a versioned key-value store for stage system
// prompts. The optimizer reads and writes prompts through this interface
// instead of rewriting source files, so prompt tuning survives in any
// deployment that can persist the backing store.
package promptstore

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
)

// Store resolves the current prompt text for a stage and accepts updates.
// Hash is the hex SHA-256 of the text, used by the optimizer to detect
// out-of-band edits.
type Store interface {
	Get(stage string) (text string, hash string, err error)
	Set(stage string, text string) error
}

// Hash returns the content hash used across the store implementations.
func Hash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Memory is an in-process Store seeded with the built-in default prompts.
type Memory struct {
	mu    sync.RWMutex
	texts map[string]string
}

func NewMemory() *Memory {
	texts := make(map[string]string, len(defaultPrompts))
	for stage, text := range defaultPrompts {
		texts[stage] = text
	}
	return &Memory{texts: texts}
}

func (m *Memory) Get(stage string) (string, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	text, ok := m.texts[stage]
	if !ok {
		return "", "", fmt.Errorf("promptstore: unknown stage %q", stage)
	}
	return text, Hash(text), nil
}

func (m *Memory) Set(stage, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts[stage] = text
	return nil
}
