package promptstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Dir is a Store backed by one text file per stage under a directory.
// Stages without a file fall back to the built-in defaults; Set always
// writes the file, so a tuned prompt survives restarts.
type Dir struct {
	root string
	mu   sync.Mutex
}

func NewDir(root string) (*Dir, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("promptstore: empty directory")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("promptstore: create %s: %w", root, err)
	}
	return &Dir{root: root}, nil
}

func (d *Dir) path(stage string) string {
	return filepath.Join(d.root, stage+".txt")
}

func (d *Dir) Get(stage string) (string, string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, err := os.ReadFile(d.path(stage))
	if err != nil {
		if os.IsNotExist(err) {
			text, ok := defaultPrompts[stage]
			if !ok {
				return "", "", fmt.Errorf("promptstore: unknown stage %q", stage)
			}
			return text, Hash(text), nil
		}
		return "", "", err
	}
	text := string(b)
	return text, Hash(text), nil
}

func (d *Dir) Set(stage, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	tmp := d.path(stage) + ".tmp"
	if err := os.WriteFile(tmp, []byte(text), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, d.path(stage))
}
