package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Persister handles durable whole-document reads and writes for the Store.
type Persister interface {
	// Save overwrites the entire backing document.  Readers must never
	// observe a partially written document.
	Save(doc Document) error

	// Load reads the backing document.  The second result is false when no
	// document exists yet (first run), which is not an error.
	Load() (Document, bool, error)
}

// FilePersister stores the document as a single JSON file, written via a
// temp file and an atomic rename so a crash leaves either the old document
// or the new one, never a torn write.
type FilePersister struct {
	path string
	mu   sync.Mutex
}

func NewFilePersister(path string) *FilePersister {
	return &FilePersister{path: path}
}

func (p *FilePersister) Save(doc Document) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if dir := filepath.Dir(p.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir document dir: %w", err)
		}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp document: %w", err)
	}
	if err := os.Rename(tmp, p.path); err != nil {
		return fmt.Errorf("rename document: %w", err)
	}
	return nil
}

func (p *FilePersister) Load() (Document, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := os.ReadFile(p.path)
	if os.IsNotExist(err) {
		return NewDocument(), false, nil
	}
	if err != nil {
		return NewDocument(), false, fmt.Errorf("read document: %w", err)
	}

	doc := NewDocument()
	if err := json.Unmarshal(data, &doc); err != nil {
		return NewDocument(), false, fmt.Errorf("decode document: %w", err)
	}
	doc.normalize()
	return doc, true, nil
}
