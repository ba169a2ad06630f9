// Package prefs persists small client preferences in a JSON file so
// that they survive a restart.
package prefs

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"sync"
)

type values struct {
	SelectedCollectionID int64 `json:"selectedCollectionId"`
}

// Prefs is a durable key store for client preferences. Every setter
// flushes to disk immediately.
type Prefs struct {
	fileName string

	mu     sync.Mutex
	values values
}

// New loads the preferences from fileName, starting empty when the file
// does not exist yet.
func New(fileName string) (*Prefs, error) {
	p := &Prefs{fileName: fileName}

	data, err := os.ReadFile(fileName)
	if errors.Is(err, fs.ErrNotExist) {
		return p, nil
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(data, &p.values); err != nil {
		return nil, err
	}

	return p, nil
}

// SelectedCollectionID returns the remembered collection choice, if any.
func (p *Prefs) SelectedCollectionID() (int64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.values.SelectedCollectionID, p.values.SelectedCollectionID != 0
}

// SetSelectedCollectionID remembers the collection choice across restarts.
func (p *Prefs) SetSelectedCollectionID(collectionID int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.values.SelectedCollectionID = collectionID

	return p.flush()
}

// ClearSelectedCollectionID forgets the remembered choice.
func (p *Prefs) ClearSelectedCollectionID() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.values.SelectedCollectionID = 0

	return p.flush()
}

func (p *Prefs) flush() error {
	data, err := json.MarshalIndent(p.values, "", "\t")
	if err != nil {
		return err
	}

	return os.WriteFile(p.fileName, data, 0o644)
}
