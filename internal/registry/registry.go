// Package registry keeps a per-instance record of which filenames were
// ingested into which knowledge base.
package registry

import "sync"

// Registry records ingested filenames per knowledge base.
type Registry interface {
	Record(kbName, filename string)
	Files(kbName string) []string
	Forget(kbName string)
}

// InMemory is a Registry backed by a map. Entries are append-only and keep
// duplicates.
type InMemory struct {
	mu      sync.Mutex
	entries map[string][]string
}

func NewInMemory() *InMemory {
	return &InMemory{entries: make(map[string][]string)}
}

func (r *InMemory) Record(kbName, filename string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[kbName] = append(r.entries[kbName], filename)
}

// Files returns a copy of the entry for kbName.
func (r *InMemory) Files(kbName string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	files := r.entries[kbName]
	out := make([]string, len(files))
	copy(out, files)
	return out
}

func (r *InMemory) Forget(kbName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, kbName)
}
