package host

import (
	"sync"

	"github.com/robmorgan/orbit/atom"
)

// URIDMap is an in-memory URI registry safe for concurrent use.
type URIDMap struct {
	mu   sync.RWMutex
	ids  map[string]atom.URID
	uris []string
}

func NewURIDMap() *URIDMap {
	return &URIDMap{
		ids:  make(map[string]atom.URID),
		uris: []string{""},
	}
}

// Map returns the URID of uri, assigning the next free one on first use.
// The empty URI maps to 0.
func (m *URIDMap) Map(uri string) atom.URID {
	if uri == "" {
		return 0
	}

	m.mu.RLock()
	id, found := m.ids[uri]
	m.mu.RUnlock()
	if found {
		return id
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if id, found := m.ids[uri]; found {
		return id
	}
	id = atom.URID(len(m.uris))
	m.ids[uri] = id
	m.uris = append(m.uris, uri)
	return id
}

// Unmap returns the URI of id, or "" if id was never assigned.
func (m *URIDMap) Unmap(id atom.URID) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if int(id) >= len(m.uris) {
		return ""
	}
	return m.uris[id]
}

// Count returns the number of mapped URIs.
func (m *URIDMap) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.uris) - 1
}
