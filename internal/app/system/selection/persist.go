// internal/app/system/selection/persist.go
package selection

import (
	"sync"

	"github.com/gorilla/sessions"
)

// Keys under which the selection is persisted.
const (
	KeySchoolCode = "selected_school_code"
	KeyYearID     = "selected_academic_year_id"
)

// Persister stores the selection between runs or requests.
type Persister interface {
	Get(key string) string
	Set(key, value string) error
}

// MemoryPersister keeps values in a map.
type MemoryPersister struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryPersister returns a persister seeded with initial.
func NewMemoryPersister(initial map[string]string) *MemoryPersister {
	m := &MemoryPersister{values: map[string]string{}}
	for k, v := range initial {
		m.values[k] = v
	}
	return m
}

func (m *MemoryPersister) Get(key string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.values[key]
}

func (m *MemoryPersister) Set(key, value string) error {
	m.mu.Lock()
	m.values[key] = value
	m.mu.Unlock()
	return nil
}

// SessionPersister reads and writes selection keys in a gorilla session.
// The caller saves the session once the request is done.
type SessionPersister struct {
	Session *sessions.Session
}

func (p SessionPersister) Get(key string) string {
	s, _ := p.Session.Values[key].(string)
	return s
}

func (p SessionPersister) Set(key, value string) error {
	if value == "" {
		delete(p.Session.Values, key)
		return nil
	}
	p.Session.Values[key] = value
	return nil
}
