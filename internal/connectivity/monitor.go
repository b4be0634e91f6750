// Package connectivity tracks whether the device currently has network
// access and notifies observers on transitions. The monitor does not
// probe the network itself; the platform layer feeds it state changes.
package connectivity

import (
	"log/slog"
	"sort"
	"sync"
)

// Monitor holds the current connectivity state. Observers registered with
// OnChange are invoked on every transition, synchronously and in
// registration order, under no lock of their own making.
type Monitor struct {
	mu        sync.Mutex
	online    bool
	nextID    int
	observers map[int]func(online bool)
	log       *slog.Logger
}

// New creates a monitor with the given initial state.
func New(online bool, log *slog.Logger) *Monitor {
	if log == nil {
		log = slog.Default()
	}
	return &Monitor{
		online:    online,
		observers: map[int]func(online bool){},
		log:       log,
	}
}

// Online reports the current connectivity state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// SetOnline records a state change. Observers fire only on an actual
// transition; repeated reports of the same state are ignored.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	ids := make([]int, 0, len(m.observers))
	for id := range m.observers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	obs := make([]func(bool), 0, len(ids))
	for _, id := range ids {
		obs = append(obs, m.observers[id])
	}
	m.mu.Unlock()

	m.log.Info("connectivity changed", "online", online)
	for _, fn := range obs {
		fn(online)
	}
}

// OnChange registers an observer and returns a function that removes it.
func (m *Monitor) OnChange(fn func(online bool)) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.observers[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.observers, id)
	}
}
