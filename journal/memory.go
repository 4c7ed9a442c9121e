package journal

import "sync"

// MemoryRecorder keeps events in memory, for tests and inspection.
type MemoryRecorder struct {
	mu     sync.Mutex
	events []*Event
}

func NewMemoryRecorder() *MemoryRecorder { return &MemoryRecorder{} }

func (m *MemoryRecorder) Record(evt *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
	return nil
}

// Events returns a copy of everything recorded so far, in order.
func (m *MemoryRecorder) Events() []*Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Event, len(m.events))
	copy(out, m.events)
	return out
}

func (m *MemoryRecorder) Close() error { return nil }
