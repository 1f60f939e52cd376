package cache

import (
	"context"
	"sync"
)

// MemorySlot is a process-local Slot used when no external store is configured.
type MemorySlot struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemorySlot() *MemorySlot {
	return &MemorySlot{data: make(map[string][]byte)}
}

func (m *MemorySlot) Load(_ context.Context, sessionID string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[slotKey(sessionID)]
	if !ok {
		return nil, ErrSlotEmpty
	}
	return append([]byte(nil), v...), nil
}

func (m *MemorySlot) Save(_ context.Context, sessionID string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[slotKey(sessionID)] = append([]byte(nil), payload...)
	return nil
}

func (m *MemorySlot) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, slotKey(sessionID))
	return nil
}
