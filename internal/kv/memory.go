package kv

import "sync"

// Memory is an in-process Store. It is used in tests and as the degraded
// fallback when no state directory is available.
type Memory struct {
	mu    sync.Mutex
	data  map[string][]byte
	used  int64
	quota int64
}

// NewMemory creates an empty Memory store with the given quota in bytes.
func NewMemory(quota int64) *Memory {
	return &Memory{data: make(map[string][]byte), quota: quota}
}

func (m *Memory) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *Memory) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	old := int64(len(m.data[key]))
	if !fits(m.quota, m.used, old, int64(len(value))) {
		return ErrQuotaExceeded
	}
	m.data[key] = append([]byte(nil), value...)
	m.used += int64(len(value)) - old
	return nil
}

func (m *Memory) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.used -= int64(len(m.data[key]))
	delete(m.data, key)
	return nil
}

func (m *Memory) Update(key string, fn UpdateFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.data[key]
	var old []byte
	if ok {
		old = make([]byte, len(cur))
		copy(old, cur)
	}
	next, err := fn(old)
	if err != nil {
		return err
	}
	if next == nil {
		m.used -= int64(len(cur))
		delete(m.data, key)
		return nil
	}
	if !fits(m.quota, m.used, int64(len(cur)), int64(len(next))) {
		return ErrQuotaExceeded
	}
	m.data[key] = append([]byte(nil), next...)
	m.used += int64(len(next)) - int64(len(cur))
	return nil
}
