// Package kv is the client's durable key/value substrate. Both implementations
// enforce a byte quota over stored values so callers can degrade gracefully
// when local storage fills up.
package kv

import "errors"

var (
	// ErrNotFound is returned by Get for an absent key.
	ErrNotFound = errors.New("kv: key not found")
	// ErrQuotaExceeded is returned by Set when the write would exceed the quota.
	ErrQuotaExceeded = errors.New("kv: quota exceeded")
)

// Store is a synchronous key/value store with a byte quota.
type Store interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Remove(key string) error
	// Update replaces key's value with fn's result in one critical section,
	// shared with every other writer of the same store (including other
	// processes for SQLite). fn gets nil for an absent key; returning nil
	// removes the key. fn must not call back into the store.
	Update(key string, fn UpdateFunc) error
}

// UpdateFunc computes a new value from the current one.
type UpdateFunc func(old []byte) ([]byte, error)

// DefaultQuota mirrors the ~5 MB browsers grant to local storage.
const DefaultQuota int64 = 5 << 20

// fits reports whether replacing a value of oldSize with newSize stays within quota.
// A quota <= 0 means unlimited.
func fits(quota, used, oldSize, newSize int64) bool {
	if quota <= 0 {
		return true
	}
	return used-oldSize+newSize <= quota
}
