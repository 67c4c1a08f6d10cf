package core

import (
	"fmt"
	"sort"
	"sync"

	"vivariumcore/pkg/domain"
)

// ConfigurationStore caches configuration records by key. Readers share the lock; every
// mutation is exclusive.
type ConfigurationStore struct {
	mu      sync.RWMutex
	entries map[string]domain.Configuration
	logger  Logger
}

// NewConfigurationStore constructs an empty store. A nil logger discards output.
func NewConfigurationStore(logger Logger) *ConfigurationStore {
	if logger == nil {
		logger = noopLogger{}
	}
	return &ConfigurationStore{entries: make(map[string]domain.Configuration), logger: logger}
}

// Store saves cfg under key, replacing any previous value.
func (s *ConfigurationStore) Store(key string, cfg domain.Configuration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = cfg
}

// Retrieve returns the configuration stored under key.
func (s *ConfigurationStore) Retrieve(key string) (domain.Configuration, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.entries[key]
	return cfg, ok
}

// RetrieveAs returns the configuration under key as T. A value of another type is reported
// as missing.
func RetrieveAs[T domain.Configuration](s *ConfigurationStore, key string) (T, bool) {
	var zero T
	cfg, ok := s.Retrieve(key)
	if !ok {
		return zero, false
	}
	typed, ok := cfg.(T)
	if !ok {
		s.logger.Debug("configuration type mismatch", "key", key, "stored", fmt.Sprintf("%T", cfg), "requested", fmt.Sprintf("%T", zero))
		return zero, false
	}
	return typed, true
}

// Remove deletes key. It reports whether a value was present.
func (s *ConfigurationStore) Remove(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[key]
	delete(s.entries, key)
	return ok
}

// ClearAll drops every entry.
func (s *ConfigurationStore) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]domain.Configuration)
}

// AllKeys returns the stored keys in sorted order.
func (s *ConfigurationStore) AllKeys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
