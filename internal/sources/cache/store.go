package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// cacheFileExtension is the file extension used for cache entries.
const cacheFileExtension = ".json"

// Common cache errors.
var (
	ErrCacheNotFound   = errors.New("cache entry not found")
	ErrCacheExpired    = errors.New("cache entry expired")
	ErrInvalidCacheKey = errors.New("cache key cannot be empty")
	ErrCacheDisabled   = errors.New("cache is disabled")
)

// FileStore stores cache entries as JSON files in one directory.
// It is safe for concurrent use.
type FileStore struct {
	directory string
	enabled   bool
	ttl       time.Duration

	// now is a function that returns the current time (injectable for testing).
	now func() time.Time

	mu sync.RWMutex
}

// Option configures a FileStore.
type Option func(*FileStore)

// WithClock sets the function used to read the current time.
func WithClock(now func() time.Time) Option {
	return func(s *FileStore) { s.now = now }
}

// NewFileStore creates a store in directory, creating it if needed.
func NewFileStore(directory string, ttl time.Duration, opts ...Option) (*FileStore, error) {
	if directory == "" {
		return nil, errors.New("cache directory cannot be empty")
	}
	if ttl < MinTTL {
		return nil, fmt.Errorf("%w: got %s", ErrInvalidTTL, ttl)
	}

	if err := os.MkdirAll(directory, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	s := &FileStore{
		directory: directory,
		enabled:   true,
		ttl:       ttl,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Disabled returns a store whose operations all fail with ErrCacheDisabled.
func Disabled() *FileStore {
	return &FileStore{now: time.Now}
}

// Enabled reports whether the store is backed by a directory.
func (s *FileStore) Enabled() bool {
	return s != nil && s.enabled
}

// Get retrieves a cache entry by key.
// Returns ErrCacheNotFound if the entry doesn't exist and ErrCacheExpired if it
// has expired; expired entries are removed.
func (s *FileStore) Get(key string) (*Entry, error) {
	if !s.Enabled() {
		return nil, ErrCacheDisabled
	}
	if key == "" {
		return nil, ErrInvalidCacheKey
	}

	s.mu.RLock()
	filePath := s.keyToFilePath(key)
	data, err := os.ReadFile(filePath)
	s.mu.RUnlock()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrCacheNotFound
		}
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}

	var entry Entry
	if unmarshalErr := json.Unmarshal(data, &entry); unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal cache entry: %w", unmarshalErr)
	}

	if entry.IsExpired(s.now()) {
		s.mu.Lock()
		_ = os.Remove(filePath)
		s.mu.Unlock()
		return nil, ErrCacheExpired
	}

	return &entry, nil
}

// GetJSON retrieves the entry for key and decodes its data into out.
func (s *FileStore) GetJSON(key string, out any) error {
	entry, err := s.Get(key)
	if err != nil {
		return err
	}
	if err = entry.Decode(out); err != nil {
		return fmt.Errorf("failed to decode cache entry: %w", err)
	}
	return nil
}

// Set stores data under key, overwriting any existing entry.
func (s *FileStore) Set(key string, data json.RawMessage) error {
	if !s.Enabled() {
		return ErrCacheDisabled
	}
	if key == "" {
		return ErrInvalidCacheKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry := NewEntry(key, data, s.ttl, s.now())
	entryData, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	filePath := s.keyToFilePath(key)

	// Write to temporary file first, then rename for atomicity
	tempPath := filePath + ".tmp"
	if writeErr := os.WriteFile(tempPath, entryData, 0o600); writeErr != nil {
		return fmt.Errorf("failed to write cache file: %w", writeErr)
	}
	if renameErr := os.Rename(tempPath, filePath); renameErr != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename cache file: %w", renameErr)
	}

	return nil
}

// SetJSON encodes v and stores it under key.
func (s *FileStore) SetJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode cache value: %w", err)
	}
	return s.Set(key, data)
}

// Delete removes a cache entry by key. Missing entries are not an error.
func (s *FileStore) Delete(key string) error {
	if !s.Enabled() {
		return ErrCacheDisabled
	}
	if key == "" {
		return ErrInvalidCacheKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.keyToFilePath(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete cache file: %w", err)
	}
	return nil
}

// Clear removes all cache entries from the store.
func (s *FileStore) Clear() error {
	return s.removeWhere(func(string) bool { return true })
}

// CleanupExpired removes expired and unreadable entries.
func (s *FileStore) CleanupExpired() error {
	now := s.now()
	return s.removeWhere(func(filePath string) bool {
		data, err := os.ReadFile(filePath)
		if err != nil {
			return false
		}
		var entry Entry
		if err = json.Unmarshal(data, &entry); err != nil {
			return true
		}
		return entry.IsExpired(now)
	})
}

// Count returns the number of cache entries, including expired ones.
func (s *FileStore) Count() (int, error) {
	if !s.Enabled() {
		return 0, ErrCacheDisabled
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.directory)
	if err != nil {
		return 0, fmt.Errorf("failed to read cache directory: %w", err)
	}
	count := 0
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == cacheFileExtension {
			count++
		}
	}
	return count, nil
}

// Stats summarizes the entries of a store at one point in time.
type Stats struct {
	Entries    int
	Expired    int
	Unreadable int
	// Oldest is the age of the oldest readable entry.
	Oldest time.Duration
}

// Stats reads every entry and reports counts and the age of the oldest one.
func (s *FileStore) Stats() (Stats, error) {
	if !s.Enabled() {
		return Stats{}, ErrCacheDisabled
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	dirEntries, err := os.ReadDir(s.directory)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to read cache directory: %w", err)
	}

	now := s.now()
	var st Stats
	for _, dirEntry := range dirEntries {
		if dirEntry.IsDir() || filepath.Ext(dirEntry.Name()) != cacheFileExtension {
			continue
		}
		st.Entries++

		data, readErr := os.ReadFile(filepath.Join(s.directory, dirEntry.Name()))
		var entry Entry
		if readErr != nil || json.Unmarshal(data, &entry) != nil {
			st.Unreadable++
			continue
		}
		if entry.IsExpired(now) {
			st.Expired++
		}
		st.Oldest = max(st.Oldest, entry.Age(now))
	}
	return st, nil
}

// Directory returns the cache directory path.
func (s *FileStore) Directory() string {
	return s.directory
}

// TTL returns the entry time-to-live.
func (s *FileStore) TTL() time.Duration {
	return s.ttl
}

func (s *FileStore) removeWhere(match func(filePath string) bool) error {
	if !s.Enabled() {
		return ErrCacheDisabled
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.directory)
	if err != nil {
		return fmt.Errorf("failed to read cache directory: %w", err)
	}

	for _, dirEntry := range entries {
		if dirEntry.IsDir() || filepath.Ext(dirEntry.Name()) != cacheFileExtension {
			continue
		}
		filePath := filepath.Join(s.directory, dirEntry.Name())
		if !match(filePath) {
			continue
		}
		if removeErr := os.Remove(filePath); removeErr != nil && !os.IsNotExist(removeErr) {
			return fmt.Errorf("failed to remove cache file %s: %w", dirEntry.Name(), removeErr)
		}
	}
	return nil
}

// keyToFilePath converts a key to a file path. Keys from Key are hex, so
// only separators need replacing for caller-chosen keys.
func (s *FileStore) keyToFilePath(key string) string {
	safe := []byte(key)
	for i, c := range safe {
		if c == '/' || c == '\\' || c == ':' {
			safe[i] = '_'
		}
	}
	return filepath.Join(s.directory, string(safe)+cacheFileExtension)
}
