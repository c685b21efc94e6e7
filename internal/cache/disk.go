package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"skim/internal/logger"
)

// diskEntry is the on-disk JSON representation of a cache entry. The logical
// key is stored in the file so hash collisions can be detected on read.
type diskEntry struct {
	Key       string    `json:"key"`
	Value     []byte    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
}

// Disk is a file-per-entry cache directory with a global TTL. Entries are
// keyed by a 16-hex-char prefix of the SHA-256 of the logical key. Corrupted
// files are deleted on read and treated as misses. Writes are atomic
// (write-then-rename) so concurrent readers never observe partial files.
type Disk struct {
	dir string
	ttl time.Duration
}

// NewDisk creates a disk cache rooted at dir with the given global TTL.
func NewDisk(dir string, ttl time.Duration) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &Disk{dir: dir, ttl: ttl}, nil
}

func (d *Disk) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(d.dir, hex.EncodeToString(sum[:])[:16]+".json")
}

// Get returns the value for key, or ok=false on a miss. An entry older than
// the TTL window, a hash collision (stored key differs), or a corrupted file
// all count as misses; corrupted and expired files are removed.
func (d *Disk) Get(key string) ([]byte, bool) {
	path := d.path(key)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	var entry diskEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		logger.Debug("Removing corrupted cache file", "path", path)
		_ = os.Remove(path)
		return nil, false
	}
	if entry.Key != key {
		// Hash collision; the file belongs to another logical key.
		return nil, false
	}
	if d.ttl > 0 && time.Since(entry.CreatedAt) > d.ttl {
		_ = os.Remove(path)
		return nil, false
	}
	return entry.Value, true
}

// Set stores value under key.
func (d *Disk) Set(key string, value []byte) error {
	entry := diskEntry{Key: key, Value: value, CreatedAt: time.Now().UTC()}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	path := d.path(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to rename cache file: %w", err)
	}
	return nil
}

// Delete removes key from the cache. Missing files are not an error.
func (d *Disk) Delete(key string) error {
	if err := os.Remove(d.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete cache file: %w", err)
	}
	return nil
}

// Clear removes every entry file in the cache directory.
func (d *Disk) Clear() error {
	matches, err := filepath.Glob(filepath.Join(d.dir, "*.json"))
	if err != nil {
		return fmt.Errorf("failed to list cache directory: %w", err)
	}
	for _, path := range matches {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove cache file: %w", err)
		}
	}
	return nil
}

// CleanupExpired sweeps the directory and removes entries older than the TTL
// window, along with files that fail to parse. It returns the number of
// entries removed.
func (d *Disk) CleanupExpired() (int, error) {
	matches, err := filepath.Glob(filepath.Join(d.dir, "*.json"))
	if err != nil {
		return 0, fmt.Errorf("failed to list cache directory: %w", err)
	}

	removed := 0
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var entry diskEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			_ = os.Remove(path)
			removed++
			continue
		}
		if d.ttl > 0 && time.Since(entry.CreatedAt) > d.ttl {
			_ = os.Remove(path)
			removed++
		}
	}
	return removed, nil
}
