package cache

import "time"

// Tiered stacks the memory and disk backends behind a single interface.
// Reads consult memory first and fall through to disk, promoting disk hits
// into memory; writes and deletes go to both tiers.
type Tiered struct {
	memory *Memory
	disk   *Disk
}

// NewTiered creates a tiered cache with the given memory capacity, disk
// directory and disk TTL.
func NewTiered(memoryCapacity int, dir string, diskTTL time.Duration) (*Tiered, error) {
	memory, err := NewMemory(memoryCapacity)
	if err != nil {
		return nil, err
	}
	disk, err := NewDisk(dir, diskTTL)
	if err != nil {
		return nil, err
	}
	return &Tiered{memory: memory, disk: disk}, nil
}

// Get returns the value for key, checking memory before disk. A disk hit is
// promoted into memory without a TTL; the disk tier keeps enforcing its own.
func (t *Tiered) Get(key string) ([]byte, bool) {
	if value, ok := t.memory.Get(key); ok {
		return value, true
	}
	value, ok := t.disk.Get(key)
	if !ok {
		return nil, false
	}
	t.memory.Set(key, value, 0)
	return value, true
}

// Set writes value to both tiers. The ttl applies to the memory entry; the
// disk tier applies its global TTL.
func (t *Tiered) Set(key string, value []byte, ttl time.Duration) error {
	t.memory.Set(key, value, ttl)
	return t.disk.Set(key, value)
}

// Delete removes key from both tiers.
func (t *Tiered) Delete(key string) error {
	t.memory.Delete(key)
	return t.disk.Delete(key)
}

// Clear clears both tiers.
func (t *Tiered) Clear() error {
	t.memory.Clear()
	return t.disk.Clear()
}

// CleanupExpired sweeps the disk tier.
func (t *Tiered) CleanupExpired() (int, error) {
	return t.disk.CleanupExpired()
}

// Memory exposes the memory tier, primarily for probing in tests.
func (t *Tiered) Memory() *Memory {
	return t.memory
}
