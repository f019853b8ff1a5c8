// Package cache stores one build version's decoded flags in a single on-disk
// slot. Writing a new version replaces the previous one entirely.
package cache

import (
	"errors"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"fflagdump/internal/binfmt"
	"fflagdump/internal/errcode"
	"fflagdump/internal/fastvar"
)

// DefaultPath is the slot location used when none is configured.
const DefaultPath = "target/version"

// lockTimeout bounds how long Load and Store wait for the slot lock.
const lockTimeout = 5 * time.Second

const lockRetryInterval = 10 * time.Millisecond

var (
	ErrStale       = errors.New("cache: version mismatch")
	ErrEmpty       = errors.New("cache: no cached version")
	ErrLockTimeout = errors.New("cache: lock acquisition timeout")
)

// Cache is a single-slot version cache backed by one file.
type Cache struct {
	path string
	log  *slog.Logger
	mu   sync.Mutex // serializes access within the process
}

// Open returns a cache rooted at path. The file is created on first Store.
func Open(path string, logger *slog.Logger) *Cache {
	if path == "" {
		path = DefaultPath
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Cache{path: path, log: logger.With("cache", path)}
}

// Path returns the slot file path.
func (c *Cache) Path() string { return c.path }

// Load returns the cached registry for version. A missing or empty slot, or
// one holding another version, is a miss. A corrupt slot is an error.
func (c *Cache) Load(version string) (fastvar.Registry, bool, error) {
	reg, err := c.Require(version)
	switch {
	case err == nil:
		c.log.Debug("cache hit", "version", version, "flags", len(reg))
		return reg, true, nil
	case errcode.Has(err, errcode.StaleCache), errcode.Has(err, errcode.NotFound):
		c.log.Debug("cache miss", "version", version, "reason", err.Error())
		return nil, false, nil
	default:
		return nil, false, err
	}
}

// Require is Load with misses reported as errors: STALE_CACHE when another
// version is cached, NOT_FOUND when the slot is empty.
func (c *Cache) Require(version string) (fastvar.Registry, error) {
	raw, err := c.read()
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, errcode.Wrap(ErrEmpty, errcode.NotFound, "cache is empty").WithContext("path", c.path)
	}

	s := binfmt.NewStream(raw)
	cached, err := s.ReadString(binfmt.W8, binfmt.LE)
	if err != nil {
		return nil, corrupt(err, c.path)
	}
	if cached != version {
		return nil, errcode.Wrap(ErrStale, errcode.StaleCache, "cached version differs").
			WithContext("cached", cached).
			WithContext("requested", version)
	}
	reg, err := decodeFlags(s)
	if err != nil {
		return nil, corrupt(err, c.path)
	}
	return reg, nil
}

// Peek decodes whatever version the slot holds. ok is false for an empty
// or missing slot.
func (c *Cache) Peek() (version string, reg fastvar.Registry, ok bool, err error) {
	raw, err := c.read()
	if err != nil || len(raw) == 0 {
		return "", nil, false, err
	}
	version, reg, err = Decode(raw)
	if err != nil {
		return "", nil, false, corrupt(err, c.path)
	}
	return version, reg, true, nil
}

// Store replaces the slot with version and reg.
func (c *Cache) Store(version string, reg fastvar.Registry) error {
	data, err := Encode(version, reg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	lock, err := acquireLock(c.path, true)
	if err != nil {
		return err
	}
	defer releaseLock(lock)

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errcode.Wrap(err, errcode.IO, "write cache").WithContext("path", tmp)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		_ = os.Remove(tmp)
		return errcode.Wrap(err, errcode.IO, "replace cache").WithContext("path", c.path)
	}
	c.log.Info("cache stored", "version", version, "flags", len(reg), "bytes", len(data))
	return nil
}

// Clear removes the slot. Clearing a missing slot is not an error.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	lock, err := acquireLock(c.path, true)
	if err != nil {
		return err
	}
	defer releaseLock(lock)

	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		return errcode.Wrap(err, errcode.IO, "remove cache").WithContext("path", c.path)
	}
	return nil
}

func (c *Cache) read() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := os.Stat(c.path); os.IsNotExist(err) {
		return nil, nil
	}
	lock, err := acquireLock(c.path, false)
	if err != nil {
		return nil, err
	}
	defer releaseLock(lock)

	raw, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errcode.Wrap(err, errcode.IO, "read cache").WithContext("path", c.path)
	}
	return raw, nil
}

// Encode serializes a slot: u8-prefixed version, u16 flag count, then the
// flags in name order.
func Encode(version string, reg fastvar.Registry) ([]byte, error) {
	if len(reg) > math.MaxUint16 {
		return nil, errcode.Wrap(binfmt.ErrOverflow, errcode.Overflow, "too many flags for cache").
			WithContext("flags", len(reg))
	}
	s := binfmt.NewStream(nil)
	if err := s.WriteString(version, binfmt.W8, binfmt.LE); err != nil {
		return nil, err
	}
	if err := s.WriteU16LE(uint16(len(reg))); err != nil {
		return nil, err
	}
	for _, f := range reg.Sorted() {
		if err := s.Put(f); err != nil {
			return nil, err
		}
	}
	return s.Bytes(), nil
}

// Decode parses a slot written by Encode.
func Decode(raw []byte) (string, fastvar.Registry, error) {
	s := binfmt.NewStream(raw)
	version, err := s.ReadString(binfmt.W8, binfmt.LE)
	if err != nil {
		return "", nil, err
	}
	reg, err := decodeFlags(s)
	if err != nil {
		return "", nil, err
	}
	return version, reg, nil
}

func decodeFlags(s *binfmt.Stream) (fastvar.Registry, error) {
	n, err := s.ReadU16LE()
	if err != nil {
		return nil, err
	}
	reg := make(fastvar.Registry, n)
	for range n {
		var f fastvar.FastVar
		if err := s.Get(&f); err != nil {
			return nil, err
		}
		reg[f.Name] = f
	}
	return reg, nil
}

func corrupt(err error, path string) error {
	return errcode.Wrap(err, errcode.OutOfBounds, "corrupt cache").WithContext("path", path)
}

// acquireLock takes an advisory lock on path+".lock", retrying until
// lockTimeout.
func acquireLock(path string, exclusive bool) (*os.File, error) {
	lockPath := path + ".lock"
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, errcode.Wrap(err, errcode.IO, "create lock directory").WithContext("path", lockPath)
	}
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, errcode.Wrap(err, errcode.IO, "open lock file").WithContext("path", lockPath)
	}

	deadline := time.Now().Add(lockTimeout)
	for {
		busy, err := tryLock(f, exclusive)
		if err == nil && !busy {
			return f, nil
		}
		if err != nil {
			_ = f.Close()
			return nil, errcode.Wrap(err, errcode.IO, "lock cache").WithContext("path", lockPath)
		}
		if time.Now().After(deadline) {
			_ = f.Close()
			return nil, errcode.Wrap(ErrLockTimeout, errcode.IO, "cache lock timeout").
				WithContext("path", lockPath).
				WithContext("timeout", lockTimeout.String())
		}
		time.Sleep(lockRetryInterval)
	}
}

func releaseLock(f *os.File) {
	if f == nil {
		return
	}
	_ = unlock(f)
	_ = f.Close()
}
