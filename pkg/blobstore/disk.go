package blobstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	segfs "github.com/segstore/segstore/internal/fs"
)

// Disk is a filesystem-backed [Store]. Each key is mapped to a file under
// root named by the hex SHA-256 digest of the key, so arbitrary key strings
// (including the "/"-separated chunk keys colstore generates) never need to
// round-trip through the filesystem's own path semantics.
//
// File access goes through [segfs.FS] rather than the os package directly,
// so a caller building against a fault-injecting filesystem (segfs.Chaos)
// can exercise Disk's durability story. Writes use
// [segfs.FS.WriteFileAtomic] so a crash mid-write never leaves a torn blob
// visible to a later Get. A single flock'd lock file, acquired via
// [segfs.FS.Lock] in [NewDiskFS] and released by [Disk.Close], keeps any
// other process from opening the same store directory while this Disk is
// open, extending the single-writer-per-sequence assumption down to the
// store level.
type Disk struct {
	fs   segfs.FS
	root string

	mu   sync.Mutex // serializes Set within this process
	lock segfs.Locker
}

// NewDisk opens (creating if necessary) a disk-backed store rooted at dir,
// using the real filesystem.
func NewDisk(dir string) (*Disk, error) {
	return NewDiskFS(segfs.NewReal(), dir)
}

// NewDiskFS opens a disk-backed store rooted at dir against an arbitrary
// [segfs.FS], letting tests substitute [segfs.Chaos] to verify Disk's
// behavior under injected I/O faults.
func NewDiskFS(fsys segfs.FS, dir string) (*Disk, error) {
	if err := fsys.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("blobstore: create root dir: %w", err)
	}

	lockPath := filepath.Join(dir, ".segstore.lock")

	lock, err := fsys.Lock(lockPath)
	if err != nil {
		return nil, fmt.Errorf("blobstore: acquire store lock: %w", err)
	}

	return &Disk{fs: fsys, root: dir, lock: lock}, nil
}

// Close releases the store's lock.
func (d *Disk) Close() error {
	return d.lock.Close()
}

func (d *Disk) pathFor(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(d.root, hex.EncodeToString(sum[:])+".blob")
}

// Get implements [Store].
func (d *Disk) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	data, err := d.fs.ReadFile(d.pathFor(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("blobstore: read %s: %w", key, err)
	}

	// ReadFile already returns a freshly allocated slice; no aliasing risk,
	// but copy defensively so the contract holds even if a future
	// implementation swap introduces caching.
	out := make([]byte, len(data))
	copy(out, data)

	return out, true, nil
}

// Set implements [Store].
func (d *Disk) Set(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	cp := make([]byte, len(data))
	copy(cp, data)

	if err := d.fs.WriteFileAtomic(d.pathFor(key), cp, 0o640); err != nil {
		return fmt.Errorf("blobstore: write %s: %w", key, err)
	}

	return nil
}
