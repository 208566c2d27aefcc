package service

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
)

// resolveCollision returns the first destination path not reported as
// existing: the desired path itself, then stem_1.ext, stem_2.ext and so
// on. The counter is unbounded; the destination directory is finite.
func resolveCollision(desired string, exists func(string) bool) string {
	if !exists(desired) {
		return desired
	}

	dir := filepath.Dir(desired)
	ext := filepath.Ext(desired)
	stem := strings.TrimSuffix(filepath.Base(desired), ext)

	for counter := 1; ; counter++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, counter, ext))
		if !exists(candidate) {
			return candidate
		}
	}
}

// dirLocks serializes collision resolution per destination directory.
// The exists-then-create sequence is not atomic, so two workers copying
// into the same directory must not probe it concurrently.
type dirLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (d *dirLocks) get(dir string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.locks == nil {
		d.locks = make(map[string]*sync.Mutex)
	}
	lock, ok := d.locks[dir]
	if !ok {
		lock = &sync.Mutex{}
		d.locks[dir] = lock
	}
	return lock
}
