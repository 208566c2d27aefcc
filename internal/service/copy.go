package service

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// reserveDest picks a collision-free path inside destDir and creates it
// exclusively while holding the directory's lock, so concurrent workers
// targeting the same directory cannot both claim the same name.
func (s *ExportService) reserveDest(destDir, stem, ext string) (string, *os.File, error) {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", nil, fmt.Errorf("create destination directory: %w", err)
	}

	lock := s.locks.get(destDir)
	lock.Lock()
	defer lock.Unlock()

	dest := resolveCollision(filepath.Join(destDir, stem+ext), func(p string) bool {
		_, err := os.Lstat(p)
		return err == nil
	})

	f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", nil, fmt.Errorf("reserve destination: %w", err)
	}
	return dest, f, nil
}

// copyInto fills a reserved destination file from src and preserves the
// source modification time. The destination is removed on failure so a
// half-written file never shadows a retried copy.
func copyInto(dest string, out *os.File, src string) error {
	in, err := os.Open(src)
	if err != nil {
		out.Close()
		os.Remove(dest)
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		out.Close()
		os.Remove(dest)
		return fmt.Errorf("stat source: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dest)
		return fmt.Errorf("write destination: %w", err)
	}
	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(dest)
		return fmt.Errorf("sync destination: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dest)
		return fmt.Errorf("close destination: %w", err)
	}

	// Best effort; some platforms refuse Chtimes on certain mounts.
	_ = os.Chtimes(dest, time.Now(), info.ModTime())

	return nil
}
