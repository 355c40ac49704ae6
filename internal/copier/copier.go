// Package copier provides the default FileCopier implementation: a local
// filesystem copy with atomic placement and optional content verification.
package copier

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/zeebo/xxh3"
)

// OS copies files on the local filesystem. The destination is written to a
// temp file in its target directory and renamed into place, so a partial
// copy never appears at the destination path and repeating a copy is safe.
type OS struct {
	// verify enables an xxh3-128 digest comparison between source and
	// destination after the copy lands.
	verify bool
}

// NewOS creates a filesystem copier. With verify enabled every copy is
// re-read and checksummed against the source.
func NewOS(verify bool) *OS {
	return &OS{verify: verify}
}

// Copy duplicates src to dst byte for byte, creating parent directories as
// needed. An existing destination is replaced.
func (c *OS) Copy(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}
	defer in.Close()

	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating destination directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".snaptank-copy-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	// Hash the source as it streams through so verification doesn't need a
	// second read of it.
	hasher := xxh3.New()
	if _, err := io.Copy(tmp, io.TeeReader(in, hasher)); err != nil {
		tmp.Close()
		return fmt.Errorf("copying data: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if c.verify {
		srcSum := fmt.Sprintf("%x", hasher.Sum128().Bytes())
		dstSum, err := checksumFile(tmpPath)
		if err != nil {
			return fmt.Errorf("verifying copy: %w", err)
		}
		if srcSum != dstSum {
			return fmt.Errorf("checksum mismatch copying %s: source %s, destination %s", src, srcSum, dstSum)
		}
	}

	if err := os.Rename(tmpPath, dst); err != nil {
		return fmt.Errorf("placing destination file: %w", err)
	}

	success = true
	return nil
}

// checksumFile returns the hex xxh3-128 digest of a file's content.
func checksumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := xxh3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum128().Bytes()), nil
}
