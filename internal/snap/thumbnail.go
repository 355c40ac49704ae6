package snap

import (
	"fmt"
	"os"
)

// writeThumbnail persists PNG data for a snapshot. The image goes to a
// private temp file first and reaches its final path through the copy
// collaborator, the same way the snapshot payload does; the temp file is
// removed whether or not the copy succeeds.
func (e *Engine) writeThumbnail(snapshotPath string, png []byte) error {
	tmp, err := os.CreateTemp("", "snaptank-thumb-*.png")
	if err != nil {
		return fmt.Errorf("creating temp thumbnail: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(png); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp thumbnail: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp thumbnail: %w", err)
	}

	dst := ThumbnailPath(snapshotPath)
	e.logger.Debug("copying thumbnail", "src", tmpPath, "dst", dst)
	if err := e.copier.Copy(tmpPath, dst); err != nil {
		return fmt.Errorf("%w: thumbnail %s: %w", ErrCopyFailed, dst, err)
	}
	return nil
}
