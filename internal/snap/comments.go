package snap

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"

	"snaptank/internal/template"
)

// commentStoreSuffix names the per-family comment store file that sits next
// to the snapshots.
const commentStoreSuffix = ".tank_comments.toml"

// CommentStore persists snapshot comments out-of-band from the snapshot
// payload: one TOML file per family of snapshots, mapping snapshot basename
// to comment text.
//
// Every version, increment and timestamp of one logical artifact shares a
// single store file. The file grows monotonically; entries for snapshots
// that no longer exist are kept.
type CommentStore struct {
	work     *template.PathTemplate
	snapshot *template.PathTemplate
	logger   Logger

	// Read-modify-write on a store file is not atomic, so writers to the
	// same store are serialized with a per-file mutex.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewCommentStore creates a store resolving family identity through the
// given work and snapshot templates.
func NewCommentStore(work, snapshot *template.PathTemplate, logger Logger) *CommentStore {
	return &CommentStore{
		work:     work,
		snapshot: snapshot,
		logger:   logger,
		locks:    make(map[string]*sync.Mutex),
	}
}

// StorePath derives the comment store file for a snapshot path:
//
//	<snapshot_dir>/<work_v0_stem>.tank_comments.toml
//
// The version field is forced to 0 before re-deriving the work path, so
// comments for all versions of one artifact land in the same file. The
// snapshot template must carry every field the work template needs — this
// has to hold anyway, or snapshots could never be restored.
func (s *CommentStore) StorePath(snapshotPath string) (string, error) {
	fields, err := s.snapshot.Fields(snapshotPath)
	if err != nil {
		return "", err
	}
	fields["version"] = 0

	workPath, err := s.work.Apply(fields)
	if err != nil {
		return "", fmt.Errorf("deriving family identity for %s: %w", snapshotPath, err)
	}

	base := filepath.Base(workPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(snapshotPath), stem+commentStoreSuffix), nil
}

// SetComment records a comment for a snapshot, keyed by its basename.
// Last writer wins. An invalid snapshot path is logged and skipped rather
// than failing the caller — this path is also hit from the generic comment
// command, which must not be able to corrupt a store with a stray file.
func (s *CommentStore) SetComment(snapshotPath, comment string) error {
	if !s.snapshot.Validate(snapshotPath) {
		s.logger.Warn("not adding comment to invalid snapshot path", "path", snapshotPath)
		return nil
	}

	storePath, err := s.StorePath(snapshotPath)
	if err != nil {
		return err
	}

	lock := s.lockFor(storePath)
	lock.Lock()
	defer lock.Unlock()

	comments := s.read(storePath)
	comments[filepath.Base(snapshotPath)] = comment

	s.logger.Debug("writing comment store", "store", storePath, "snapshot", filepath.Base(snapshotPath))
	return writeStore(storePath, comments)
}

// Load returns the comment mapping for the family the snapshot path belongs
// to. A missing or malformed store yields an empty mapping, never an error:
// comment loss must not block snapshotting or restoring.
func (s *CommentStore) Load(snapshotPath string) map[string]string {
	storePath, err := s.StorePath(snapshotPath)
	if err != nil {
		s.logger.Warn("cannot derive comment store path", "path", snapshotPath, "error", err)
		return map[string]string{}
	}
	return s.read(storePath)
}

func (s *CommentStore) read(storePath string) map[string]string {
	comments := make(map[string]string)
	if _, err := os.Stat(storePath); err != nil {
		return comments
	}
	if _, err := toml.DecodeFile(storePath, &comments); err != nil {
		s.logger.Warn("comment store is malformed, treating as empty", "store", storePath, "error", err)
		return map[string]string{}
	}
	return comments
}

func (s *CommentStore) lockFor(storePath string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[storePath]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[storePath] = lock
	}
	return lock
}

// writeStore writes the mapping via a temp file and atomic rename so a
// crash mid-write never leaves a truncated store behind.
func writeStore(storePath string, comments map[string]string) error {
	dir := filepath.Dir(storePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating comment store directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tank_comments-*.toml")
	if err != nil {
		return fmt.Errorf("creating temp comment store: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if err := toml.NewEncoder(tmp).Encode(comments); err != nil {
		tmp.Close()
		return fmt.Errorf("encoding comment store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp comment store: %w", err)
	}
	if err := os.Rename(tmpPath, storePath); err != nil {
		return fmt.Errorf("replacing comment store: %w", err)
	}

	success = true
	return nil
}
