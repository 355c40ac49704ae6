package snap

import (
	"fmt"
	"os"
	"path/filepath"

	"snaptank/internal/template"
)

// TimestampFormat is the fixed textual format every snapshot path encodes
// its creation instant with (local time).
const TimestampFormat = "2006-01-02-15-04-05"

// familyIgnoredKeys are the template keys that vary between snapshots of
// one logical artifact. Listing with these ignored yields the whole family.
var familyIgnoredKeys = []string{"version", "timestamp", "increment"}

// Engine orchestrates snapshot creation, restoration and history
// enumeration. It holds no state beyond its injected collaborators; every
// operation is a single synchronous request.
type Engine struct {
	work     *template.PathTemplate
	snapshot *template.PathTemplate
	comments *CommentStore
	hooks    SceneHooks
	copier   FileCopier
	logger   Logger
	clock    Clock
}

// NewEngine creates an Engine with the provided dependencies.
func NewEngine(work, snapshot *template.PathTemplate, comments *CommentStore, hooks SceneHooks, copier FileCopier, logger Logger, clock Clock) *Engine {
	return &Engine{
		work:     work,
		snapshot: snapshot,
		comments: comments,
		hooks:    hooks,
		copier:   copier,
		logger:   logger,
		clock:    clock,
	}
}

// Create takes an immutable timestamped snapshot of the work file and
// returns the snapshot path. thumbnail, when non-empty, is PNG data stored
// next to the snapshot; comment, when non-empty, is recorded in the
// family's comment store.
//
// The current work state is saved first — a snapshot of stale unsaved state
// is never taken. Failures after the copy succeeded (comment or thumbnail
// write) return the snapshot path alongside the error: the snapshot itself
// is valid and stays visible in history, nothing is rolled back.
func (e *Engine) Create(workPath string, thumbnail []byte, comment string) (string, error) {
	if err := e.hooks.Save(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}

	if _, err := os.Stat(workPath); err != nil {
		return "", fmt.Errorf("%w: %s", ErrSourceNotFound, workPath)
	}
	if !e.work.Validate(workPath) {
		return "", fmt.Errorf("%w: %s", ErrInvalidWorkFile, workPath)
	}

	fields, err := e.work.Fields(workPath)
	if err != nil {
		return "", err
	}
	fields["timestamp"] = e.clock.Now().Format(TimestampFormat)

	if e.snapshot.HasKey("increment") {
		existing, err := e.snapshot.ListMatching(fields, familyIgnoredKeys)
		if err != nil {
			return "", fmt.Errorf("listing existing snapshots for %s: %w", workPath, err)
		}
		fields["increment"] = NextIncrement(e.snapshot, existing)
	}

	snapshotPath, err := e.snapshot.Apply(fields)
	if err != nil {
		return "", fmt.Errorf("deriving snapshot path for %s: %w", workPath, err)
	}

	e.logger.Debug("copying work file", "src", workPath, "dst", snapshotPath)
	if err := e.copier.Copy(workPath, snapshotPath); err != nil {
		return "", fmt.Errorf("%w: %s -> %s: %w", ErrCopyFailed, workPath, snapshotPath, err)
	}

	// The copier may report success without producing the file; verify
	// independently.
	if _, err := os.Stat(snapshotPath); err != nil {
		return "", fmt.Errorf("%w: %s -> %s", ErrCopyVerificationFailed, workPath, snapshotPath)
	}

	if comment != "" {
		if err := e.comments.SetComment(snapshotPath, comment); err != nil {
			return snapshotPath, fmt.Errorf("recording comment for %s: %w", snapshotPath, err)
		}
	}
	if len(thumbnail) > 0 {
		if err := e.writeThumbnail(snapshotPath, thumbnail); err != nil {
			return snapshotPath, err
		}
	}

	e.logger.Info("snapshot created", "work", workPath, "snapshot", snapshotPath)
	return snapshotPath, nil
}

// SetComment records a comment for an existing snapshot.
func (e *Engine) SetComment(snapshotPath, comment string) error {
	return e.comments.SetComment(snapshotPath, comment)
}

// Restore copies a snapshot back into the active work slot and reopens it.
//
// The current state is saved first, and if the target work file already
// exists an automatic snapshot of it is taken before it is overwritten —
// restoring never makes prior work unrecoverable. When that safety snapshot
// fails the restore aborts without touching the work file.
func (e *Engine) Restore(snapshotPath string) error {
	if snapshotPath == "" {
		return nil
	}

	if err := e.hooks.Save(); err != nil {
		return fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}

	if !e.snapshot.Validate(snapshotPath) {
		return fmt.Errorf("%w: %s", ErrInvalidSnapshotPath, snapshotPath)
	}
	fields, err := e.snapshot.Fields(snapshotPath)
	if err != nil {
		return err
	}
	workPath, err := e.work.Apply(fields)
	if err != nil {
		return fmt.Errorf("deriving work path for %s: %w", snapshotPath, err)
	}

	if _, err := os.Stat(workPath); err == nil {
		comment := fmt.Sprintf("Automatic snapshot before restoring older snapshot '%s'", filepath.Base(snapshotPath))
		if _, err := e.Create(workPath, nil, comment); err != nil {
			return fmt.Errorf("pre-restore snapshot of %s: %w", workPath, err)
		}
	}

	e.logger.Debug("restoring snapshot", "src", snapshotPath, "dst", workPath)
	if err := e.copier.Copy(snapshotPath, workPath); err != nil {
		return fmt.Errorf("%w: %s -> %s: %w", ErrCopyFailed, snapshotPath, workPath, err)
	}
	if _, err := os.Stat(workPath); err != nil {
		return fmt.Errorf("%w: %s -> %s", ErrCopyVerificationFailed, snapshotPath, workPath)
	}

	e.logger.Info("snapshot restored", "snapshot", snapshotPath, "work", workPath)
	return e.hooks.Open(workPath)
}
