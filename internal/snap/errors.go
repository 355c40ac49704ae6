package snap

import "errors"

// Validation and I/O error kinds surfaced by engine operations. Callers
// match them with errors.Is; each wrapped error carries the paths involved.
var (
	// ErrSourceNotFound: the work file to snapshot does not exist on disk.
	ErrSourceNotFound = errors.New("work file not found")

	// ErrInvalidWorkFile: the path does not match the work template.
	ErrInvalidWorkFile = errors.New("not a valid work file")

	// ErrInvalidSnapshotPath: the path does not match the snapshot template.
	ErrInvalidSnapshotPath = errors.New("not a valid snapshot path")

	// ErrSaveFailed: the host application failed to persist the current
	// work state. Reported before anything is copied or overwritten.
	ErrSaveFailed = errors.New("saving current work state failed")

	// ErrCopyFailed: the copy collaborator reported a failure.
	ErrCopyFailed = errors.New("file copy failed")

	// ErrCopyVerificationFailed: the copy collaborator reported success
	// but the destination does not exist.
	ErrCopyVerificationFailed = errors.New("copied file missing from destination")
)
