package snap

// SceneHooks abstracts the host application's scene operations. The engine
// never opens or saves editing state itself; it only sequences these calls
// around its own file bookkeeping.
type SceneHooks interface {
	// Save persists the in-memory editing state to its on-disk work path.
	Save() error

	// CurrentPath returns the active work file's path. Fails when no file
	// is open.
	CurrentPath() (string, error)

	// Open loads path as the active editable state.
	Open(path string) error
}

// FileCopier performs byte-for-byte duplication of a file. Implementations
// must be idempotent: copying the same source to the same destination twice
// must not corrupt the destination.
type FileCopier interface {
	Copy(src, dst string) error
}
