package app

import (
	"fmt"

	"snaptank/internal/snap"
)

// LocalSceneHooks is the CLI's scene collaborator. There is no host
// application holding unsaved state: the work file on disk already is the
// current state, so Save is a no-op and Open just records the active path.
// DCC integrations replace this with hooks that talk to the running editor.
type LocalSceneHooks struct {
	current string
	logger  snap.Logger
}

// NewLocalSceneHooks creates hooks with no file active.
func NewLocalSceneHooks(logger snap.Logger) *LocalSceneHooks {
	return &LocalSceneHooks{logger: logger}
}

// SetCurrent marks a path as the active work file.
func (h *LocalSceneHooks) SetCurrent(path string) {
	h.current = path
}

// Save persists the current editing state. On-disk files need no saving.
func (h *LocalSceneHooks) Save() error {
	return nil
}

// CurrentPath returns the active work file's path.
func (h *LocalSceneHooks) CurrentPath() (string, error) {
	if h.current == "" {
		return "", fmt.Errorf("no work file is active")
	}
	return h.current, nil
}

// Open records path as the active work file.
func (h *LocalSceneHooks) Open(path string) error {
	h.current = path
	h.logger.Info("work file active", "path", path)
	return nil
}

var _ snap.SceneHooks = (*LocalSceneHooks)(nil)
