package testutil

// SceneRecorder is a SceneHooks fake that records calls and can be
// scripted to fail.
type SceneRecorder struct {
	SaveErr   error
	OpenErr   error
	Current   string
	SaveCalls int
	Opened    []string
}

func (h *SceneRecorder) Save() error {
	h.SaveCalls++
	return h.SaveErr
}

func (h *SceneRecorder) CurrentPath() (string, error) {
	return h.Current, nil
}

func (h *SceneRecorder) Open(path string) error {
	if h.OpenErr != nil {
		return h.OpenErr
	}
	h.Opened = append(h.Opened, path)
	h.Current = path
	return nil
}
