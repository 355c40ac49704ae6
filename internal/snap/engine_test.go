package snap_test

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"snaptank/internal/copier"
	"snaptank/internal/snap"
	"snaptank/internal/template"
	"snaptank/internal/testutil"
)

type engineFixture struct {
	root     string
	work     *template.PathTemplate
	snapshot *template.PathTemplate
	comments *snap.CommentStore
	hooks    *testutil.SceneRecorder
	clock    *testutil.TickingClock
	engine   *snap.Engine
}

func newFixture(t *testing.T) *engineFixture {
	t.Helper()
	root := t.TempDir()
	work, snapshot := testTemplates(t, root)
	comments := snap.NewCommentStore(work, snapshot, snap.NewNopLogger())
	hooks := &testutil.SceneRecorder{}
	clock := testutil.NewTickingClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.Local), time.Second)
	engine := snap.NewEngine(work, snapshot, comments, hooks, copier.NewOS(true), snap.NewNopLogger(), clock)
	return &engineFixture{
		root:     root,
		work:     work,
		snapshot: snapshot,
		comments: comments,
		hooks:    hooks,
		clock:    clock,
		engine:   engine,
	}
}

func (f *engineFixture) writeWorkFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(f.root, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return string(data)
}

func TestEngine_Create(t *testing.T) {
	t.Run("produces a validating snapshot with the work file's fields", func(t *testing.T) {
		f := newFixture(t)
		workPath := f.writeWorkFile(t, "shot010_v003.ma", "scene data")

		snapshotPath, err := f.engine.Create(workPath, nil, "")
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}

		want := filepath.Join(f.root, "snapshots", "shot010_v003_2024-01-01-12-00-00.ma")
		if snapshotPath != want {
			t.Errorf("snapshot path = %q, want %q", snapshotPath, want)
		}
		if !f.snapshot.Validate(snapshotPath) {
			t.Error("snapshot path does not validate against snapshot template")
		}
		if got := readFile(t, snapshotPath); got != "scene data" {
			t.Errorf("snapshot content = %q, want %q", got, "scene data")
		}
		if f.hooks.SaveCalls != 1 {
			t.Errorf("Save called %d times, want 1", f.hooks.SaveCalls)
		}

		fields, err := f.snapshot.Fields(snapshotPath)
		if err != nil {
			t.Fatalf("Fields() error = %v", err)
		}
		if v, _ := fields.Int("version"); v != 3 {
			t.Errorf("version = %d, want 3", v)
		}
		if name, _ := fields.String("name"); name != "shot010" {
			t.Errorf("name = %q, want shot010", name)
		}
	})

	t.Run("fails when save fails, before any copy", func(t *testing.T) {
		f := newFixture(t)
		workPath := f.writeWorkFile(t, "shot010_v003.ma", "scene data")
		f.hooks.SaveErr = errors.New("host refused")

		_, err := f.engine.Create(workPath, nil, "")
		if !errors.Is(err, snap.ErrSaveFailed) {
			t.Fatalf("Create() error = %v, want ErrSaveFailed", err)
		}
		if _, err := os.Stat(filepath.Join(f.root, "snapshots")); !os.IsNotExist(err) {
			t.Error("snapshot directory created despite save failure")
		}
	})

	t.Run("fails for missing work file", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.engine.Create(filepath.Join(f.root, "shot010_v003.ma"), nil, "")
		if !errors.Is(err, snap.ErrSourceNotFound) {
			t.Errorf("Create() error = %v, want ErrSourceNotFound", err)
		}
	})

	t.Run("fails for non-work file", func(t *testing.T) {
		f := newFixture(t)
		path := f.writeWorkFile(t, "notes.txt", "hello")
		_, err := f.engine.Create(path, nil, "")
		if !errors.Is(err, snap.ErrInvalidWorkFile) {
			t.Errorf("Create() error = %v, want ErrInvalidWorkFile", err)
		}
	})

	t.Run("detects a copier that lies about success", func(t *testing.T) {
		f := newFixture(t)
		workPath := f.writeWorkFile(t, "shot010_v003.ma", "scene data")
		engine := snap.NewEngine(f.work, f.snapshot, f.comments, f.hooks, testutil.PhantomCopier{}, snap.NewNopLogger(), f.clock)

		_, err := engine.Create(workPath, nil, "")
		if !errors.Is(err, snap.ErrCopyVerificationFailed) {
			t.Errorf("Create() error = %v, want ErrCopyVerificationFailed", err)
		}
	})

	t.Run("surfaces copier failure", func(t *testing.T) {
		f := newFixture(t)
		workPath := f.writeWorkFile(t, "shot010_v003.ma", "scene data")
		engine := snap.NewEngine(f.work, f.snapshot, f.comments, f.hooks, &testutil.FailingCopier{Err: errors.New("disk full")}, snap.NewNopLogger(), f.clock)

		_, err := engine.Create(workPath, nil, "")
		if !errors.Is(err, snap.ErrCopyFailed) {
			t.Errorf("Create() error = %v, want ErrCopyFailed", err)
		}
	})

	t.Run("records the comment in the family store", func(t *testing.T) {
		f := newFixture(t)
		workPath := f.writeWorkFile(t, "shot010_v003.ma", "scene data")

		snapshotPath, err := f.engine.Create(workPath, nil, "before lighting change")
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}

		comments := f.comments.Load(snapshotPath)
		if got := comments[filepath.Base(snapshotPath)]; got != "before lighting change" {
			t.Errorf("comment = %q, want %q", got, "before lighting change")
		}
	})

	t.Run("stores the thumbnail at the derived path", func(t *testing.T) {
		f := newFixture(t)
		workPath := f.writeWorkFile(t, "shot010_v003.ma", "scene data")
		png := []byte("\x89PNG fake image bytes")

		snapshotPath, err := f.engine.Create(workPath, png, "")
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}

		thumbPath := snap.ThumbnailPath(snapshotPath)
		want := filepath.Join(f.root, "snapshots", "shot010_v003_2024-01-01-12-00-00.tank_thumb.png")
		if thumbPath != want {
			t.Errorf("thumbnail path = %q, want %q", thumbPath, want)
		}
		if got := readFile(t, thumbPath); got != string(png) {
			t.Error("thumbnail content does not match input")
		}
	})

	t.Run("allocates increments when the template has one", func(t *testing.T) {
		root := t.TempDir()
		keys := map[string]template.KeySpec{
			"version":   {Type: template.KeyInt, Padding: 3},
			"increment": {Type: template.KeyInt},
			"timestamp": {Type: template.KeyTimestamp},
		}
		work, err := template.New(root, "{name}_v{version}.{ext}", keys)
		if err != nil {
			t.Fatal(err)
		}
		snapshotTmpl, err := template.New(root, "snapshots/{name}_v{version}_{timestamp}.{increment}.{ext}", keys)
		if err != nil {
			t.Fatal(err)
		}
		comments := snap.NewCommentStore(work, snapshotTmpl, snap.NewNopLogger())
		clock := testutil.NewTickingClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.Local), time.Second)
		engine := snap.NewEngine(work, snapshotTmpl, comments, &testutil.SceneRecorder{}, copier.NewOS(true), snap.NewNopLogger(), clock)

		workPath := filepath.Join(root, "shot010_v003.ma")
		if err := os.WriteFile(workPath, []byte("scene"), 0644); err != nil {
			t.Fatal(err)
		}

		for want := 1; want <= 3; want++ {
			snapshotPath, err := engine.Create(workPath, nil, "")
			if err != nil {
				t.Fatalf("Create() #%d error = %v", want, err)
			}
			fields, err := snapshotTmpl.Fields(snapshotPath)
			if err != nil {
				t.Fatalf("Fields() error = %v", err)
			}
			if got, _ := fields.Int("increment"); got != want {
				t.Errorf("increment = %d, want %d", got, want)
			}
		}
	})
}

// saveOnceHooks allows the first save and fails every one after it, which
// makes the automatic pre-restore snapshot fail while the restore's own
// initial save succeeds.
type saveOnceHooks struct {
	saves int
}

func (h *saveOnceHooks) Save() error {
	h.saves++
	if h.saves > 1 {
		return fmt.Errorf("host went away")
	}
	return nil
}

func (h *saveOnceHooks) CurrentPath() (string, error) { return "", nil }
func (h *saveOnceHooks) Open(string) error            { return nil }

func TestEngine_Restore(t *testing.T) {
	t.Run("empty path is a no-op", func(t *testing.T) {
		f := newFixture(t)
		if err := f.engine.Restore(""); err != nil {
			t.Fatalf("Restore() error = %v", err)
		}
		if f.hooks.SaveCalls != 0 {
			t.Errorf("Save called %d times for empty path, want 0", f.hooks.SaveCalls)
		}
	})

	t.Run("fails for non-snapshot path", func(t *testing.T) {
		f := newFixture(t)
		err := f.engine.Restore(filepath.Join(f.root, "shot010_v003.ma"))
		if !errors.Is(err, snap.ErrInvalidSnapshotPath) {
			t.Errorf("Restore() error = %v, want ErrInvalidSnapshotPath", err)
		}
	})

	t.Run("snapshots existing work before overwriting it", func(t *testing.T) {
		f := newFixture(t)
		workPath := f.writeWorkFile(t, "shot010_v003.ma", "old state")

		snapshotPath, err := f.engine.Create(workPath, nil, "")
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}

		// The work file moves on after the snapshot was taken.
		if err := os.WriteFile(workPath, []byte("newer state"), 0644); err != nil {
			t.Fatal(err)
		}

		if err := f.engine.Restore(snapshotPath); err != nil {
			t.Fatalf("Restore() error = %v", err)
		}

		if got := readFile(t, workPath); got != "old state" {
			t.Errorf("work file = %q, want restored %q", got, "old state")
		}
		if len(f.hooks.Opened) != 1 || f.hooks.Opened[0] != workPath {
			t.Errorf("Opened = %v, want [%s]", f.hooks.Opened, workPath)
		}

		// Exactly one extra snapshot: the automatic pre-restore backup,
		// holding the overwritten state, with the synthetic comment.
		history, err := f.engine.FindHistory(workPath)
		if err != nil {
			t.Fatalf("FindHistory() error = %v", err)
		}
		if len(history) != 2 {
			t.Fatalf("history has %d entries, want 2", len(history))
		}
		backup := history[0] // newest first
		if got := readFile(t, backup.File); got != "newer state" {
			t.Errorf("backup content = %q, want %q", got, "newer state")
		}
		if backup.Comment == "" {
			t.Error("automatic backup has no comment")
		}
	})

	t.Run("restores directly when no work file exists", func(t *testing.T) {
		f := newFixture(t)
		workPath := f.writeWorkFile(t, "shot010_v003.ma", "scene data")

		snapshotPath, err := f.engine.Create(workPath, nil, "")
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if err := os.Remove(workPath); err != nil {
			t.Fatal(err)
		}

		if err := f.engine.Restore(snapshotPath); err != nil {
			t.Fatalf("Restore() error = %v", err)
		}
		if got := readFile(t, workPath); got != "scene data" {
			t.Errorf("work file = %q, want %q", got, "scene data")
		}

		history, err := f.engine.FindHistory(workPath)
		if err != nil {
			t.Fatalf("FindHistory() error = %v", err)
		}
		if len(history) != 1 {
			t.Errorf("history has %d entries, want 1 (no automatic backup)", len(history))
		}
	})

	t.Run("aborts when the safety snapshot fails", func(t *testing.T) {
		f := newFixture(t)
		workPath := f.writeWorkFile(t, "shot010_v003.ma", "old state")

		snapshotPath, err := f.engine.Create(workPath, nil, "")
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if err := os.WriteFile(workPath, []byte("unsaved treasure"), 0644); err != nil {
			t.Fatal(err)
		}

		engine := snap.NewEngine(f.work, f.snapshot, f.comments, &saveOnceHooks{}, copier.NewOS(true), snap.NewNopLogger(), f.clock)
		err = engine.Restore(snapshotPath)
		if !errors.Is(err, snap.ErrSaveFailed) {
			t.Fatalf("Restore() error = %v, want wrapped ErrSaveFailed", err)
		}

		// The work file must be untouched.
		if got := readFile(t, workPath); got != "unsaved treasure" {
			t.Errorf("work file = %q, want untouched %q", got, "unsaved treasure")
		}
	})
}
