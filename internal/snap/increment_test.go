package snap_test

import (
	"path/filepath"
	"testing"

	"snaptank/internal/snap"
	"snaptank/internal/template"
)

func incrementTemplate(t *testing.T, root string) *template.PathTemplate {
	t.Helper()
	keys := map[string]template.KeySpec{
		"version":   {Type: template.KeyInt, Padding: 3},
		"increment": {Type: template.KeyInt},
		"timestamp": {Type: template.KeyTimestamp},
	}
	tmpl, err := template.New(root, "snapshots/{name}_{timestamp}.{increment}.{ext}", keys)
	if err != nil {
		t.Fatalf("snapshot template: %v", err)
	}
	return tmpl
}

func TestNextIncrement(t *testing.T) {
	root := t.TempDir()
	tmpl := incrementTemplate(t, root)

	path := func(increment int) string {
		p, err := tmpl.Apply(template.Fields{
			"name":      "shot010",
			"timestamp": "2024-01-01-10-00-00",
			"increment": increment,
			"ext":       "ma",
		})
		if err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
		return p
	}

	t.Run("returns max plus one", func(t *testing.T) {
		existing := []string{path(1), path(2), path(4)}
		if got := snap.NextIncrement(tmpl, existing); got != 5 {
			t.Errorf("NextIncrement() = %d, want 5", got)
		}
	})

	t.Run("empty family starts at one", func(t *testing.T) {
		if got := snap.NextIncrement(tmpl, nil); got != 1 {
			t.Errorf("NextIncrement() = %d, want 1", got)
		}
	})

	t.Run("skips paths without a parseable increment", func(t *testing.T) {
		existing := []string{
			path(2),
			filepath.Join(root, "snapshots", "shot010_2024-01-01-10-00-00.junk.ma"),
			filepath.Join(root, "not-even-close.txt"),
		}
		if got := snap.NextIncrement(tmpl, existing); got != 3 {
			t.Errorf("NextIncrement() = %d, want 3", got)
		}
	})
}
