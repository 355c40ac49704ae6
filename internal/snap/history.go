package snap

import (
	"path/filepath"
	"sort"
	"strings"
	"time"

	"snaptank/internal/template"
)

// thumbnailSuffix replaces a snapshot's extension to form its thumbnail
// path.
const thumbnailSuffix = ".tank_thumb.png"

// HistoryEntry is a display-ready projection of one snapshot.
type HistoryEntry struct {
	File          string
	Comment       string
	ThumbnailPath string
	Version       int
	Increment     int
	HasVersion    bool
	HasIncrement  bool
	// Datetime is zero when the path's timestamp is absent or unparsable;
	// the snapshot stays usable either way.
	Datetime time.Time
}

// ThumbnailPath returns the deterministic thumbnail location for a
// snapshot: the snapshot path with its final extension replaced by
// ".tank_thumb.png".
func ThumbnailPath(snapshotPath string) string {
	stem := strings.TrimSuffix(snapshotPath, filepath.Ext(snapshotPath))
	return stem + thumbnailSuffix
}

// FindHistory returns every snapshot ever taken of the artifact the given
// path belongs to, newest first. The path may be a work file or a snapshot.
// A path that matches neither template simply has no trackable history —
// the result is empty, not an error.
func (e *Engine) FindHistory(filePath string) ([]HistoryEntry, error) {
	if filePath == "" {
		return nil, nil
	}

	var fields template.Fields
	if f, err := e.work.Fields(filePath); err == nil {
		fields = f
	} else if f, err := e.snapshot.Fields(filePath); err == nil {
		fields = f
	} else {
		return nil, nil
	}

	files, err := e.snapshot.ListMatching(fields, familyIgnoredKeys)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, nil
	}

	// All matches share one store by construction, so the first path is as
	// good a key as any.
	comments := e.comments.Load(files[0])

	entries := make([]HistoryEntry, 0, len(files))
	for _, file := range files {
		// A thumbnail can itself match the snapshot template when the
		// extension key is a plain string key.
		if strings.HasSuffix(file, thumbnailSuffix) {
			continue
		}
		entry := HistoryEntry{
			File:          file,
			Comment:       comments[filepath.Base(file)],
			ThumbnailPath: ThumbnailPath(file),
		}

		fileFields, err := e.snapshot.Fields(file)
		if err != nil {
			// ListMatching already validated the path; keep the bare entry.
			entries = append(entries, entry)
			continue
		}
		if v, ok := fileFields.Int("version"); ok {
			entry.Version = v
			entry.HasVersion = true
		}
		if n, ok := fileFields.Int("increment"); ok {
			entry.Increment = n
			entry.HasIncrement = true
		}
		if ts, ok := fileFields.String("timestamp"); ok {
			if dt, err := time.ParseInLocation(TimestampFormat, ts, time.Local); err == nil {
				entry.Datetime = dt
			} else {
				e.logger.Warn("snapshot has unparsable timestamp", "file", file, "timestamp", ts)
			}
		}

		entries = append(entries, entry)
	}

	sortHistory(entries)
	return entries, nil
}

// sortHistory orders entries newest first. Entries without a datetime sink
// to the end; ties break on path so the order is deterministic.
func sortHistory(entries []HistoryEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		switch {
		case a.Datetime.IsZero() && b.Datetime.IsZero():
			return a.File < b.File
		case a.Datetime.IsZero():
			return false
		case b.Datetime.IsZero():
			return true
		case !a.Datetime.Equal(b.Datetime):
			return a.Datetime.After(b.Datetime)
		default:
			return a.File < b.File
		}
	})
}
