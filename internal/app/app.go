// Package app is the application layer between the CLI and the snapshot
// engine. It constructs all dependencies from config, exposes high-level
// operations that accept raw string paths, and journals each one.
package app

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"snaptank/internal/config"
	"snaptank/internal/copier"
	"snaptank/internal/journal"
	"snaptank/internal/snap"
	"snaptank/internal/template"
)

// App wires config, templates, engine and journal together for one CLI
// invocation. The caller must call Close when done.
type App struct {
	cfg     *config.Config
	engine  *snap.Engine
	hooks   *LocalSceneHooks
	journal *journal.Journal
	logger  snap.Logger
	logFile *os.File
}

// New creates a fully wired App from the given config. operation
// identifies the CLI command being run (e.g. "Snapshot", "Restore").
func New(cfg *config.Config, operation string) (*App, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("config has no project root")
	}

	opID := time.Now().UTC().Format("20060102T150405Z")
	slogger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	work, snapshot, err := buildTemplates(cfg)
	if err != nil {
		logFile.Close()
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.JournalPath), 0755); err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating journal directory: %w", err)
	}
	jnl, err := journal.Open(cfg.JournalPath, snap.RealClock{})
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("opening journal: %w", err)
	}

	hooks := NewLocalSceneHooks(logger)
	comments := snap.NewCommentStore(work, snapshot, logger)
	cp := copier.NewOS(cfg.Copier.VerifyChecksums)
	engine := snap.NewEngine(work, snapshot, comments, hooks, cp, logger, snap.RealClock{})

	logger.Debug("app initialized", "operation", operation, "root", cfg.Root)

	return &App{
		cfg:     cfg,
		engine:  engine,
		hooks:   hooks,
		journal: jnl,
		logger:  logger,
		logFile: logFile,
	}, nil
}

// buildTemplates compiles the configured work and snapshot templates.
func buildTemplates(cfg *config.Config) (work, snapshot *template.PathTemplate, err error) {
	specs := make(map[string]template.KeySpec, len(cfg.Templates.Keys))
	for name, kc := range cfg.Templates.Keys {
		switch kc.Type {
		case "", "str":
			specs[name] = template.KeySpec{Type: template.KeyString}
		case "int":
			specs[name] = template.KeySpec{Type: template.KeyInt, Padding: kc.Padding}
		case "timestamp":
			specs[name] = template.KeySpec{Type: template.KeyTimestamp}
		default:
			return nil, nil, fmt.Errorf("template key %q has unknown type %q", name, kc.Type)
		}
	}

	work, err = template.New(cfg.Root, cfg.Templates.Work, specs)
	if err != nil {
		return nil, nil, fmt.Errorf("compiling work template: %w", err)
	}
	snapshot, err = template.New(cfg.Root, cfg.Templates.Snapshot, specs)
	if err != nil {
		return nil, nil, fmt.Errorf("compiling snapshot template: %w", err)
	}
	return work, snapshot, nil
}

// Close releases the journal and log file.
func (a *App) Close() error {
	var firstErr error
	if err := a.journal.Close(); err != nil {
		firstErr = err
	}
	if err := a.logFile.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Snapshot takes a snapshot of the work file at rawPath. thumbnailPath,
// when non-empty, names a PNG to store alongside the snapshot. Returns the
// created snapshot path.
func (a *App) Snapshot(rawPath, thumbnailPath, comment string) (string, error) {
	workPath, err := filepath.Abs(rawPath)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}
	a.hooks.SetCurrent(workPath)

	var thumbnail []byte
	if thumbnailPath != "" {
		thumbnail, err = os.ReadFile(thumbnailPath)
		if err != nil {
			return "", fmt.Errorf("reading thumbnail: %w", err)
		}
	}

	opID := a.beginOp("Snapshot", workPath, "")
	snapshotPath, err := a.engine.Create(workPath, thumbnail, comment)
	if snapshotPath != "" && opID != "" {
		if jerr := a.journal.UpdateSnapshotPath(opID, snapshotPath); jerr != nil {
			a.logger.Warn("journal update failed", "error", jerr)
		}
	}
	a.finishOp(opID, err)
	return snapshotPath, err
}

// Restore copies the snapshot at rawPath back into the active work slot.
func (a *App) Restore(rawPath string) error {
	snapshotPath, err := filepath.Abs(rawPath)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}

	opID := a.beginOp("Restore", "", snapshotPath)
	err = a.engine.Restore(snapshotPath)
	a.finishOp(opID, err)
	return err
}

// History returns the snapshot history for a work or snapshot path, newest
// first.
func (a *App) History(rawPath string) ([]snap.HistoryEntry, error) {
	path, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	return a.engine.FindHistory(path)
}

// Comment records a comment for an existing snapshot.
func (a *App) Comment(rawPath, comment string) error {
	snapshotPath, err := filepath.Abs(rawPath)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}
	return a.engine.SetComment(snapshotPath, comment)
}

// Operations returns the most recent journaled operations, newest first.
func (a *App) Operations(limit int) ([]journal.Operation, error) {
	return a.journal.List(limit)
}

// beginOp journals the start of an operation. Journaling problems are
// logged and swallowed — the audit trail never blocks the engine.
func (a *App) beginOp(operation, workPath, snapshotPath string) string {
	id, err := a.journal.Begin(operation, workPath, snapshotPath)
	if err != nil {
		a.logger.Warn("journal write failed", "operation", operation, "error", err)
		return ""
	}
	return id
}

func (a *App) finishOp(id string, opErr error) {
	if id == "" {
		return
	}
	if err := a.journal.Finish(id, opErr); err != nil {
		a.logger.Warn("journal update failed", "error", err)
	}
}
