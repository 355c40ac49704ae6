package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"snaptank/internal/app"
	"snaptank/internal/config"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer
// a.Close(). operation identifies the CLI command being run.
func newApp(operation string) (*app.App, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.New(cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

var rootCmd = &cobra.Command{
	Use:   "snaptank",
	Short: "Snapshot versioning for creative work files",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init [ROOT]",
	Short: "Initialize configuration for a project root",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		root := "."
		if len(args) > 0 {
			root = args[0]
		}
		absRoot, err := filepath.Abs(root)
		if err != nil {
			return fmt.Errorf("resolving root: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"], absRoot)
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Project Root: %s\n", absRoot)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Project Root:      %s\n", cfg.Root)
		fmt.Printf("Log Dir:           %s\n", cfg.LogDir)
		fmt.Printf("Journal:           %s\n", cfg.JournalPath)
		fmt.Printf("Work Template:     %s\n", cfg.Templates.Work)
		fmt.Printf("Snapshot Template: %s\n", cfg.Templates.Snapshot)
		return nil
	},
}

// snap command
var snapCmd = &cobra.Command{
	Use:   "snap WORKFILE",
	Short: "Take a snapshot of a work file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		comment, _ := cmd.Flags().GetString("message")
		thumbnail, _ := cmd.Flags().GetString("thumbnail")

		a, err := newApp("Snapshot")
		if err != nil {
			return err
		}
		defer a.Close()

		snapshotPath, err := a.Snapshot(args[0], thumbnail, comment)
		if err != nil {
			return fmt.Errorf("snapshot failed: %w", err)
		}

		fmt.Printf("Snapshot created: %s\n", snapshotPath)
		return nil
	},
}

// restore command
var restoreCmd = &cobra.Command{
	Use:   "restore SNAPSHOT",
	Short: "Restore a snapshot into the work file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Restore")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Restore(args[0]); err != nil {
			return fmt.Errorf("restore failed: %w", err)
		}

		fmt.Printf("Restored %s\n", args[0])
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history FILE",
	Short: "View snapshot history for a work file or snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("History")
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := a.History(args[0])
		if err != nil {
			return err
		}

		if len(entries) == 0 {
			fmt.Println("No snapshot history.")
			return nil
		}

		for _, e := range entries {
			when := "unknown time"
			if !e.Datetime.IsZero() {
				when = e.Datetime.Format("2006-01-02 15:04:05")
			}
			version := ""
			if e.HasVersion {
				version = fmt.Sprintf("  v%03d", e.Version)
			}
			if e.HasIncrement {
				version += fmt.Sprintf(".%d", e.Increment)
			}
			comment := ""
			if e.Comment != "" {
				comment = "  " + e.Comment
			}
			fmt.Printf("%s%s  %s%s\n", when, version, filepath.Base(e.File), comment)
		}
		return nil
	},
}

// comment command
var commentCmd = &cobra.Command{
	Use:   "comment SNAPSHOT TEXT",
	Short: "Attach a comment to an existing snapshot",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Comment")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Comment(args[0], args[1]); err != nil {
			return fmt.Errorf("comment failed: %w", err)
		}
		return nil
	},
}

// ops command
var opsCmd = &cobra.Command{
	Use:   "ops",
	Short: "View recent engine operations",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("Operations")
		if err != nil {
			return err
		}
		defer a.Close()

		ops, err := a.Operations(limit)
		if err != nil {
			return err
		}

		if len(ops) == 0 {
			fmt.Println("No operations recorded.")
			return nil
		}

		for _, op := range ops {
			duration := ""
			if op.FinishedAt.Valid && op.StartedAt.Valid {
				d := op.FinishedAt.Time.Sub(op.StartedAt.Time)
				duration = d.Truncate(time.Millisecond).String()
			}
			target := op.WorkPath
			if target == "" {
				target = op.SnapshotPath
			}
			fmt.Printf("%-10s  %s  %-8s  %s  %s\n",
				op.Operation,
				op.StartedAt.Time.Format("2006-01-02 15:04:05"),
				op.Status,
				duration,
				target,
			)
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(snapCmd)
	snapCmd.Flags().StringP("message", "m", "", "Comment to store with the snapshot")
	snapCmd.Flags().String("thumbnail", "", "PNG file to store as the snapshot thumbnail")
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(commentCmd)
	opsCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")
	rootCmd.AddCommand(opsCmd)
}
