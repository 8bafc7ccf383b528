package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/redfishscan/internal/config"
	"github.com/nao1215/redfishscan/internal/database"
	"github.com/nao1215/redfishscan/internal/diff"
	"github.com/nao1215/redfishscan/internal/report"
	"github.com/spf13/cobra"
)

var (
	// ErrTargetRequired is returned when a compare operation needs a target.
	ErrTargetRequired = errors.New("target is required (use --list-targets to see recorded targets)")

	// ErrNotEnoughRuns is returned when fewer than two runs can be compared.
	ErrNotEnoughRuns = errors.New("at least 2 runs are required for comparison")

	// ErrRunMismatch is returned when an explicit run belongs to another target.
	ErrRunMismatch = errors.New("run belongs to a different target")

	// ErrChangesFound is returned with --exit-code when the runs differ.
	ErrChangesFound = errors.New("runs differ")
)

// compareOptions holds the compare command flags.
type compareOptions struct {
	list        bool
	listTargets bool
	show        string
	del         string
	oldID       string
	newID       string
	since       string
	command     string
	ignore      []string
	json        bool
	markdown    bool
	verbose     bool
	exitCode    bool
	dbDir       string
}

// NewCompareCmd creates the compare command.
// It compares runs recorded in the history database.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare [target]",
		Short: "Compare recorded runs of a Redfish service",
		Long: `Compare shows which resources were added, removed or modified between
two runs recorded by 'redfishscan inventory' (or logs and action).

Documents are compared line by line after pretty-printing, so the output
shows the properties that changed. Keys listed with --ignore are dropped
from every document before comparing.

By default the latest two runs of the target are compared.

Examples:
  # Compare the latest two runs
  redfishscan compare rack1

  # List recorded runs and targets
  redfishscan compare --list rack1
  redfishscan compare --list-targets

  # Compare specific runs, showing patches
  redfishscan compare --old 3f1c... --new 9b2e... -v rack1

  # Compare the first run since a date with the latest one
  redfishscan compare --since 2026-01-01 rack1

  # Ignore volatile properties and fail when anything changed
  redfishscan compare --ignore @odata.etag,DateTime --exit-code rack1

  # Print a stored report again, or delete a run
  redfishscan compare --show 3f1c...
  redfishscan compare --delete 3f1c...`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCompareCmd,
	}

	// History flags
	cmd.Flags().BoolP("list", "l", false, "List recorded runs for the target")
	cmd.Flags().BoolP("list-targets", "L", false, "List every target with recorded runs")
	cmd.Flags().String("show", "", "Print the stored report of a run")
	cmd.Flags().String("delete", "", "Delete a run from the history")

	// Run selection flags
	cmd.Flags().String("old", "", "ID of the older run (default: the run before --new)")
	cmd.Flags().String("new", "", "ID of the newer run (default: the latest run)")
	cmd.Flags().StringP("since", "s", "",
		"Compare the first run on or after this date (YYYY-MM-DD) with the latest")
	cmd.Flags().String("command", "",
		"Only consider runs of this command (inventory, logs, action)")

	// Comparison flags
	cmd.Flags().StringSlice("ignore", nil, "Top-level keys to ignore in every document")
	cmd.Flags().Bool("exit-code", false, "Exit with status 1 when the runs differ")

	// Output flags
	cmd.Flags().BoolP("json", "j", false, "Output in JSON format")
	cmd.Flags().BoolP("markdown", "m", false, "Output in Markdown format")
	cmd.Flags().String("db-dir", "", "Run history directory (default: XDG data dir)")

	return cmd
}

// parseCompareOptions reads the compare flags.
func parseCompareOptions(cmd *cobra.Command) (*compareOptions, error) {
	flags := cmd.Flags()
	opts := &compareOptions{verbose: getVerboseFlag(cmd)}

	var err error
	if opts.list, err = flags.GetBool("list"); err != nil {
		return nil, err
	}
	if opts.listTargets, err = flags.GetBool("list-targets"); err != nil {
		return nil, err
	}
	if opts.show, err = flags.GetString("show"); err != nil {
		return nil, err
	}
	if opts.del, err = flags.GetString("delete"); err != nil {
		return nil, err
	}
	if opts.oldID, err = flags.GetString("old"); err != nil {
		return nil, err
	}
	if opts.newID, err = flags.GetString("new"); err != nil {
		return nil, err
	}
	if opts.since, err = flags.GetString("since"); err != nil {
		return nil, err
	}
	if opts.command, err = flags.GetString("command"); err != nil {
		return nil, err
	}
	if opts.ignore, err = flags.GetStringSlice("ignore"); err != nil {
		return nil, err
	}
	if opts.exitCode, err = flags.GetBool("exit-code"); err != nil {
		return nil, err
	}
	if opts.json, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if opts.markdown, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if opts.dbDir, err = flags.GetString("db-dir"); err != nil {
		return nil, err
	}
	if opts.dbDir == "" {
		opts.dbDir = config.XDGDataDir()
	}

	if opts.json && opts.markdown {
		return nil, config.ErrConflictingReportFormats
	}
	if opts.oldID != "" && opts.since != "" {
		return nil, errors.New("--old and --since cannot be used together")
	}
	return opts, nil
}

// runCompareCmd executes the compare command.
func runCompareCmd(cmd *cobra.Command, args []string) error {
	opts, err := parseCompareOptions(cmd)
	if err != nil {
		return err
	}

	var target string
	if len(args) > 0 {
		target = strings.TrimSpace(args[0])
	}

	// Validate arguments before opening the database so that a usage error
	// never touches it.
	needsTarget := !opts.listTargets && opts.show == "" && opts.del == "" &&
		(opts.list || opts.newID == "" || opts.oldID == "")
	if needsTarget && target == "" {
		return ErrTargetRequired
	}

	// The history is only read here; a missing database is an error.
	db, err := database.Open(opts.dbDir, database.Options{CreateIfNotExists: false, EnableWAL: true})
	if err != nil {
		if errors.Is(err, database.ErrDatabaseNotFound) {
			return fmt.Errorf("%w (run 'redfishscan inventory' first)", err)
		}
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	switch {
	case opts.listTargets:
		return listTargets(ctx, out, db)
	case opts.list:
		return listRuns(ctx, out, db, target, opts.command)
	case opts.show != "":
		return showRun(ctx, out, db, opts)
	case opts.del != "":
		return deleteRun(ctx, out, db, opts.del)
	}

	return runComparison(ctx, out, db, target, opts)
}

// listTargets prints every target with at least one recorded run.
func listTargets(ctx context.Context, out io.Writer, db *database.CrawlDB) error {
	targets, err := db.ListTargets(ctx)
	if err != nil {
		return err
	}

	if len(targets) == 0 {
		fmt.Fprintln(out, "No recorded targets found in the database.")
		fmt.Fprintln(out, "\nUse 'redfishscan inventory <target>' to record a run.")
		return nil
	}

	fmt.Fprintf(out, "Recorded targets (%d):\n\n", len(targets))
	for _, t := range targets {
		fmt.Fprintf(out, "  • %s\n", t)
	}
	fmt.Fprintln(out, "\nUse 'redfishscan compare --list <target>' to see the runs of a target.")
	return nil
}

// listRuns prints the runs of target, newest first.
func listRuns(ctx context.Context, out io.Writer, db *database.CrawlDB, target, command string) error {
	runs, err := selectRuns(ctx, db, target, command)
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Fprintf(out, "No runs found for %s\n", target)
		return nil
	}

	fmt.Fprintf(out, "Runs for %s (%d):\n\n", target, len(runs))
	fmt.Fprintf(out, "  %-36s  %-19s  %-9s  %7s  %8s\n", "ID", "Started", "Command", "Visited", "Failures")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 87))
	for _, r := range runs {
		fmt.Fprintf(out, "  %-36s  %-19s  %-9s  %7d  %8d\n",
			r.ID,
			r.StartedAt.Local().Format(time.DateTime),
			r.Command,
			r.Visited,
			r.Failures,
		)
	}

	fmt.Fprintln(out, "\nUse 'redfishscan compare <target>' to compare the latest two runs.")
	fmt.Fprintln(out, "Use 'redfishscan compare --old <id> <target>' to compare a run with the latest.")
	return nil
}

// selectRuns lists the runs of target, newest first, optionally only those
// of one command.
func selectRuns(ctx context.Context, db *database.CrawlDB, target, command string) ([]database.Run, error) {
	runs, err := db.ListRuns(ctx, target, 0)
	if err != nil {
		return nil, err
	}
	if command == "" {
		return runs, nil
	}

	filtered := runs[:0]
	for _, r := range runs {
		if r.Command == command {
			filtered = append(filtered, r)
		}
	}
	return filtered, nil
}

// showRun prints the stored report of a run.
func showRun(ctx context.Context, out io.Writer, db *database.CrawlDB, opts *compareOptions) error {
	stored, err := db.GetReport(ctx, opts.show)
	if err != nil {
		return err
	}

	var w report.Writer
	switch {
	case opts.json:
		w = report.NewJSONWriter(out, report.WithPrettyPrint())
	case opts.markdown:
		w = report.NewMarkdownWriter(out)
	default:
		w = report.NewSimpleWriter(out, report.WithVerbose(opts.verbose))
	}
	_, err = w.Write(stored)
	return err
}

// deleteRun removes a run and its snapshots.
func deleteRun(ctx context.Context, out io.Writer, db *database.CrawlDB, runID string) error {
	if err := db.DeleteRun(ctx, runID); err != nil {
		return err
	}
	fmt.Fprintf(out, "Deleted run %s\n", runID)
	return nil
}

// runComparison picks the two runs, diffs their snapshots and writes the result.
func runComparison(ctx context.Context, out io.Writer, db *database.CrawlDB, target string, opts *compareOptions) error {
	oldRun, newRun, err := pickRuns(ctx, db, target, opts)
	if err != nil {
		return err
	}

	oldSnaps, err := db.ListSnapshots(ctx, oldRun.ID)
	if err != nil {
		return err
	}
	newSnaps, err := db.ListSnapshots(ctx, newRun.ID)
	if err != nil {
		return err
	}

	differ := diff.NewDiffer(diff.WithIgnoreKeys(opts.ignore...))
	result := differ.Compare(oldRun.ID, oldSnaps, newRun.ID, newSnaps)

	var w report.Writer
	switch {
	case opts.json:
		w = report.NewJSONWriter(out, report.WithPrettyPrint())
	case opts.markdown:
		w = report.NewMarkdownWriter(out)
	default:
		w = report.NewSimpleWriter(out, report.WithVerbose(opts.verbose))
	}
	if _, err := w.WriteDiff(result); err != nil {
		return err
	}

	if opts.exitCode && result.HasChanges() {
		return ErrChangesFound
	}
	return nil
}

// pickRuns resolves the older and newer run from the flags. The newer run
// defaults to the latest; the older one to the run right before it.
func pickRuns(ctx context.Context, db *database.CrawlDB, target string, opts *compareOptions) (*database.Run, *database.Run, error) {
	// Two explicit IDs need no history lookup.
	if opts.oldID != "" && opts.newID != "" {
		oldRun, err := db.GetRun(ctx, opts.oldID)
		if err != nil {
			return nil, nil, err
		}
		newRun, err := db.GetRun(ctx, opts.newID)
		if err != nil {
			return nil, nil, err
		}
		if target != "" && (oldRun.Target != target || newRun.Target != target) {
			return nil, nil, fmt.Errorf("%w: %s", ErrRunMismatch, target)
		}
		return oldRun, newRun, nil
	}

	runs, err := selectRuns(ctx, db, target, opts.command)
	if err != nil {
		return nil, nil, err
	}
	if len(runs) == 0 {
		return nil, nil, fmt.Errorf("no runs found for %s", target)
	}

	newIdx := 0
	if opts.newID != "" {
		newIdx = indexOfRun(runs, opts.newID)
		if newIdx < 0 {
			return nil, nil, fmt.Errorf("%w: %s is not a run of %s", ErrRunMismatch, opts.newID, target)
		}
	}

	oldIdx := newIdx + 1
	switch {
	case opts.oldID != "":
		oldIdx = indexOfRun(runs, opts.oldID)
		if oldIdx < 0 {
			return nil, nil, fmt.Errorf("%w: %s is not a run of %s", ErrRunMismatch, opts.oldID, target)
		}
	case opts.since != "":
		sinceDate, err := time.ParseInLocation(time.DateOnly, opts.since, time.Local)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid date format (use YYYY-MM-DD): %w", err)
		}
		// runs are newest first, so the oldest match is the last one.
		oldIdx = -1
		for i := len(runs) - 1; i > newIdx; i-- {
			if !runs[i].StartedAt.Before(sinceDate) {
				oldIdx = i
				break
			}
		}
		if oldIdx < 0 {
			return nil, nil, fmt.Errorf("%w: no earlier run since %s", ErrNotEnoughRuns, opts.since)
		}
	}

	if oldIdx >= len(runs) || oldIdx == newIdx {
		return nil, nil, fmt.Errorf("%w (found %d)", ErrNotEnoughRuns, len(runs))
	}
	return &runs[oldIdx], &runs[newIdx], nil
}

// indexOfRun returns the index of the run with id, or -1.
func indexOfRun(runs []database.Run, id string) int {
	for i, r := range runs {
		if r.ID == id {
			return i
		}
	}
	return -1
}
