package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harrison/far/internal/config"
	"github.com/harrison/far/internal/journal"
	"github.com/harrison/far/internal/models"
)

// NewHistoryCommand creates the 'far history' command
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show journaled runs",
		Long: `Display runs recorded with --journal, newest first.

With --run, list the per-file outcomes of one run instead, optionally
restricted to some statuses:
  far history --run <id> --status FAILED --status WALK_ERROR

A pattern that is literally "history" can still be replaced by putting
the arguments after "--":
  far -- history journal`,
		Args: cobra.NoArgs,
		RunE: runHistory,
	}

	cmd.Flags().Int("limit", 10, "Maximum number of runs to show")
	cmd.Flags().String("run", "", "Show the file outcomes of this run")
	cmd.Flags().StringSlice("status", nil, "Only show outcomes with these statuses")
	cmd.Flags().String("journal-db", "", "Path to the journal database")

	return cmd
}

func runHistory(cmd *cobra.Command, args []string) error {
	output := cmd.OutOrStdout()

	configured, _ := cmd.Flags().GetString("journal-db")
	dbPath, err := config.GetJournalDBPath(configured)
	if err != nil {
		return fmt.Errorf("failed to get journal database path: %w", err)
	}

	if _, err := os.Stat(dbPath); errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(output, "No runs recorded yet. Use --journal to record runs.")
		return nil
	}

	store, err := journal.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer store.Close()

	ctx := context.Background()
	enabled := useColor(output)

	if runID, _ := cmd.Flags().GetString("run"); runID != "" {
		statuses, _ := cmd.Flags().GetStringSlice("status")
		for i, s := range statuses {
			statuses[i] = strings.ToUpper(strings.TrimSpace(s))
			if !knownStatus(statuses[i]) {
				return fmt.Errorf("unknown status %q", s)
			}
		}
		outcomes, err := store.Outcomes(ctx, runID, statuses...)
		if err != nil {
			return fmt.Errorf("get outcomes: %w", err)
		}
		printOutcomes(output, enabled, runID, outcomes)
		return nil
	}

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := store.RecentRuns(ctx, limit)
	if err != nil {
		return fmt.Errorf("get runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Fprintln(output, "No runs recorded yet. Use --journal to record runs.")
		return nil
	}
	printRuns(output, enabled, runs)
	return nil
}

func knownStatus(s string) bool {
	switch s {
	case models.StatusReplaced, models.StatusTooBig, models.StatusNotPrintable,
		models.StatusFailed, models.StatusWalkError, models.StatusDuplicate:
		return true
	}
	return false
}

// printRuns formats and prints recent runs
func printRuns(w io.Writer, enabled bool, runs []journal.RunRecord) {
	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	yellow := color.New(color.FgYellow)
	gray := color.New(color.FgHiBlack)

	fmt.Fprintln(w, paint(enabled, cyan, fmt.Sprintf("=== Recent runs (%d) ===", len(runs))))

	for _, run := range runs {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "%s %s\n", paint(enabled, cyan, "Run"), run.ID)
		fmt.Fprintf(w, "  Started: %s %s\n",
			run.StartedAt.Format("2006-01-02 15:04:05"),
			paint(enabled, gray, "("+humanize.Time(run.StartedAt)+")"))
		fmt.Fprintf(w, "  Pattern: %q -> %q (%s)\n", run.Pattern, run.Replacement, run.Mode)
		fmt.Fprintf(w, "  Roots: %s\n", strings.Join(run.Roots, ", "))

		if !run.Finished() {
			fmt.Fprintf(w, "  Status: %s\n", paint(enabled, yellow, "INCOMPLETE"))
			continue
		}

		s := run.Summary
		status := paint(enabled, green, "OK")
		if s.Failures() > 0 {
			status = paint(enabled, red, fmt.Sprintf("%d failure(s)", s.Failures()))
		}
		fmt.Fprintf(w, "  Status: %s\n", status)
		fmt.Fprintf(w, "  Files: %d total, %d replaced, %d skipped, %d duplicates in %s\n",
			s.Total(), s.Replaced, s.TooBig+s.NotPrintable, s.Duplicates, s.Duration)
	}
}

// printOutcomes formats and prints the file outcomes of one run
func printOutcomes(w io.Writer, enabled bool, runID string, outcomes []journal.OutcomeRecord) {
	cyan := color.New(color.FgCyan, color.Bold)

	fmt.Fprintln(w, paint(enabled, cyan, fmt.Sprintf("=== Run %s: %d outcome(s) ===", runID, len(outcomes))))
	for _, o := range outcomes {
		line := fmt.Sprintf("%-13s %s", o.Status, o.Path)
		if o.ErrorMessage != "" {
			line += ": " + o.ErrorMessage
		}
		fmt.Fprintln(w, paint(enabled, statusColor(o.Status), line))
	}
}

func statusColor(status string) *color.Color {
	switch status {
	case models.StatusReplaced:
		return color.New(color.FgGreen)
	case models.StatusTooBig, models.StatusNotPrintable, models.StatusDuplicate:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgRed)
	}
}
