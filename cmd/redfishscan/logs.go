package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nao1215/redfishscan/internal/config"
	"github.com/nao1215/redfishscan/internal/model"
	"github.com/nao1215/redfishscan/internal/pipeline"
	"github.com/nao1215/redfishscan/internal/redfish"
	"github.com/spf13/cobra"
)

var (
	// ErrInvalidSince is returned when --since is neither a date nor a duration.
	ErrInvalidSince = errors.New("invalid --since value (use YYYY-MM-DD, RFC 3339 or a duration such as 24h)")

	// ErrInvalidSeverity is returned for an unknown --min-severity.
	ErrInvalidSeverity = errors.New("invalid --min-severity value (use ok, warning or critical)")
)

// NewLogsCmd creates the logs command.
func NewLogsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs [target...]",
		Short: "Collect log entries from Redfish log services",
		Long: `Logs crawls the LogServices of every system, manager and chassis and
reports each LogEntry resource found below them: its severity, creation
time, message and message ID.

The default filter walks /redfish/v1/*/*/LogServices; use --filter to
narrow it, e.g. to '/redfish/v1/Managers/*/LogServices/SEL'.

Examples:
  # Collect all log entries of one BMC
  redfishscan logs -u admin https://10.0.0.5

  # Only warnings and critical entries from the last day
  redfishscan logs --since 24h --min-severity warning rack1

  # Markdown report for every configured target
  redfishscan logs --all --markdown -o logs.md`,
		Args: cobra.ArbitraryArgs,
		RunE: runLogsCmd,
	}

	addScanFlags(cmd, config.DefaultLogsFilter)
	cmd.Flags().StringP("since", "s", "",
		"Only entries created after this time (YYYY-MM-DD, RFC 3339 or a duration like 24h)")
	cmd.Flags().String("min-severity", "",
		"Only entries at or above this severity (ok, warning, critical)")

	return cmd
}

// runLogsCmd executes the logs command.
func runLogsCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	sinceFlag, err := cmd.Flags().GetString("since")
	if err != nil {
		return err
	}
	since, err := parseSince(sinceFlag, time.Now())
	if err != nil {
		return err
	}

	severityFlag, err := cmd.Flags().GetString("min-severity")
	if err != nil {
		return err
	}
	minSeverity := model.SeverityUnknown
	if severityFlag != "" {
		minSeverity = model.ParseSeverity(severityFlag)
		if minSeverity == model.SeverityUnknown {
			return fmt.Errorf("%w: %q", ErrInvalidSeverity, severityFlag)
		}
	}

	extra := func(_ *redfish.Client, _ targetSettings, logger *slog.Logger) ([]pipeline.Step, error) {
		return []pipeline.Step{
			pipeline.NewLogCollectStep(
				pipeline.WithLogSince(since),
				pipeline.WithLogMinSeverity(minSeverity),
				pipeline.WithLogLogger(logger),
			),
		}, nil
	}
	return runCollector(cmd, cfg, model.ScanLogs, extra)
}

// parseSince accepts a date, an RFC 3339 timestamp or a duration counted
// back from now. An empty value yields the zero time.
func parseSince(value string, now time.Time) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return now.Add(-d), nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", time.DateOnly} {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidSince, value)
}
