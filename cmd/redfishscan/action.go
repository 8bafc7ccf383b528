package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/nao1215/redfishscan/internal/model"
	"github.com/nao1215/redfishscan/internal/pipeline"
	"github.com/nao1215/redfishscan/internal/redfish"
	"github.com/spf13/cobra"
)

// NewActionCmd creates the action command.
func NewActionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "action [target...]",
		Short: "Apply one write to every matching Redfish resource",
		Long: `Action crawls each target with --filter and sends the same request to
every resource whose path fully matches the filter.

Resources whose Allow header does not list the method are skipped with a
reason unless --force is given. The filter must select specific
resources; '*' alone is rejected. The body is validated as JSON before
anything is fetched. Use --dry-run to see what would be written.

Only resources reached through @odata.id or href links can be selected.
Action URIs such as Actions/#Manager.Reset/target are not crawled, so a
filter naming one matches nothing and the target fails.

Examples:
  # Set the asset tag of every system, showing the plan first
  redfishscan action -f '/redfish/v1/Systems/*' -X PATCH \
    --body '{"AssetTag":"rack1"}' --dry-run rack1

  # Delete one account on every configured service
  redfishscan action -f '/redfish/v1/AccountService/Accounts/3' -X DELETE --all

  # Read the body from a file
  redfishscan action -f '/redfish/v1/Systems/*/Bios/Settings' -X PATCH --body @bios.json rack1`,
		Args: cobra.ArbitraryArgs,
		RunE: runActionCmd,
	}

	addScanFlags(cmd, "")
	cmd.Flags().StringP("method", "X", "PATCH", "HTTP method: PATCH, POST, PUT or DELETE")
	cmd.Flags().String("body", "", "JSON request body, or @file to read it from a file")
	cmd.Flags().Bool("dry-run", false, "Report planned writes without sending them")
	cmd.Flags().Bool("force", false, "Write even where the Allow header does not list the method")

	return cmd
}

// runActionCmd executes the action command.
func runActionCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	method, err := cmd.Flags().GetString("method")
	if err != nil {
		return err
	}
	bodyFlag, err := cmd.Flags().GetString("body")
	if err != nil {
		return err
	}
	dryRun, err := cmd.Flags().GetBool("dry-run")
	if err != nil {
		return err
	}
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	body, err := readBody(bodyFlag)
	if err != nil {
		return err
	}

	// Reject a bad method, filter or body before any target is contacted,
	// using the filter each target will actually run with.
	for _, t := range resolveTargets(cmd, cfg) {
		if _, err := pipeline.NewActionStep(nil, method, t.filter, body); err != nil {
			return fmt.Errorf("configuration error: %s: %w", t.name, err)
		}
	}

	extra := func(client *redfish.Client, s targetSettings, logger *slog.Logger) ([]pipeline.Step, error) {
		step, err := pipeline.NewActionStep(client, method, s.filter, body,
			pipeline.WithActionDryRun(dryRun),
			pipeline.WithActionForce(force),
			pipeline.WithActionLogger(logger),
		)
		if err != nil {
			return nil, err
		}
		return []pipeline.Step{step}, nil
	}
	return runCollector(cmd, cfg, model.ScanAction, extra)
}

// readBody returns the --body value, reading it from a file when it starts
// with '@'.
func readBody(value string) ([]byte, error) {
	if path, ok := strings.CutPrefix(value, "@"); ok {
		data, err := os.ReadFile(path) //nolint:gosec // User-provided body path is intentional
		if err != nil {
			return nil, fmt.Errorf("failed to read body file: %w", err)
		}
		return data, nil
	}
	return []byte(value), nil
}
