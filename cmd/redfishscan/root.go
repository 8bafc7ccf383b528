package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for redfishscan.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "redfishscan",
		Short: "Crawl, inventory and compare Redfish management services",
		Long: `redfishscan walks the Redfish hypermedia graph of one or more BMCs,
following @odata.id and href links from the service root.

Every fetched resource is recorded (in the run history database and,
optionally, as a JSON file tree) together with the HTTP methods the
service advertises for it. On top of the crawl, redfishscan can collect
log entries, apply a write to every matching resource, and compare two
recorded runs.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().String("log-file", "", "Also write logs as JSON to this file (rotated)")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .redfishscan in current or home directory, then the XDG config dir)")

	cmd.AddCommand(NewInventoryCmd())
	cmd.AddCommand(NewLogsCmd())
	cmd.AddCommand(NewActionCmd())
	cmd.AddCommand(NewCompareCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command and exits with the command's exit code.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}
