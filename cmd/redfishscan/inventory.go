package main

import (
	"github.com/nao1215/redfishscan/internal/config"
	"github.com/nao1215/redfishscan/internal/model"
	"github.com/spf13/cobra"
)

// NewInventoryCmd creates the inventory command.
func NewInventoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inventory [target...]",
		Short: "Crawl Redfish services and record every resource",
		Long: `Inventory walks the Redfish hypermedia graph of each target, starting at
the service root and following every @odata.id and href link that
matches the filter.

Each resource is fetched once. The run is recorded in the history
database together with the HTTP methods each resource allows, so that
'redfishscan compare' can show what changed between two runs.

A target is a base URI (https://10.0.0.5) or the name of a target in the
configuration file.

Examples:
  # Inventory one BMC with session authentication
  redfishscan inventory -u admin https://10.0.0.5

  # Only walk the Systems collection, four requests at a time
  redfishscan inventory -f '/redfish/v1/Systems' -n 4 rack1

  # Inventory every configured target and keep the JSON tree on disk
  redfishscan inventory --all -d ./inventory

  # Export all resources as Parquet
  redfishscan inventory --all --parquet inventory.parquet

Configuration file (.redfishscan) example:
  defaults:
    username: admin
    password: ${BMC_PASSWORD}
    insecure: true
  targets:
    rack1:
      base_uri: https://10.0.0.5
    rack2:
      base_uri: https://10.0.0.6
      auth: basic`,
		Args: cobra.ArbitraryArgs,
		RunE: runInventoryCmd,
	}

	addScanFlags(cmd, config.DefaultFilter)
	return cmd
}

// runInventoryCmd executes the inventory command.
func runInventoryCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	return runCollector(cmd, cfg, model.ScanInventory, nil)
}
