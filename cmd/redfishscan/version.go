package main

import (
	"encoding/json"
	"fmt"
	"runtime/debug"

	"github.com/nao1215/redfishscan/internal/config"
	"github.com/spf13/cobra"
)

// Set at build time with -ldflags "-X main.version=... -X main.commit=... -X main.date=...".
var (
	version = ""
	commit  = ""
	date    = ""
)

// buildDetails describes the running binary.
type buildDetails struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	UserAgent string `json:"user_agent"`
}

// readBuildDetails fills buildDetails from the ldflags variables, falling
// back to the module build info and then to placeholders.
func readBuildDetails() buildDetails {
	d := buildDetails{
		Version:   version,
		Commit:    commit,
		Date:      date,
		UserAgent: config.DefaultUserAgent,
	}

	if info, ok := debug.ReadBuildInfo(); ok {
		d.GoVersion = info.GoVersion
		if d.Version == "" && info.Main.Version != "" {
			d.Version = info.Main.Version
		}
		for _, s := range info.Settings {
			switch {
			case s.Key == "vcs.revision" && d.Commit == "":
				d.Commit = s.Value
				if len(d.Commit) > 7 {
					d.Commit = d.Commit[:7]
				}
			case s.Key == "vcs.time" && d.Date == "":
				d.Date = s.Value
			}
		}
	}

	if d.Version == "" {
		d.Version = "(devel)"
	}
	if d.Commit == "" {
		d.Commit = "unknown"
	}
	if d.Date == "" {
		d.Date = "unknown"
	}
	if d.GoVersion == "" {
		d.GoVersion = "unknown"
	}
	return d
}

func getVersion() string {
	return readBuildDetails().Version
}

// NewVersionCmd creates the version command.
func NewVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long: `Print the version, commit hash and build date of redfishscan, together
with the User-Agent it sends to Redfish services unless --user-agent is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			asJSON, err := cmd.Flags().GetBool("json")
			if err != nil {
				return err
			}

			d := readBuildDetails()
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(d)
			}

			fmt.Fprintf(out, "redfishscan version %s\n", d.Version)
			fmt.Fprintf(out, "  commit:     %s\n", d.Commit)
			fmt.Fprintf(out, "  built:      %s\n", d.Date)
			fmt.Fprintf(out, "  go:         %s\n", d.GoVersion)
			fmt.Fprintf(out, "  user agent: %s\n", d.UserAgent)
			return nil
		},
	}
	cmd.Flags().BoolP("json", "j", false, "Print version information as JSON")
	return cmd
}
