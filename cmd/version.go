package cmd

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Build metadata, injected with -ldflags "-X .../cmd.Version=...".
var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

type buildMeta struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

var versionJSON bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the proxychat build",
	// Printing the version must work without a valid config.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		meta := currentBuild(debug.ReadBuildInfo)
		if versionJSON {
			return writeIndentedJSON(cmd.OutOrStdout(), meta)
		}
		fmt.Fprintln(cmd.OutOrStdout(), meta.String())
		return nil
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "Print build metadata as JSON")
	rootCmd.AddCommand(versionCmd)
}

// currentBuild fills in commit and date from the module's VCS stamp when
// the linker did not set them.
func currentBuild(read func() (*debug.BuildInfo, bool)) buildMeta {
	meta := buildMeta{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if info, ok := read(); ok {
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				if meta.Commit == "" {
					meta.Commit = s.Value
				}
			case "vcs.time":
				if meta.Date == "" {
					meta.Date = s.Value
				}
			}
		}
	}
	if len(meta.Commit) > 12 {
		meta.Commit = meta.Commit[:12]
	}
	return meta
}

func (b buildMeta) String() string {
	out := "proxychat " + b.Version
	if b.Commit != "" {
		out += " " + b.Commit
	}
	if b.Date != "" {
		out += " (" + b.Date + ")"
	}
	return out + " " + b.GoVersion + " " + b.Platform
}
