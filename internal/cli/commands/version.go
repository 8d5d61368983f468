package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// VersionInfo describes the running binary.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

// NewVersionCommand creates the version command.
func NewVersionCommand(info VersionInfo) *cobra.Command {
	if info.GoVersion == "" {
		info.GoVersion = runtime.Version()
	}

	var short bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display the leapsort version, the commit it was built from and the Go toolchain.`,
		Run: func(cmd *cobra.Command, _ []string) {
			w := cmd.OutOrStdout()
			if short {
				_, _ = fmt.Fprintln(w, info.Version)
				return
			}
			_, _ = fmt.Fprintf(w, "leapsort v%s\n", info.Version)
			_, _ = fmt.Fprintf(w, "  commit:  %s\n", info.Commit)
			_, _ = fmt.Fprintf(w, "  built:   %s\n", info.BuildDate)
			_, _ = fmt.Fprintf(w, "  go:      %s\n", info.GoVersion)
		},
	}
	cmd.Flags().BoolVar(&short, "short", false, "Print only the version number")
	return cmd
}
