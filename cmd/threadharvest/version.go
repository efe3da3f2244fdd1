package main

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Release metadata, injected with -ldflags. A plain `go build` leaves
// these empty and the values fall back to whatever the toolchain
// embedded in the binary.
var (
	version = ""
	commit  = ""
	date    = ""
)

// buildSetting looks up one key in the binary's embedded build info.
func buildSetting(key string) (string, bool) {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "", false
	}
	for _, s := range info.Settings {
		if s.Key == key {
			return s.Value, true
		}
	}
	return "", false
}

// getVersion returns the release version, the module version from build
// info, or "(devel)".
func getVersion() string {
	if version != "" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "(devel)"
}

// getCommit returns the short VCS revision the binary was built from.
func getCommit() string {
	if commit != "" {
		return commit
	}
	if rev, ok := buildSetting("vcs.revision"); ok && rev != "" {
		if len(rev) > 7 {
			rev = rev[:7]
		}
		return rev
	}
	return "unknown"
}

// getDate returns the build timestamp.
func getDate() string {
	if date != "" {
		return date
	}
	if t, ok := buildSetting("vcs.time"); ok && t != "" {
		return t
	}
	return "unknown"
}

// NewVersionCmd creates the version command.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Print the version, VCS revision, and build date of this binary.`,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "threadharvest version %s\n", getVersion())
			fmt.Fprintf(cmd.OutOrStdout(), "revision %s, built %s\n", getCommit(), getDate())
		},
	}
}
