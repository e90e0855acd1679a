package main

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// buildVersion reads the module version stamped by the Go toolchain. Source
// builds report "devel" because the toolchain stamps "(devel)" instead of a
// tag.
func buildVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "devel"
	}
	version := info.Main.Version
	if version == "" || version == "(devel)" {
		return "devel"
	}
	return version
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print the winnow version",
		Annotations: map[string]string{skipConfigAnnotation: "true"},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "winnow %s", buildVersion())
			if info, ok := debug.ReadBuildInfo(); ok && info.GoVersion != "" {
				fmt.Fprintf(out, " (%s)", info.GoVersion)
			}
			fmt.Fprintln(out)
			return nil
		},
	}
}
