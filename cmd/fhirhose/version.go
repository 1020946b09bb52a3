package main

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			version := "devel"
			revision := ""
			if info, ok := debug.ReadBuildInfo(); ok {
				if info.Main.Version != "" && info.Main.Version != "(devel)" {
					version = info.Main.Version
				}
				for _, setting := range info.Settings {
					if setting.Key == "vcs.revision" {
						revision = setting.Value
					}
				}
			}
			out := cmd.OutOrStdout()
			if revision != "" {
				if len(revision) > 12 {
					revision = revision[:12]
				}
				fmt.Fprintf(out, "fhirhose %s (%s)\n", version, revision)
				return nil
			}
			fmt.Fprintf(out, "fhirhose %s\n", version)
			return nil
		},
	}
}
