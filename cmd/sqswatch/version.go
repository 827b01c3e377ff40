// File: cmd/sqswatch/version.go
// Brief: 'sqswatch version' build info.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/sqswatch/internal/version"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := version.Get()
			fmt.Printf("sqswatch %s\n", info.Version)
			fmt.Printf("  commit:     %s (%s)\n", info.GitCommit, info.GitTreeState)
			fmt.Printf("  built:      %s\n", info.BuildDate)
			fmt.Printf("  go version: %s\n", info.GoVersion)
			fmt.Printf("  platform:   %s\n", info.Platform)
			return nil
		},
	}
}
