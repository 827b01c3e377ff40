// File: cmd/sqswatch/explain.go
// Brief: 'sqswatch explain' embedded runbook.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/sqswatch/docs"
)

func newExplainCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "explain",
		Short: "Print the alarm runbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Print(docs.RunbookMD)
			return nil
		},
	}
}
