// File: cmd/sqswatch/compile.go
// Brief: 'sqswatch compile' template rendering.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/example/sqswatch/internal/monitor"
)

func newCompileCommand() *cobra.Command {
	format := "json"
	var outDir string
	var tf *targetFlags
	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Render each queue's monitoring template without touching AWS",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tmplFormat, err := monitor.ParseTemplateFormat(format)
			if err != nil {
				return err
			}
			targets, _, err := tf.resolve()
			if err != nil {
				return err
			}
			if outDir != "" {
				if err := os.MkdirAll(outDir, 0o755); err != nil {
					return fmt.Errorf("create %s: %w", outDir, err)
				}
			}
			for i, t := range targets {
				s, err := monitor.Compile(t.Queue, t.Email)
				if err != nil {
					return err
				}
				raw, err := monitor.RenderTemplate(s, tmplFormat)
				if err != nil {
					return err
				}
				if outDir == "" {
					if i > 0 {
						fmt.Println()
					}
					if len(targets) > 1 {
						fmt.Printf("# %s\n", s.StackName)
					}
					os.Stdout.Write(raw)
					continue
				}
				path := filepath.Join(outDir, fmt.Sprintf("%s.%s", s.StackName, tmplFormat))
				if err := os.WriteFile(path, raw, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", path, err)
				}
				fmt.Printf("wrote %s\n", path)
			}
			return nil
		},
	}
	tf = addTargetFlags(cmd)
	cmd.Flags().StringVar(&format, "format", format, "Template format (json, yaml)")
	cmd.Flags().StringVar(&outDir, "out-dir", "", "Write templates into this directory instead of stdout")
	return cmd
}
