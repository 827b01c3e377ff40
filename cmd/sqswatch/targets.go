// File: cmd/sqswatch/targets.go
// Brief: Resolving --queue/--email flags or the watch file into targets.

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/sqswatch/internal/watchfile"
)

// targetFlags is the shared input surface of every per-queue command: either
// one queue via flags, or a fleet via the watch file.
type targetFlags struct {
	queue     string
	email     string
	watchPath string
}

func addTargetFlags(cmd *cobra.Command) *targetFlags {
	tf := &targetFlags{}
	cmd.Flags().StringVar(&tf.queue, "queue", "", "Name of the monitored SQS queue")
	cmd.Flags().StringVar(&tf.email, "email", "", "Email address alarms notify")
	cmd.Flags().StringVar(&tf.watchPath, "watch-file", "", "Path to a sqswatch.yaml fleet file (default: probe the working directory)")
	return tf
}

// resolve returns the compile targets plus the watch file's region (empty
// when targets came from flags).
func (tf *targetFlags) resolve() ([]watchfile.Target, string, error) {
	queue := strings.TrimSpace(tf.queue)
	email := strings.TrimSpace(tf.email)
	watchPath := strings.TrimSpace(tf.watchPath)

	if queue != "" || email != "" {
		if watchPath != "" {
			return nil, "", fmt.Errorf("--queue/--email and --watch-file are mutually exclusive")
		}
		if queue == "" {
			return nil, "", fmt.Errorf("--email requires --queue")
		}
		if email == "" {
			return nil, "", fmt.Errorf("--queue requires --email")
		}
		return []watchfile.Target{{Queue: queue, Email: email}}, "", nil
	}

	if watchPath == "" {
		watchPath = watchfile.LocateDefault()
	}
	if watchPath == "" {
		return nil, "", fmt.Errorf("no --queue/--email given and no %s found", watchfile.DefaultNames[0])
	}
	f, err := watchfile.Load(watchPath)
	if err != nil {
		return nil, "", err
	}
	return f.Targets(), f.Region, nil
}

// pickRegion applies precedence: the --region flag wins, then the watch
// file, then whatever the AWS SDK resolves from the environment.
func pickRegion(flagRegion *string, watchRegion string) string {
	if flagRegion != nil && strings.TrimSpace(*flagRegion) != "" {
		return strings.TrimSpace(*flagRegion)
	}
	return strings.TrimSpace(watchRegion)
}
