// main.go bootstraps sqswatch: it builds the root Cobra command, wires viper
// config binding, and executes with a signal-aware context.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/aws/smithy-go"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rootCmd := newRootCommand()
	err := rootCmd.ExecuteContext(ctx)
	handleError(err)
	if err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var region string
	logLevel := "info"
	cmd := &cobra.Command{
		Use:           "sqswatch",
		Short:         "Provision queue-depth, message-age, and divergence monitoring for SQS queues",
		Long:          "sqswatch compiles a fixed monitoring stack (notification topic, dashboard, three alarms) per SQS queue and reconciles it through CloudFormation.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&region, "region", "", "AWS region (overrides AWS_REGION and the watch file)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", logLevel, "Log level for sqswatch output (debug, info, warn, error)")

	planCmd := newPlanCommand()
	compileCmd := newCompileCommand()
	applyCmd := newApplyCommand(&region, &logLevel)
	deleteCmd := newDeleteCommand(&region, &logLevel)
	diffCmd := newDiffCommand(&region)
	statusCmd := newStatusCommand(&region)
	metricsCmd := newMetricsCommand(&region)
	outputsCmd := newOutputsCommand(&region)
	runsCmd := newRunsCommand()
	cmd.AddCommand(
		planCmd,
		compileCmd,
		applyCmd,
		deleteCmd,
		diffCmd,
		statusCmd,
		metricsCmd,
		outputsCmd,
		runsCmd,
		newExplainCommand(),
		newVersionCommand(),
	)
	cmd.Example = `  # Inspect what a single queue's stack looks like
  sqswatch plan --queue orders-queue --email ops@example.com

  # Apply every queue in sqswatch.yaml
  sqswatch apply --auto-approve

  # Current alarm states and subscription confirmations
  sqswatch status --queue orders-queue --email ops@example.com`
	bindViper(cmd, planCmd, compileCmd, applyCmd, deleteCmd, diffCmd, statusCmd, metricsCmd, outputsCmd, runsCmd)
	return cmd
}

func bindViper(commands ...*cobra.Command) {
	if len(commands) == 0 {
		return
	}
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.SetEnvPrefix("SQSWATCH")
	v.AutomaticEnv()
	configFile := os.Getenv("SQSWATCH_CONFIG")
	configureConfigFile(v, configFile)

	cobra.OnInitialize(func() {
		for _, cmd := range commands {
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				cobra.CheckErr(err)
			}
			if err := v.BindPFlags(cmd.PersistentFlags()); err != nil {
				cobra.CheckErr(err)
			}
		}
		if err := readConfigFile(v, configFile != ""); err != nil {
			cobra.CheckErr(err)
		}
		for _, cmd := range commands {
			flagSets := []*pflag.FlagSet{cmd.Flags(), cmd.PersistentFlags()}
			for _, fs := range flagSets {
				fs.VisitAll(func(f *pflag.Flag) {
					if f.Changed {
						return
					}
					if !v.IsSet(f.Name) {
						return
					}
					val := fmt.Sprintf("%v", v.Get(f.Name))
					if val != "" {
						_ = f.Value.Set(val)
					}
				})
			}
		}
	})
}

func configureConfigFile(v *viper.Viper, explicitPath string) {
	if explicitPath != "" {
		v.SetConfigFile(explicitPath)
		return
	}
	v.SetConfigName("config")
	for _, dir := range configSearchDirs() {
		v.AddConfigPath(dir)
	}
}

func readConfigFile(v *viper.Viper, strict bool) error {
	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if errors.As(err, &cfgErr) && !strict {
			return nil
		}
		return err
	}
	return nil
}

func configSearchDirs() []string {
	added := make(map[string]struct{})
	var dirs []string
	add := func(path string) {
		if path == "" {
			return
		}
		if _, ok := added[path]; ok {
			return
		}
		added[path] = struct{}{}
		dirs = append(dirs, path)
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		add(filepath.Join(xdg, "sqswatch"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		add(filepath.Join(home, ".config", "sqswatch"))
		add(filepath.Join(home, ".sqswatch"))
	}
	add(".")
	return dirs
}

func handleError(err error) {
	if err == nil || errors.Is(err, pflag.ErrHelp) {
		return
	}
	message := err.Error()
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ExpiredToken", "ExpiredTokenException", "InvalidClientTokenId", "UnrecognizedClientException":
			message = fmt.Sprintf("%s\nHint: AWS credentials were rejected. Refresh them (aws sso login / aws-vault) and retry.", err)
		case "AccessDenied", "AccessDeniedException":
			message = fmt.Sprintf("%s\nHint: the active AWS principal lacks CloudFormation/CloudWatch/SNS permissions for this stack.", err)
		case "Throttling", "ThrottlingException", "RequestLimitExceeded":
			message = fmt.Sprintf("%s\nHint: API throttling. Lower --concurrency or retry in a moment.", err)
		}
	}
	if strings.Contains(message, "no EC2 IMDS role") || strings.Contains(message, "failed to retrieve credentials") {
		message = fmt.Sprintf("%s\nHint: no AWS credentials found. Set AWS_PROFILE or export access keys.", err)
	}
	fmt.Fprintf(os.Stderr, "Error: %s\n", message)
}
