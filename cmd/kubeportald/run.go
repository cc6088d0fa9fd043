package main

import (
	"github.com/spf13/cobra"

	"github.com/kubeportal/kubeportal/internal/bootstrap"
)

var (
	runSettingsPath string
	runConfigPath   string
	runForeground   bool
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the kubeportald daemon",
		Long: `Starts the forward manager and its transports (gRPC, HTTP status,
and MCP tools when configured) and blocks until interrupted.`,
		Args: cobra.NoArgs,
		RunE: runRun,
	}

	cmd.Flags().StringVar(&runSettingsPath, "settings", "", "path to the daemon settings file (default: per-user app data dir)")
	cmd.Flags().StringVar(&runConfigPath, "config", "", "path to the forward registry file (default: per-user app data dir)")
	cmd.Flags().BoolVar(&runForeground, "foreground", true, "run attached to the calling terminal; kubeportald never detaches, and false only logs a warning")
	return cmd
}

func runRun(cmd *cobra.Command, args []string) error {
	return bootstrap.Run(bootstrap.Config{
		Version:      version,
		SettingsPath: runSettingsPath,
		ConfigPath:   runConfigPath,
		Foreground:   runForeground,
	})
}
