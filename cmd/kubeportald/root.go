package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "kubeportald",
	Short: "Local daemon multiplexing port forwards to sockets or Kubernetes pods",
	Long: `kubeportald manages a set of named port forwards, each either a raw
TCP socket forward or a Kubernetes pod port-forward reached through a
Service. Forwards are grouped, started on demand, and controlled over
gRPC, an MCP tool interface, and an HTTP status endpoint.`,
	SilenceUsage: true,
}

// SetVersion sets the version reported by the version subcommand and
// rootCmd.Version, called once from main with the build-injected value.
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "kubeportald version %s\n" .Version}}`)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of kubeportald",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("kubeportald version %s\n", version)
		},
	}
}
