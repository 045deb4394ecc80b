// Package main implements the entry point for the voicetask server, which
// stores users' tasks and their audio recordings and serves them over HTTP.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "voicetask",
		Short: "Task and audio attachment server",
		Long: `voicetask keeps per-user tasks with audio attachments.

Configuration comes from an optional YAML file and VOICETASK_* environment
variables, for example VOICETASK_AUTH_JWT_SECRET or VOICETASK_STORAGE_DRIVER.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	root.AddCommand(newServeCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newUserCmd())
	return root
}

func main() {
	ctx, stop := signalContext()
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error: "+err.Error())
		os.Exit(1)
	}
}
