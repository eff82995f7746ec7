// Package cli implements the channelctl command line client using cobra.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

const defaultServer = "http://localhost:8080"

type options struct {
	server string
}

// NewRootCmd builds the channelctl command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "channelctl",
		Short:         "Manage and use channelcast channels",
		Long:          "channelctl creates and lists channels on a channelcast server and publishes or subscribes over WebSocket.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	server := os.Getenv("CHANNELCAST_SERVER")
	if server == "" {
		server = defaultServer
	}
	rootCmd.PersistentFlags().StringVarP(&opts.server, "server", "s", server, "server base URL (env CHANNELCAST_SERVER)")

	rootCmd.AddCommand(newCreateCmd(opts))
	rootCmd.AddCommand(newListCmd(opts))
	rootCmd.AddCommand(newPublishCmd(opts))
	rootCmd.AddCommand(newSubscribeCmd(opts))

	return rootCmd
}

// Execute runs the root command and exits on error.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func (o *options) baseURL() string {
	return strings.TrimRight(o.server, "/")
}
