// Command teamfinder runs the team finder backend services: the user
// service, the team service, and the notification gateway.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "teamfinder",
	Short: "Team finder backend services",
	Long: `Teamfinder is an event-driven backend for finding gaming teammates.

Each subcommand runs one service. The services communicate exclusively
through RabbitMQ topic exchanges and keep their own stores.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(teamCmd)
	rootCmd.AddCommand(notificationCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
