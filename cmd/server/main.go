package main // Entry point package

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "incentives",
	Short: "Admin backend for the hotel booking incentive program",
	Long: `incentives serves the agent registration flow and the admin dashboard API
for the hotel booking incentive program, and carries the maintenance commands
that manage its MySQL schema and sample data.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, seedCmd, clearCmd, consumeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
