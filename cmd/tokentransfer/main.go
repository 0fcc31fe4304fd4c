package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "tokentransfer",
	Short: "Token transfer service",
	Long: `tokentransfer moves fungible token balances between holding accounts.

Available subcommands:
  serve   - Run the HTTP API, the Kafka instruction consumer and the outbox relay
  migrate - Apply or revert database migrations
  derive  - Print the holding account address of an owner for a mint`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (defaults to $TOKENTRANSFER_CONFIG)")
	rootCmd.AddCommand(serveCmd, migrateCmd, deriveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
