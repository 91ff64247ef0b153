package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	// registers the documents table with the migration runner
	_ "github.com/invictusops/invictus/database/migrations"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "invictus",
	Short:         "Invictus operations dashboard",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Server
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(routeListCmd)

	// Database
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(migrateRollbackCmd)
	rootCmd.AddCommand(migrateStatusCmd)
	rootCmd.AddCommand(seedCmd)

	// Inventory
	rootCmd.AddCommand(inventoryImportCmd)
	rootCmd.AddCommand(inventoryExportCmd)
}
