package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/perkwise/perkdocs/internal/cli"
	"github.com/perkwise/perkdocs/internal/cli/admin"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "perkdocsd",
		Short: "Perkdocs daemon and CLI",
		Long:  "Perkdocs daemon for running the document API server and ingestion pipeline",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.ProcessCmd())
	rootCmd.AddCommand(admin.MigrateCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
