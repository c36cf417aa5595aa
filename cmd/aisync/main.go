package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "aisync",
		Short:   "AI Session Sync - record Claude Code session logs and ship them to a collector",
		Version: version,
	}

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(backlogCmd())
	rootCmd.AddCommand(doctorCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
