package main

import (
	"fmt"
	"os"

	"github.com/bmad-tools/dash/cli"
	"github.com/bmad-tools/dash/cmd"
)

func main() {
	rootCmd := cli.NewStandardCommand(
		"dash",
		"Local dashboard daemon for BMAD Method projects",
	)

	rootCmd.AddCommand(cmd.NewServeCmd())
	rootCmd.AddCommand(cmd.NewVersionCmd())
	cli.ApplyStyledHelpRecursive(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
