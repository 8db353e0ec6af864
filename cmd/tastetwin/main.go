package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:           "tastetwin",
	Short:         "Taste-similarity matching service",
	Long:          "tastetwin matches users by how similar their streaming taste profiles are.\nRated titles become embedding vectors, vectors become profiles, and profiles\nare ranked against each other by cosine similarity.",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(similarCmd)
	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(submissionsCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(configCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
