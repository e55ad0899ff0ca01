package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "wali-payments",
	Short: "Payment orchestration service",
	Long:  "Orchestrates mobile-money and card payments across Senegalese providers, with reconciliation and expiry jobs.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
