package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "kiosk-payments",
	Short: "Kiosk payments service",
	Long:  "A Swish payments service for unattended kiosks: payment requests, provider callbacks, and settlement of paid payments.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
