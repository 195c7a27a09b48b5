package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "api-subscriptions-service",
	Short: "API subscriptions service",
	Long:  "Keeps API subscriptions in MySQL and the API Management gateway consistent.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
