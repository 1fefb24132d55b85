package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "orderboard",
	Short: "Order intake dashboard service",
	Long: `A service that ingests restaurant orders from a REST snapshot and an
Azure Service Bus push feed, reconciles them into a single live collection,
and exposes filtered and sorted board views over an HTTP API.`,
	Run: func(cmd *cobra.Command, args []string) {
		err := cmd.Help()
		if err != nil {
			log.Error().Err(err).Msg("Failed to display help")
		}
	},
}

// Execute executes the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize()
}
