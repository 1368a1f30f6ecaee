// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"github.com/spf13/cobra"
)

var configFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sipcounter",
	Short: "sipcounter - SIP message counter and link reporter",
	Long: `sipcounter tallies SIP messages per communication link and direction
and periodically renders the tallies as a fixed-width table.

Messages are consumed from a pcap capture (offline or live), from a
delimited pipe fed by an external capture tool, or from a built-in
synthetic generator. Links are identified by a canonical
(server, client, protocol, ports) key, so both directions of a dialog
land on the same row.`,
	Version: "0.1.0",
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file path")
}
