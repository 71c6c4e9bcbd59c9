package main

import (
	"fmt"
	"time"

	"github.com/mbocsi/lightwaverf/web"
	"github.com/spf13/cobra"
)

var discoverTimeout time.Duration

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find a lightwave HTTP API advertised on the local network",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := web.Discover(discoverTimeout)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), svc.Name, svc.URL())
		return nil
	},
}

func init() {
	discoverCmd.Flags().DurationVar(&discoverTimeout, "timeout", 5*time.Second, "how long to wait for an answer")
	rootCmd.AddCommand(discoverCmd)
}
