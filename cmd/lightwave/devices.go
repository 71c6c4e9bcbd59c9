package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var devicesJSON bool

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List the devices stored in the LightwaveRF account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		devices, err := rt.app.RefreshDevices(cmd.Context())
		if err != nil {
			return err
		}
		if devicesJSON {
			out, err := json.MarshalIndent(devices, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderDevices(devices))
		return nil
	},
}

var hubCmd = &cobra.Command{
	Use:   "hub",
	Short: "Query the hub and show what it reports about itself",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		if _, err := rt.app.IsRegistered(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderHub(rt.client.Hub(), rt.client.Target()))
		return nil
	},
}

func init() {
	devicesCmd.Flags().BoolVar(&devicesJSON, "json", false, "print JSON instead of a table")
	rootCmd.AddCommand(devicesCmd, hubCmd)
}
