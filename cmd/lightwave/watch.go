package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var watchJSON bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print device activity reported by the hub",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		id, events := rt.broker.Subscribe(64)
		defer rt.broker.Unsubscribe(id)

		fmt.Fprintln(cmd.ErrOrStderr(), mutedStyle.Render("Listening on "+rt.client.ReceiveAddr().String()+", Ctrl-C to stop"))
		for {
			select {
			case <-cmd.Context().Done():
				return nil
			case ev, ok := <-events:
				if !ok {
					return nil
				}
				if watchJSON {
					line, err := json.Marshal(ev)
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), string(line))
					continue
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderEvent(ev))
			}
		}
	},
}

func init() {
	watchCmd.Flags().BoolVar(&watchJSON, "json", false, "print one JSON object per event")
	rootCmd.AddCommand(watchCmd)
}
