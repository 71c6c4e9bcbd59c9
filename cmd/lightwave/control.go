package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/mbocsi/lightwaverf/proto"
	"github.com/spf13/cobra"
)

var sendCmd = &cobra.Command{
	Use:   "send <command>",
	Short: "Send a raw command and print the hub's reply",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		res, err := rt.app.Command(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

var onCmd = &cobra.Command{
	Use:   "on <room> <device>",
	Short: "Turn a device on",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDevice(cmd, args, func(rt *runtime, d proto.Device) error {
			if err := rt.app.TurnOn(cmd.Context(), d); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), onStyle.Render("on"), deviceLabel(d))
			return nil
		})
	},
}

var offCmd = &cobra.Command{
	Use:   "off <room> <device>",
	Short: "Turn a device off",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDevice(cmd, args, func(rt *runtime, d proto.Device) error {
			if err := rt.app.TurnOff(cmd.Context(), d); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), offStyle.Render("off"), deviceLabel(d))
			return nil
		})
	},
}

var dimCmd = &cobra.Command{
	Use:   "dim <room> <device> <percentage>",
	Short: "Dim a device",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		pct, err := strconv.Atoi(args[2])
		if err != nil || pct < 0 || pct > 100 {
			return fmt.Errorf("invalid percentage %q", args[2])
		}
		return withDevice(cmd, args[:2], func(rt *runtime, d proto.Device) error {
			if err := rt.app.Dim(cmd.Context(), d, pct); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), onStyle.Render(fmt.Sprintf("%d%%", pct)), deviceLabel(d))
			return nil
		})
	},
}

var pairCmd = &cobra.Command{
	Use:   "pair",
	Short: "Register this host with the hub",
	Long: `pair checks whether the hub knows this host and, when it does not,
starts pairing and waits until the button on the hub is pressed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		fmt.Fprintln(cmd.OutOrStdout(), "Checking registration, press the button on the hub if asked")
		if err := rt.app.EnsureRegistration(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), onStyle.Render("registered"), "with", rt.client.Target())
		return nil
	},
}

// withDevice connects, resolves the device names when an account is set up
// and runs fn.
func withDevice(cmd *cobra.Command, args []string, fn func(*runtime, proto.Device) error) error {
	room, device, err := parseSlot(args[0], args[1])
	if err != nil {
		return err
	}
	rt, err := connect(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()

	if cfg.Account.Configured() {
		if _, err := rt.app.Devices(cmd.Context()); err != nil {
			slog.Warn("Could not load device names", "error", err)
		}
	}
	return fn(rt, rt.app.Device(room, device))
}

func init() {
	rootCmd.AddCommand(sendCmd, onCmd, offCmd, dimCmd, pairCmd)
}
