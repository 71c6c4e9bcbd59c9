package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/mbocsi/lightwaverf/account"
	"github.com/mbocsi/lightwaverf/app"
	"github.com/mbocsi/lightwaverf/broker"
	"github.com/mbocsi/lightwaverf/client"
	"github.com/mbocsi/lightwaverf/config"
	"github.com/mbocsi/lightwaverf/logging"
	"github.com/spf13/cobra"
)

var version = "dev"

var (
	cfgFile  string
	logLevel string
	address  string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "lightwave",
	Short: "Control LightwaveRF devices through a Link hub",
	Long: `lightwave talks to a LightwaveRF Link hub over the local network.
It sends commands one at a time, retries when the hub is busy and reports
device activity seen by the hub.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			path = config.DefaultPath()
		}
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		if address != "" {
			cfg.Hub.Address = address
		}

		if _, err := logging.Configure(cfg.LogOptions()); err != nil {
			return err
		}
		slog.Debug("Configuration loaded", "path", path, "hub", cfg.Hub.Address)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file, TOML or YAML (default is ~/.lightwave/config.toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&address, "address", "", "hub address (default is broadcast)")
}

// runtime is a connected client with its event broker and device façade.
type runtime struct {
	client *client.Client
	broker *broker.Broker
	app    *app.App
}

func connect(ctx context.Context) (*runtime, error) {
	c := client.New(cfg.ClientOptions())
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}

	b := broker.NewBroker()
	go b.Run(ctx, c.Events())

	var source app.DeviceSource
	if cfg.Account.Configured() {
		acc, err := account.New(cfg.Account.Email, cfg.Account.Pin, account.Options{Host: cfg.Account.Host})
		if err != nil {
			c.Disconnect(ctx)
			return nil, err
		}
		source = acc
	}

	a := app.NewApp(c, b, source, app.Options{
		User:           cfg.Link.User,
		DisplayUpdates: cfg.Link.DisplayUpdates,
	})
	return &runtime{client: c, broker: b, app: a}, nil
}

func (r *runtime) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.client.Disconnect(ctx); err != nil {
		slog.Warn("Disconnect failed", "error", err)
	}
}

func parseSlot(roomArg, deviceArg string) (int, int, error) {
	room, err := strconv.Atoi(roomArg)
	if err != nil || room < 1 {
		return 0, 0, fmt.Errorf("invalid room %q", roomArg)
	}
	device, err := strconv.Atoi(deviceArg)
	if err != nil || device < 1 {
		return 0, 0, fmt.Errorf("invalid device %q", deviceArg)
	}
	return room, device, nil
}
