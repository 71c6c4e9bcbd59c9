package main

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/mbocsi/lightwaverf/mcp"
	"github.com/mbocsi/lightwaverf/web"
	"github.com/spf13/cobra"
)

var servePair bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP control API",
	Long: `serve keeps a connection to the hub open and exposes it over HTTP,
with a websocket event stream and optionally MCP tools on stdio.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
}

// runServer blocks until ctx ends.
func runServer(ctx context.Context) error {
	rt, err := connect(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	go rt.app.Start(ctx)

	if servePair {
		if err := rt.app.EnsureRegistration(ctx); err != nil {
			return err
		}
	}
	if cfg.Account.Configured() {
		if _, err := rt.app.RefreshDevices(ctx); err != nil {
			slog.Warn("Could not load devices from account", "error", err)
		}
	}

	api, err := web.NewServer(rt.app, rt.client, rt.broker, web.Options{RateLimit: cfg.HTTP.RateLimit})
	if err != nil {
		return err
	}
	addr, err := api.Start(cfg.HTTP.Addr)
	if err != nil {
		return err
	}

	if cfg.HTTP.Advertise {
		if tcp, ok := addr.(*net.TCPAddr); ok {
			zone, err := web.Advertise(tcp.Port, "version="+version)
			if err != nil {
				slog.Warn("mDNS advertisement failed", "error", err)
			} else {
				defer zone.Shutdown()
			}
		}
	}

	if cfg.MCP.Enabled {
		srv := mcp.NewMCPServer(rt.app, rt.client, version)
		go func() {
			if err := srv.Run(); err != nil {
				slog.Error("MCP server stopped", "error", err)
			}
		}()
	}

	<-ctx.Done()
	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return api.Shutdown(shutdownCtx)
}

func init() {
	serveCmd.Flags().BoolVar(&servePair, "pair", false, "make sure this host is registered with the hub before serving")
	rootCmd.AddCommand(serveCmd)
}
