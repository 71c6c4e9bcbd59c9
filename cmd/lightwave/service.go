package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"
)

// program runs the HTTP API under the OS service manager.
type program struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (p *program) Start(s service.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	go func() {
		defer close(p.done)
		if err := runServer(ctx); err != nil {
			slog.Error("Service stopped", "error", err)
		}
	}()
	return nil
}

func (p *program) Stop(s service.Service) error {
	if p.cancel != nil {
		p.cancel()
		<-p.done
	}
	return nil
}

func newService(prg *program) (service.Service, error) {
	args := []string{"service", "run"}
	if cfgFile != "" {
		abs, err := filepath.Abs(cfgFile)
		if err != nil {
			return nil, err
		}
		args = append(args, "--config", abs)
	}
	return service.New(prg, &service.Config{
		Name:        "lightwave",
		DisplayName: "LightwaveRF bridge",
		Description: "HTTP control API for a LightwaveRF Link hub",
		Arguments:   args,
	})
}

var serviceCmd = &cobra.Command{
	Use:       "service <install|uninstall|start|stop|restart|run>",
	Short:     "Manage lightwave as an OS service",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"install", "uninstall", "start", "stop", "restart", "run"},
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newService(&program{})
		if err != nil {
			return err
		}
		if args[0] == "run" {
			return s.Run()
		}
		if err := service.Control(s, args[0]); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Service", args[0], onStyle.Render("ok"))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serviceCmd)
}
