package mcp

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"
	"github.com/mbocsi/lightwaverf/app"
	"github.com/mbocsi/lightwaverf/client"
	"github.com/mbocsi/lightwaverf/proto"
	"github.com/mbocsi/lightwaverf/queue"
)

type Controller interface {
	TurnOn(ctx context.Context, d proto.Device) error
	TurnOff(ctx context.Context, d proto.Device) error
	Dim(ctx context.Context, d proto.Device, percentage int) error
	Command(ctx context.Context, command string) (proto.Response, error)
	Devices(ctx context.Context) ([]app.DeviceState, error)
	Device(room, device int) proto.Device
}

type HubInfo interface {
	Hub() client.HubState
	Target() string
	Stats() queue.Stats
	Connected() bool
}

type MCPServer struct {
	Server *server.MCPServer

	ctrl Controller
	hub  HubInfo
}

func NewMCPServer(ctrl Controller, hub HubInfo, version string) *MCPServer {
	s := &MCPServer{
		Server: server.NewMCPServer("LightwaveRF", version, server.WithToolCapabilities(false)),
		ctrl:   ctrl,
		hub:    hub,
	}
	s.registerTools()
	return s
}

// Run serves tools over stdin/stdout until the client hangs up.
func (s *MCPServer) Run() error {
	slog.Info("Started stdio MCP server")
	defer func() {
		slog.Info("Shut down stdio MCP server")
	}()
	return server.ServeStdio(s.Server)
}
