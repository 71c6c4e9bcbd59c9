package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mbocsi/lightwaverf/proto"
)

func (s *MCPServer) registerTools() {
	s.Server.AddTool(mcp.NewTool("list_devices",
		mcp.WithDescription("List the known LightwaveRF devices with their last reported state"),
	), s.handleListDevices)

	s.Server.AddTool(mcp.NewTool("hub_info",
		mcp.WithDescription("Show the hub's identity, address and command queue"),
	), s.handleHubInfo)

	s.Server.AddTool(mcp.NewTool("turn_on",
		append(withSlot(), mcp.WithDescription("Turn a device on"))...,
	), s.handleTurnOn)

	s.Server.AddTool(mcp.NewTool("turn_off",
		append(withSlot(), mcp.WithDescription("Turn a device off"))...,
	), s.handleTurnOff)

	s.Server.AddTool(mcp.NewTool("dim",
		append(withSlot(),
			mcp.WithDescription("Set a dimmer's brightness"),
			mcp.WithNumber("level",
				mcp.Required(),
				mcp.Description("Brightness percentage, 0 to 100"),
			),
		)...,
	), s.handleDim)

	s.Server.AddTool(mcp.NewTool("send_command",
		mcp.WithDescription("Send a raw command to the hub, for example !F*p to start pairing"),
		mcp.WithString("command",
			mcp.Required(),
			mcp.Description("Hub command without the transaction prefix"),
		),
	), s.handleSendCommand)
}

func withSlot() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithNumber("room", mcp.Required(), mcp.Description("Room number")),
		mcp.WithNumber("device", mcp.Required(), mcp.Description("Device number within the room")),
	}
}

func (s *MCPServer) slot(request mcp.CallToolRequest) (proto.Device, error) {
	room, err := request.RequireFloat("room")
	if err != nil {
		return proto.Device{}, err
	}
	device, err := request.RequireFloat("device")
	if err != nil {
		return proto.Device{}, err
	}
	if room < 1 || device < 1 {
		return proto.Device{}, fmt.Errorf("room and device must be positive")
	}
	return s.ctrl.Device(int(room), int(device)), nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

func (s *MCPServer) handleListDevices(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	devices, err := s.ctrl.Devices(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error listing devices: %v", err)), nil
	}
	return jsonResult(map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

func (s *MCPServer) handleHubInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(map[string]any{
		"hub":       s.hub.Hub(),
		"target":    s.hub.Target(),
		"connected": s.hub.Connected(),
		"queue":     s.hub.Stats(),
	})
}

func (s *MCPServer) handleTurnOn(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	d, err := s.slot(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.ctrl.TurnOn(ctx, d); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to turn on %s: %v", d.Key(), err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Turned on %s", d.Key())), nil
}

func (s *MCPServer) handleTurnOff(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	d, err := s.slot(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.ctrl.TurnOff(ctx, d); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to turn off %s: %v", d.Key(), err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Turned off %s", d.Key())), nil
}

func (s *MCPServer) handleDim(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	d, err := s.slot(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	level, err := request.RequireFloat("level")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if level < 0 || level > 100 {
		return mcp.NewToolResultError("level must be between 0 and 100"), nil
	}
	if err := s.ctrl.Dim(ctx, d, int(level)); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to dim %s: %v", d.Key(), err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Dimmed %s to %d%%", d.Key(), int(level))), nil
}

func (s *MCPServer) handleSendCommand(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	command, err := request.RequireString("command")
	if err != nil {
		return mcp.NewToolResultError("command is required and must be a string"), nil
	}
	res, err := s.ctrl.Command(ctx, command)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Command failed: %v", err)), nil
	}
	return jsonResult(res)
}
