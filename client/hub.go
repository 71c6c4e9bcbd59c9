package client

import "github.com/mbocsi/lightwaverf/proto"

// HubState is what the hub has told us about itself.
type HubState struct {
	Serial   string `json:"serial,omitempty"`
	Mac      string `json:"mac,omitempty"`
	Model    string `json:"model,omitempty"`
	Firmware string `json:"firmware,omitempty"`
	Uptime   int64  `json:"uptime,omitempty"`
}

// merge keeps the first identity values seen and the latest uptime.
func (h *HubState) merge(res proto.Response) {
	if h.Serial == "" {
		h.Serial = res.Serial
	}
	if h.Mac == "" {
		h.Mac = res.Mac
	}
	if h.Model == "" {
		h.Model = res.Model
	}
	if h.Firmware == "" {
		h.Firmware = res.Firmware
	}
	if res.Uptime != 0 {
		h.Uptime = res.Uptime
	}
}

// Hub returns a snapshot of the hub's identity.
func (c *Client) Hub() HubState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hub
}
