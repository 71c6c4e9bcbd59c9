package proto

import (
	"encoding/json"
	"math"
	"strings"
	"time"
)

// RetryablePrefix marks a hub reply meaning "device busy, send again".
const RetryablePrefix = "ERR,6,"

// Response is one decoded hub datagram, whichever framing it arrived in.
type Response struct {
	ID    int    `json:"id"`
	HasID bool   `json:"-"`
	Error string `json:"error,omitempty"` // empty when the hub reported no error

	Message string `json:"message,omitempty"` // line framing body

	Fn     string `json:"fn,omitempty"`
	Room   int    `json:"room,omitempty"`
	Device int    `json:"dev,omitempty"`
	Param  int    `json:"param,omitempty"`

	Serial   string `json:"serial,omitempty"`
	Mac      string `json:"mac,omitempty"`
	Model    string `json:"prod,omitempty"`
	Firmware string `json:"fw,omitempty"`
	Uptime   int64  `json:"uptime,omitempty"`

	Type     string `json:"type,omitempty"`
	Msg      string `json:"msg,omitempty"`
	PairType string `json:"pairType,omitempty"`

	// Fields holds every key of a structured datagram, including the ones
	// promoted above.
	Fields map[string]any `json:"fields,omitempty"`
}

func (r Response) HasError() bool {
	return r.Error != ""
}

// Retryable reports whether the hub asked for the command to be resent.
func (r Response) Retryable() bool {
	return strings.HasPrefix(r.Error, RetryablePrefix)
}

// Linked reports a successful pairing with the hub.
func (r Response) Linked() bool {
	return r.Type == "link" && r.Msg == "success"
}

// HasTarget reports whether the response addresses a single device.
func (r Response) HasTarget() bool {
	return r.Room > 0 && r.Device > 0
}

type EventKind string

const (
	EventRegistered   EventKind = "registered"
	EventDeviceOn     EventKind = "deviceTurnedOn"
	EventDeviceOff    EventKind = "deviceTurnedOff"
	EventDeviceDimmed EventKind = "deviceDimmed"
	EventFramingError EventKind = "framingError"
)

// Event is an unsolicited notification from the hub.
type Event struct {
	Kind       EventKind `json:"kind"`
	Room       int       `json:"room,omitempty"`
	Device     int       `json:"device,omitempty"`
	Percentage int       `json:"percentage,omitempty"`
	Err        error     `json:"-"`
	Timestamp  time.Time `json:"timestamp"`
}

// MarshalJSON adds the error text, which error values cannot carry by themselves.
func (e Event) MarshalJSON() ([]byte, error) {
	type plain Event
	out := struct {
		plain
		Error string `json:"error,omitempty"`
	}{plain: plain(e)}
	if e.Err != nil {
		out.Error = e.Err.Error()
	}
	return json.Marshal(out)
}

// DimPercentage converts the hub's 0..32 dim level to a percentage.
func DimPercentage(param int) int {
	return int(math.Round(float64(param) / 32 * 100))
}
