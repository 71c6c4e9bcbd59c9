package app

import (
	"log/slog"

	"github.com/mbocsi/lightwaverf/proto"
)

// Handle folds a hub event into the registry.
func (a *App) Handle(ev proto.Event) {
	switch ev.Kind {
	case proto.EventDeviceOn:
		a.Registry.apply(ev.Room, ev.Device, func(s *DeviceState) {
			s.On = true
			s.Updated = ev.Timestamp
		})

	case proto.EventDeviceOff:
		a.Registry.apply(ev.Room, ev.Device, func(s *DeviceState) {
			s.On = false
			s.Updated = ev.Timestamp
		})

	case proto.EventDeviceDimmed:
		a.Registry.apply(ev.Room, ev.Device, func(s *DeviceState) {
			s.On = ev.Percentage > 0
			s.Level = ev.Percentage
			s.Updated = ev.Timestamp
		})

	case proto.EventRegistered:
		slog.Info("Registered with LightwaveRF link")

	case proto.EventFramingError:
		slog.Warn("Hub sent an unrecognised datagram", "error", ev.Err)

	default:
		slog.Warn("Unhandled event kind", "kind", ev.Kind)
	}

	slog.Debug("Event handled",
		"kind", ev.Kind,
		"room", ev.Room,
		"device", ev.Device,
		"percentage", ev.Percentage,
	)
}
