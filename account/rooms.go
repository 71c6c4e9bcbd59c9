package account

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mbocsi/lightwaverf/proto"
)

// deviceTypes maps cloud device_type_id values to hub device types.
// Anything else (radiators, moods, open/close) has no type.
var deviceTypes = map[int]proto.DeviceType{
	1: proto.DeviceOnOff,
	2: proto.DeviceDimmer,
	3: proto.DeviceOnOff,
}

type userProfile struct {
	Content *struct {
		Estates []struct {
			Locations []struct {
				Zones []struct {
					Rooms []room `json:"rooms"`
				} `json:"zones"`
			} `json:"locations"`
		} `json:"estates"`
	} `json:"content"`
}

type room struct {
	Number  int    `json:"room_number"`
	Name    string `json:"name"`
	Devices []struct {
		Number int    `json:"device_number"`
		Name   string `json:"name"`
		TypeID int    `json:"device_type_id"`
	} `json:"devices"`
}

var ErrNoZone = errors.New("user profile has no zone")

// ParseRooms flattens the first estate's first zone into devices.
func ParseRooms(profile []byte) ([]proto.Device, error) {
	var p userProfile
	if err := json.Unmarshal(profile, &p); err != nil {
		return nil, fmt.Errorf("decode user profile: %w", err)
	}
	if p.Content == nil ||
		len(p.Content.Estates) == 0 ||
		len(p.Content.Estates[0].Locations) == 0 ||
		len(p.Content.Estates[0].Locations[0].Zones) == 0 {
		return nil, ErrNoZone
	}

	var devices []proto.Device
	for _, r := range p.Content.Estates[0].Locations[0].Zones[0].Rooms {
		slog.Debug("Parsed room", "room", r.Name, "devices", len(r.Devices))
		for _, d := range r.Devices {
			devices = append(devices, proto.Device{
				RoomID:     r.Number,
				DeviceID:   d.Number,
				RoomName:   r.Name,
				DeviceName: d.Name,
				Type:       deviceTypes[d.TypeID],
			})
		}
	}
	return devices, nil
}
