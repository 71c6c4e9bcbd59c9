package proto

import "fmt"

// DeviceType is the hub's classification of a paired device.
type DeviceType string

const (
	DeviceDimmer DeviceType = "D"
	DeviceOnOff  DeviceType = "O"
)

type Device struct {
	RoomID     int        `json:"room_id"`
	DeviceID   int        `json:"device_id"`
	RoomName   string     `json:"room_name"`
	DeviceName string     `json:"device_name"`
	Type       DeviceType `json:"type"`
}

// Key identifies the device by its room and device slot.
func (d Device) Key() string {
	return DeviceKey(d.RoomID, d.DeviceID)
}

func (d Device) Dimmable() bool {
	return d.Type == DeviceDimmer
}

func DeviceKey(room, device int) string {
	return fmt.Sprintf("R%dD%d", room, device)
}
