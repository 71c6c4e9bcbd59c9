package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/mbocsi/lightwaverf/app"
	"github.com/mbocsi/lightwaverf/client"
	"github.com/mbocsi/lightwaverf/proto"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	onStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	offStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

func deviceLabel(d proto.Device) string {
	if d.RoomName == "" && d.DeviceName == "" {
		return d.Key()
	}
	return fmt.Sprintf("%s (%s %s)", d.Key(), d.RoomName, d.DeviceName)
}

func typeName(t proto.DeviceType) string {
	switch t {
	case proto.DeviceDimmer:
		return "dimmer"
	case proto.DeviceOnOff:
		return "on/off"
	default:
		return "-"
	}
}

func renderDevices(devices []app.DeviceState) string {
	if len(devices) == 0 {
		return mutedStyle.Render("No devices")
	}

	rows := make([][]string, 0, len(devices))
	for _, d := range devices {
		rows = append(rows, []string{
			strconv.Itoa(d.RoomID),
			strconv.Itoa(d.DeviceID),
			d.RoomName,
			d.DeviceName,
			typeName(d.Type),
		})
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(mutedStyle).
		Headers("ROOM", "DEVICE", "ROOM NAME", "DEVICE NAME", "TYPE").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Padding(0, 1)
			}
			return cellStyle
		}).
		String()
}

func renderHub(h client.HubState, target string) string {
	var b strings.Builder
	field := func(name, value string) {
		if value == "" {
			value = mutedStyle.Render("unknown")
		}
		fmt.Fprintf(&b, "%s %s\n", headerStyle.Render(fmt.Sprintf("%-9s", name)), value)
	}
	field("address", target)
	field("serial", h.Serial)
	field("mac", h.Mac)
	field("model", h.Model)
	field("firmware", h.Firmware)
	if h.Uptime > 0 {
		field("uptime", strconv.FormatInt(h.Uptime, 10)+"s")
	} else {
		field("uptime", "")
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderEvent(ev proto.Event) string {
	ts := mutedStyle.Render(ev.Timestamp.Format("15:04:05"))
	slot := proto.DeviceKey(ev.Room, ev.Device)
	switch ev.Kind {
	case proto.EventDeviceOn:
		return fmt.Sprintf("%s %s %s", ts, onStyle.Render("on "), slot)
	case proto.EventDeviceOff:
		return fmt.Sprintf("%s %s %s", ts, offStyle.Render("off"), slot)
	case proto.EventDeviceDimmed:
		return fmt.Sprintf("%s %s %s", ts, onStyle.Render(fmt.Sprintf("%d%%", ev.Percentage)), slot)
	case proto.EventRegistered:
		return fmt.Sprintf("%s %s", ts, onStyle.Render("registered"))
	case proto.EventFramingError:
		return fmt.Sprintf("%s %s %v", ts, errorStyle.Render("error"), ev.Err)
	}
	return fmt.Sprintf("%s %s", ts, ev.Kind)
}
