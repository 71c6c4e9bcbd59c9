package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"

	"github.com/mbocsi/lightwaverf/proto"
)

// Sender delivers one hub command and returns the hub's reply.
type Sender interface {
	Send(ctx context.Context, command string) (proto.Response, error)
}

type DeviceSource interface {
	Devices(ctx context.Context) ([]proto.Device, error)
}

type Subscriber interface {
	Subscribe(buffer int, kinds ...proto.EventKind) (string, <-chan proto.Event)
	Unsubscribe(id string)
}

var (
	ErrNoAccount    = errors.New("no account configured")
	ErrUnsubscribed = errors.New("event stream closed")
)

type Options struct {
	// User is sent with registration checks. Defaults to $USER.
	User string
	// DisplayUpdates appends a description to commands for the hub's display.
	DisplayUpdates bool
}

type App struct {
	Registry *Registry

	sender  Sender
	events  Subscriber
	account DeviceSource
	opts    Options
}

// NewApp wires the façade. account may be nil when no cloud account is set up.
func NewApp(sender Sender, events Subscriber, account DeviceSource, opts Options) *App {
	if opts.User == "" {
		opts.User = os.Getenv("USER")
	}
	return &App{
		Registry: NewRegistry(),
		sender:   sender,
		events:   events,
		account:  account,
		opts:     opts,
	}
}

// Start keeps the registry in step with hub events until ctx ends.
func (a *App) Start(ctx context.Context) {
	id, ch := a.events.Subscribe(32)
	defer a.events.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Stopping device state tracking")
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			a.Handle(ev)
		}
	}
}

func (a *App) TurnOn(ctx context.Context, d proto.Device) error {
	slog.Debug("Device turning on", "device", d.Key())
	_, err := a.sender.Send(ctx, fmt.Sprintf("!F1R%dD%d%s", d.RoomID, d.DeviceID, a.display(d, "Turn on")))
	return err
}

func (a *App) TurnOff(ctx context.Context, d proto.Device) error {
	slog.Debug("Device turning off", "device", d.Key())
	_, err := a.sender.Send(ctx, fmt.Sprintf("!F0R%dD%d%s", d.RoomID, d.DeviceID, a.display(d, "Turn off")))
	return err
}

// Dim sets a dimmer to percentage, clamped to 0..100.
func (a *App) Dim(ctx context.Context, d proto.Device, percentage int) error {
	percentage = max(0, min(100, percentage))
	level := int(math.Round(float64(percentage) * 0.32))
	slog.Debug("Device dimming", "device", d.Key(), "percentage", percentage, "level", level)

	cmd := fmt.Sprintf("!FdP%dR%dD%d%s", level, d.RoomID, d.DeviceID, a.display(d, fmt.Sprintf("Dim to %d%%", percentage)))
	_, err := a.sender.Send(ctx, cmd)
	return err
}

// Command sends a raw hub command.
func (a *App) Command(ctx context.Context, command string) (proto.Response, error) {
	return a.sender.Send(ctx, command)
}

func (a *App) display(d proto.Device, action string) string {
	if !a.opts.DisplayUpdates {
		return ""
	}
	return fmt.Sprintf("|%s %s|%s|", d.RoomName, d.DeviceName, action)
}

// IsRegistered asks the hub whether this host is paired with it.
func (a *App) IsRegistered(ctx context.Context) (bool, error) {
	res, err := a.sender.Send(ctx, fmt.Sprintf("@H|Check registration|user:%s|", a.opts.User))
	if err != nil {
		return false, err
	}
	return !res.HasError(), nil
}

// EnsureRegistration starts pairing when the hub does not know this host
// and waits until the hub confirms it.
func (a *App) EnsureRegistration(ctx context.Context) error {
	ok, err := a.IsRegistered(ctx)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	slog.Info("Not registered with the link, press the pairing button on the hub")
	id, ch := a.events.Subscribe(1, proto.EventRegistered)
	defer a.events.Unsubscribe(id)

	if _, err := a.sender.Send(ctx, "!F*p"); err != nil {
		return err
	}
	select {
	case _, ok := <-ch:
		if !ok {
			return ErrUnsubscribed
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RefreshDevices reloads the registry from the account.
func (a *App) RefreshDevices(ctx context.Context) ([]DeviceState, error) {
	if a.account == nil {
		return nil, ErrNoAccount
	}
	devices, err := a.account.Devices(ctx)
	if err != nil {
		return nil, err
	}
	a.Registry.Replace(devices)
	slog.Info("Loaded devices from account", "count", len(devices))
	return a.Registry.List(), nil
}

// Devices returns the known devices, loading them from the account the
// first time when one is configured.
func (a *App) Devices(ctx context.Context) ([]DeviceState, error) {
	if a.Registry.Len() == 0 && a.account != nil {
		return a.RefreshDevices(ctx)
	}
	return a.Registry.List(), nil
}

// Device resolves a room and device slot to a known device, or a bare
// device carrying just the slot.
func (a *App) Device(room, device int) proto.Device {
	if s, ok := a.Registry.Get(room, device); ok {
		return s.Device
	}
	return proto.Device{RoomID: room, DeviceID: device}
}
