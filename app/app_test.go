package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mbocsi/lightwaverf/broker"
	"github.com/mbocsi/lightwaverf/proto"
	"github.com/mbocsi/lightwaverf/queue"
)

// MockSender records commands and answers through respond.
type MockSender struct {
	mu       sync.Mutex
	commands []string
	respond  func(cmd string) (proto.Response, error)
}

func (m *MockSender) Send(ctx context.Context, command string) (proto.Response, error) {
	m.mu.Lock()
	m.commands = append(m.commands, command)
	respond := m.respond
	m.mu.Unlock()
	if respond == nil {
		return proto.Response{Message: "OK"}, nil
	}
	return respond(command)
}

func (m *MockSender) Commands() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.commands...)
}

type mockSource struct {
	devices []proto.Device
	err     error
	calls   int
}

func (m *mockSource) Devices(ctx context.Context) ([]proto.Device, error) {
	m.calls++
	return m.devices, m.err
}

var lamp = proto.Device{RoomID: 1, DeviceID: 2, RoomName: "Lounge", DeviceName: "Lamp", Type: proto.DeviceDimmer}

func TestApp_TurnOnWithDisplay(t *testing.T) {
	sender := &MockSender{}
	a := NewApp(sender, broker.NewBroker(), nil, Options{DisplayUpdates: true})

	if err := a.TurnOn(context.Background(), lamp); err != nil {
		t.Fatalf("TurnOn failed: %v", err)
	}
	if cmds := sender.Commands(); len(cmds) != 1 || cmds[0] != "!F1R1D2|Lounge Lamp|Turn on|" {
		t.Errorf("Unexpected commands %q", cmds)
	}
}

func TestApp_TurnOffWithoutDisplay(t *testing.T) {
	sender := &MockSender{}
	a := NewApp(sender, broker.NewBroker(), nil, Options{})

	if err := a.TurnOff(context.Background(), lamp); err != nil {
		t.Fatalf("TurnOff failed: %v", err)
	}
	if cmds := sender.Commands(); len(cmds) != 1 || cmds[0] != "!F0R1D2" {
		t.Errorf("Unexpected commands %q", cmds)
	}
}

func TestApp_Dim(t *testing.T) {
	tests := []struct {
		percentage int
		expected   string
	}{
		{50, "!FdP16R1D2|Lounge Lamp|Dim to 50%|"},
		{33, "!FdP11R1D2|Lounge Lamp|Dim to 33%|"},
		{0, "!FdP0R1D2|Lounge Lamp|Dim to 0%|"},
		{150, "!FdP32R1D2|Lounge Lamp|Dim to 100%|"},
		{-5, "!FdP0R1D2|Lounge Lamp|Dim to 0%|"},
	}

	for _, tt := range tests {
		sender := &MockSender{}
		a := NewApp(sender, broker.NewBroker(), nil, Options{DisplayUpdates: true})
		if err := a.Dim(context.Background(), lamp, tt.percentage); err != nil {
			t.Fatalf("Dim(%d) failed: %v", tt.percentage, err)
		}
		if cmds := sender.Commands(); len(cmds) != 1 || cmds[0] != tt.expected {
			t.Errorf("Dim(%d): expected %q, got %q", tt.percentage, tt.expected, cmds)
		}
	}
}

func TestApp_PropagatesTimeout(t *testing.T) {
	sender := &MockSender{respond: func(string) (proto.Response, error) {
		return proto.Response{}, &queue.TransactionError{Kind: queue.ErrExecutionExpired, ID: 42}
	}}
	a := NewApp(sender, broker.NewBroker(), nil, Options{})

	err := a.TurnOn(context.Background(), lamp)
	if !errors.Is(err, queue.ErrExecutionExpired) {
		t.Errorf("Expected ErrExecutionExpired, got %v", err)
	}
}

func TestApp_IsRegistered(t *testing.T) {
	sender := &MockSender{}
	a := NewApp(sender, broker.NewBroker(), nil, Options{User: "alice"})

	ok, err := a.IsRegistered(context.Background())
	if err != nil || !ok {
		t.Errorf("Expected registered, got %v, %v", ok, err)
	}
	if cmds := sender.Commands(); cmds[0] != "@H|Check registration|user:alice|" {
		t.Errorf("Unexpected registration check %q", cmds[0])
	}

	sender.respond = func(string) (proto.Response, error) {
		return proto.Response{Error: "ERR,2,Not yet registered"}, nil
	}
	ok, err = a.IsRegistered(context.Background())
	if err != nil || ok {
		t.Errorf("Expected not registered, got %v, %v", ok, err)
	}
}

func TestApp_EnsureRegistrationWaitsForLink(t *testing.T) {
	b := broker.NewBroker()
	sender := &MockSender{}
	sender.respond = func(cmd string) (proto.Response, error) {
		switch cmd {
		case "!F*p":
			b.Publish(proto.Event{Kind: proto.EventRegistered})
			return proto.Response{Message: "OK"}, nil
		default:
			return proto.Response{Error: "ERR,2,Not yet registered"}, nil
		}
	}
	a := NewApp(sender, b, nil, Options{User: "alice"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := a.EnsureRegistration(ctx); err != nil {
		t.Fatalf("EnsureRegistration failed: %v", err)
	}
	cmds := sender.Commands()
	if len(cmds) != 2 || cmds[1] != "!F*p" {
		t.Errorf("Expected registration check then pairing, got %q", cmds)
	}
	if b.Subscribers() != 0 {
		t.Errorf("Expected subscription to be released, got %d", b.Subscribers())
	}
}

func TestApp_EnsureRegistrationSkipsWhenRegistered(t *testing.T) {
	sender := &MockSender{}
	a := NewApp(sender, broker.NewBroker(), nil, Options{})

	if err := a.EnsureRegistration(context.Background()); err != nil {
		t.Fatalf("EnsureRegistration failed: %v", err)
	}
	if cmds := sender.Commands(); len(cmds) != 1 {
		t.Errorf("Expected only the registration check, got %q", cmds)
	}
}

func TestApp_EnsureRegistrationHonoursContext(t *testing.T) {
	sender := &MockSender{respond: func(cmd string) (proto.Response, error) {
		if cmd == "!F*p" {
			return proto.Response{Message: "OK"}, nil
		}
		return proto.Response{Error: "ERR,2,Not yet registered"}, nil
	}}
	a := NewApp(sender, broker.NewBroker(), nil, Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := a.EnsureRegistration(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

func TestApp_DevicesLoadsFromAccountOnce(t *testing.T) {
	source := &mockSource{devices: []proto.Device{
		{RoomID: 2, DeviceID: 1, RoomName: "Hall", DeviceName: "Light", Type: proto.DeviceOnOff},
		lamp,
	}}
	a := NewApp(&MockSender{}, broker.NewBroker(), source, Options{})

	devices, err := a.Devices(context.Background())
	if err != nil {
		t.Fatalf("Devices failed: %v", err)
	}
	if len(devices) != 2 || devices[0].Key() != "R1D2" || devices[1].Key() != "R2D1" {
		t.Errorf("Expected sorted devices, got %+v", devices)
	}
	a.Devices(context.Background())
	if source.calls != 1 {
		t.Errorf("Expected one account fetch, got %d", source.calls)
	}

	if d := a.Device(1, 2); d.DeviceName != "Lamp" {
		t.Errorf("Expected registry lookup to find Lamp, got %+v", d)
	}
	if d := a.Device(9, 9); d.RoomID != 9 || d.DeviceID != 9 || d.DeviceName != "" {
		t.Errorf("Expected bare device for unknown slot, got %+v", d)
	}
}

func TestApp_RefreshDevicesWithoutAccount(t *testing.T) {
	a := NewApp(&MockSender{}, broker.NewBroker(), nil, Options{})
	if _, err := a.RefreshDevices(context.Background()); !errors.Is(err, ErrNoAccount) {
		t.Errorf("Expected ErrNoAccount, got %v", err)
	}
	devices, err := a.Devices(context.Background())
	if err != nil || len(devices) != 0 {
		t.Errorf("Expected empty device list, got %v, %v", devices, err)
	}
}

func TestApp_StartTracksDeviceState(t *testing.T) {
	b := broker.NewBroker()
	a := NewApp(&MockSender{}, b, nil, Options{})
	a.Registry.Store(lamp)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.Start(ctx)
		close(done)
	}()

	for b.Subscribers() == 0 {
		time.Sleep(time.Millisecond)
	}
	b.Publish(proto.Event{Kind: proto.EventDeviceDimmed, Room: 1, Device: 2, Percentage: 50})
	b.Publish(proto.Event{Kind: proto.EventDeviceOn, Room: 4, Device: 1})

	deadline := time.Now().Add(2 * time.Second)
	for {
		s, ok := a.Registry.Get(4, 1)
		if ok && s.On {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("Timed out waiting for device state")
		}
		time.Sleep(time.Millisecond)
	}

	s, _ := a.Registry.Get(1, 2)
	if !s.On || s.Level != 50 || s.DeviceName != "Lamp" {
		t.Errorf("Expected Lamp on at 50%%, got %+v", s)
	}

	cancel()
	<-done
}
