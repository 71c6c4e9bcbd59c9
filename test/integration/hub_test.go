package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mbocsi/lightwaverf/app"
	"github.com/mbocsi/lightwaverf/broker"
	"github.com/mbocsi/lightwaverf/client"
	"github.com/mbocsi/lightwaverf/proto"
	"github.com/mbocsi/lightwaverf/queue"
	"github.com/mbocsi/lightwaverf/web"
)

type stack struct {
	link   *fakeLink
	client *client.Client
	broker *broker.Broker
	app    *app.App
	api    *httptest.Server
}

// newStack wires a client, broker, façade and HTTP API to a fake link.
func newStack(t *testing.T, timeout time.Duration, reply func(id int, body string, attempt int) string) *stack {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	link := newFakeLink(t, reply)
	c := client.New(client.Options{
		Address:     "127.0.0.1",
		SendPort:    link.port(),
		ListenHost:  "127.0.0.1",
		EventBuffer: 16,
		Queue: queue.Options{
			Spacing:    10 * time.Millisecond,
			Timeout:    timeout,
			RetryGrace: timeout,
		},
	})
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	t.Cleanup(func() { c.Disconnect(context.Background()) })
	link.setReplyTo(c.ReceiveAddr())

	b := broker.NewBroker()
	go b.Run(ctx, c.Events())

	a := app.NewApp(c, b, nil, app.Options{User: "tester", DisplayUpdates: true})
	a.Registry.Store(proto.Device{RoomID: 1, DeviceID: 2, RoomName: "Lounge", DeviceName: "Lamp", Type: proto.DeviceDimmer})
	go a.Start(ctx)
	waitFor(t, "device tracker subscription", func() bool { return b.Subscribers() == 1 })

	srv, err := web.NewServer(a, c, b, web.Options{})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	api := httptest.NewServer(srv.Handler())
	t.Cleanup(api.Close)

	return &stack{link: link, client: c, broker: b, app: a, api: api}
}

// echoLink confirms every command, announcing device changes the way a
// real hub does.
func echoLink(id int, body string, attempt int) string {
	var room, dev, level int
	switch {
	case strings.HasPrefix(body, "!F1R"):
		fmt.Sscanf(body, "!F1R%dD%d", &room, &dev)
		return structured(`{"trans":%d,"fn":"on","room":%d,"dev":%d,"serial":"SER1","mac":"20:3B:85","prod":"lwl","fw":"N2.94D","uptime":100}`, id, room, dev)
	case strings.HasPrefix(body, "!F0R"):
		fmt.Sscanf(body, "!F0R%dD%d", &room, &dev)
		return structured(`{"trans":%d,"fn":"off","room":%d,"dev":%d}`, id, room, dev)
	case strings.HasPrefix(body, "!FdP"):
		fmt.Sscanf(body, "!FdP%dR%dD%d", &level, &room, &dev)
		return structured(`{"trans":%d,"fn":"dim","room":%d,"dev":%d,"param":%d}`, id, room, dev, level)
	}
	return fmt.Sprintf("%d,OK\r\n", id)
}

func TestTurnOnThroughAPI(t *testing.T) {
	s := newStack(t, 2*time.Second, echoLink)

	resp, err := http.Post(s.api.URL+"/api/devices/1/2/on", "application/json", nil)
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	if got := s.link.Received(); len(got) != 1 || got[0] != "!F1R1D2|Lounge Lamp|Turn on|" {
		t.Errorf("Unexpected commands at link %q", got)
	}

	waitFor(t, "device state", func() bool {
		st, _ := s.app.Registry.Get(1, 2)
		return st.On
	})
	if hub := s.client.Hub(); hub.Serial != "SER1" || hub.Uptime != 100 {
		t.Errorf("Expected hub identity from reply, got %+v", hub)
	}
}

func TestEventStreamSeesDim(t *testing.T) {
	s := newStack(t, 2*time.Second, echoLink)

	url := "ws" + strings.TrimPrefix(s.api.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()
	waitFor(t, "websocket subscription", func() bool { return s.broker.Subscribers() == 2 })

	if err := s.app.Dim(context.Background(), s.app.Device(1, 2), 50); err != nil {
		t.Fatalf("Dim failed: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var ev map[string]any
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	if ev["kind"] != "deviceDimmed" || ev["room"] != float64(1) || ev["device"] != float64(2) || ev["percentage"] != float64(50) {
		t.Errorf("Unexpected event %v", ev)
	}
}

func TestBusyLinkIsRetried(t *testing.T) {
	s := newStack(t, 2*time.Second, func(id int, body string, attempt int) string {
		if attempt == 1 {
			return structured(`{"trans":%d,"error":"ERR,6,Transmitter busy"}`, id)
		}
		return echoLink(id, body, attempt)
	})

	resp, err := http.Post(s.api.URL+"/api/devices/1/2/dim", "application/json", strings.NewReader(`{"level":25}`))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 after retry, got %d", resp.StatusCode)
	}

	got := s.link.Received()
	if len(got) != 2 || got[0] != got[1] || !strings.HasPrefix(got[0], "!FdP8R1D2") {
		t.Errorf("Expected the same dim command twice, got %q", got)
	}
}

func TestSilentLinkTimesOut(t *testing.T) {
	s := newStack(t, 100*time.Millisecond, func(int, string, int) string { return "" })

	resp, err := http.Post(s.api.URL+"/api/devices/1/2/off", "application/json", nil)
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusGatewayTimeout {
		t.Fatalf("Expected 504, got %d", resp.StatusCode)
	}
	var apiErr web.APIError
	json.NewDecoder(resp.Body).Decode(&apiErr)
	if apiErr.Code != web.ErrCodeTimeout || !strings.HasPrefix(apiErr.Message, "Execution expired") {
		t.Errorf("Unexpected error body %+v", apiErr)
	}

	// The queue moves on after a timeout.
	if _, err := s.app.Command(context.Background(), "@H|Check registration|user:tester|"); err == nil {
		t.Error("Expected second command to time out as well")
	}
	if got := s.link.Received(); len(got) != 2 {
		t.Errorf("Expected both commands to reach the link, got %q", got)
	}
}

func TestRegistrationCheck(t *testing.T) {
	s := newStack(t, 2*time.Second, func(id int, body string, attempt int) string {
		if strings.HasPrefix(body, "@H") {
			return structured(`{"trans":%d,"error":"ERR,2,Not yet registered. See LightwaveLink"}`, id)
		}
		if body == "!F*p" {
			return structured(`{"trans":%d,"type":"link","msg":"success","pairType":"local"}`, id)
		}
		return ""
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.app.EnsureRegistration(ctx); err != nil {
		t.Fatalf("EnsureRegistration failed: %v", err)
	}
	got := s.link.Received()
	if len(got) != 2 || got[0] != "@H|Check registration|user:tester|" || got[1] != "!F*p" {
		t.Errorf("Unexpected commands %q", got)
	}
}
