package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/mbocsi/lightwaverf/proto"
	"github.com/mbocsi/lightwaverf/queue"
)

const (
	SendPort         = 9760
	ReceivePort      = 9761
	BroadcastAddress = "255.255.255.255"

	maxDatagram = 64 * 1024
)

var (
	ErrNotConnected     = errors.New("client not connected")
	ErrAlreadyConnected = errors.New("client already connected")
)

// BindError reports a socket that could not be bound.
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("error binding socket %s: %v", e.Addr, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}

type Options struct {
	// Address is the initial hub address. The broadcast address reaches any
	// hub on the local segment.
	Address string
	// DiscoverLinkIP switches the target to the source of every datagram
	// received from the hub.
	DiscoverLinkIP bool

	SendPort int
	// ReceivePort zero binds an ephemeral port; hubs only reply to 9761.
	ReceivePort int
	ListenHost  string

	EventBuffer int
	Queue       queue.Options
}

func DefaultOptions() Options {
	return Options{
		Address:        BroadcastAddress,
		DiscoverLinkIP: true,
		SendPort:       SendPort,
		ReceivePort:    ReceivePort,
		EventBuffer:    64,
	}
}

type Client struct {
	opts Options

	mu       sync.RWMutex
	hub      HubState
	target   string
	sender   *net.UDPConn
	receiver *net.UDPConn
	engine   *queue.Engine

	events chan proto.Event
	wg     sync.WaitGroup
}

func New(opts Options) *Client {
	if opts.Address == "" {
		opts.Address = BroadcastAddress
	}
	if opts.SendPort == 0 {
		opts.SendPort = SendPort
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = 64
	}
	return &Client{
		opts:   opts,
		target: opts.Address,
		events: make(chan proto.Event, opts.EventBuffer),
	}
}

// Connect binds the send socket to an ephemeral port, then the receive
// socket to the hub's reply port, and starts reading replies.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.engine != nil {
		return ErrAlreadyConnected
	}

	var lc net.ListenConfig
	sendAddr := net.JoinHostPort(c.opts.ListenHost, "0")
	sc, err := lc.ListenPacket(ctx, "udp4", sendAddr)
	if err != nil {
		return &BindError{Addr: sendAddr, Err: err}
	}

	recvAddr := net.JoinHostPort(c.opts.ListenHost, strconv.Itoa(c.opts.ReceivePort))
	slog.Debug("Binding receiver socket", "addr", recvAddr, "target", c.target)
	rc, err := lc.ListenPacket(ctx, "udp4", recvAddr)
	if err != nil {
		sc.Close()
		return &BindError{Addr: recvAddr, Err: err}
	}

	c.sender = sc.(*net.UDPConn)
	c.receiver = rc.(*net.UDPConn)

	qopts := c.opts.Queue
	qopts.OnExecute = c.transmit
	c.engine = queue.New(qopts)

	c.wg.Add(1)
	go c.readLoop(c.receiver)

	slog.Info("Connected to LightwaveRF link", "receiver", c.receiver.LocalAddr(), "sender", c.sender.LocalAddr(), "target", c.target)
	return nil
}

// Disconnect stops routing replies, rejects every outstanding command with
// queue.ErrQueueDestroyed and closes both sockets.
func (c *Client) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	sender, receiver, engine := c.sender, c.receiver, c.engine
	c.sender, c.receiver, c.engine = nil, nil, nil
	c.mu.Unlock()

	if engine == nil {
		return nil
	}
	engine.Destroy()

	errs := []error{sender.Close(), receiver.Close()}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	slog.Info("Disconnected from LightwaveRF link")
	return errors.Join(errs...)
}

// Send queues command and waits for the hub's reply.
func (c *Client) Send(ctx context.Context, command string) (proto.Response, error) {
	engine := c.currentEngine()
	if engine == nil {
		return proto.Response{}, ErrNotConnected
	}
	return engine.Send(ctx, command)
}

// Submit queues command and returns without waiting.
func (c *Client) Submit(command string) (*queue.Transaction, error) {
	engine := c.currentEngine()
	if engine == nil {
		return nil, ErrNotConnected
	}
	return engine.Submit(command)
}

// Events delivers unsolicited hub notifications. The channel stays open for
// the client's lifetime; events are dropped when nobody drains it.
func (c *Client) Events() <-chan proto.Event {
	return c.events
}

func (c *Client) Target() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.target
}

// ReceiveAddr is the bound reply socket address, or nil when disconnected.
func (c *Client) ReceiveAddr() net.Addr {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.receiver == nil {
		return nil
	}
	return c.receiver.LocalAddr()
}

func (c *Client) Stats() queue.Stats {
	engine := c.currentEngine()
	if engine == nil {
		return queue.Stats{}
	}
	return engine.Stats()
}

func (c *Client) Connected() bool {
	return c.currentEngine() != nil
}

func (c *Client) currentEngine() *queue.Engine {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.engine
}

// transmit sends one payload to the current target. Errors are logged only;
// the engine's timers decide the transaction's fate.
func (c *Client) transmit(payload string) {
	c.mu.RLock()
	conn, target := c.sender, c.target
	c.mu.RUnlock()
	if conn == nil {
		slog.Warn("Dropping message, sender socket closed", "payload", payload)
		return
	}

	addr, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(target, strconv.Itoa(c.opts.SendPort)))
	if err != nil {
		slog.Warn("Message send error", "target", target, "error", err)
		return
	}
	if err := setBroadcast(conn, target == BroadcastAddress); err != nil {
		slog.Warn("Failed to set broadcast flag", "target", target, "error", err)
	}

	n, err := conn.WriteToUDP([]byte(payload), addr)
	if err != nil {
		slog.Warn("Message send error", "target", addr, "error", err)
		return
	}
	slog.Debug("Message sent", "payload", payload, "target", addr, "bytes", n)
}

func (c *Client) readLoop(conn *net.UDPConn) {
	defer c.wg.Done()
	buf := make([]byte, maxDatagram)
	for {
		n, src, err := conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			slog.Warn("Receive error", "error", err)
			time.Sleep(10 * time.Millisecond)
			continue
		}
		datagram := make([]byte, n)
		copy(datagram, buf[:n])
		c.handleDatagram(datagram, src)
	}
}

func (c *Client) handleDatagram(datagram []byte, src *net.UDPAddr) {
	slog.Debug("Message received", "from", src, "raw", string(datagram))

	res, err := proto.Decode(datagram)
	if err != nil {
		var framing *proto.FramingError
		if errors.As(err, &framing) {
			slog.Error("Message cannot be processed", "from", src, "error", err)
			c.emit(proto.Event{Kind: proto.EventFramingError, Err: err})
			return
		}
		slog.Warn("Dropping malformed message", "from", src, "error", err)
		return
	}
	c.processLightwaveMessage(res, src)
}

func (c *Client) processLightwaveMessage(res proto.Response, src *net.UDPAddr) {
	slog.Debug("Processing lightwave message", "id", res.ID, "fn", res.Fn, "error", res.Error)

	c.mu.Lock()
	c.hub.merge(res)
	if c.opts.DiscoverLinkIP && src != nil {
		if ip := src.IP.String(); ip != c.target {
			slog.Info("Discovered link address", "previous", c.target, "address", ip)
			c.target = ip
		}
	}
	engine := c.engine
	c.mu.Unlock()

	if res.Linked() {
		c.emit(proto.Event{Kind: proto.EventRegistered})
	}
	if res.HasTarget() {
		switch res.Fn {
		case "on":
			c.emit(proto.Event{Kind: proto.EventDeviceOn, Room: res.Room, Device: res.Device})
		case "off":
			c.emit(proto.Event{Kind: proto.EventDeviceOff, Room: res.Room, Device: res.Device})
		case "dim":
			c.emit(proto.Event{Kind: proto.EventDeviceDimmed, Room: res.Room, Device: res.Device, Percentage: proto.DimPercentage(res.Param)})
		}
	}

	if engine == nil || !res.HasID {
		return
	}
	if res.Retryable() {
		engine.HandleRetryableError(res.ID)
		return
	}
	engine.HandleResponse(res)
}

func (c *Client) emit(ev proto.Event) {
	ev.Timestamp = time.Now()
	select {
	case c.events <- ev:
		slog.Debug("Event emitted", "kind", ev.Kind, "room", ev.Room, "device", ev.Device)
	default:
		slog.Warn("Event buffer full, dropping event", "kind", ev.Kind)
	}
}
