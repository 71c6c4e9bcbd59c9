package integration

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeLink is a loopback stand-in for a LightwaveRF Link. Each command is
// answered by reply; an empty answer means the hub stays silent.
type fakeLink struct {
	conn *net.UDPConn

	mu       sync.Mutex
	replyTo  *net.UDPAddr
	reply    func(id int, body string, attempt int) string
	attempts map[int]int
	received []string
}

func newFakeLink(t *testing.T, reply func(id int, body string, attempt int) string) *fakeLink {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("Failed to start fake link: %v", err)
	}
	l := &fakeLink{conn: conn, reply: reply, attempts: make(map[int]int)}
	go l.serve()
	t.Cleanup(func() { conn.Close() })
	return l
}

func (l *fakeLink) port() int {
	return l.conn.LocalAddr().(*net.UDPAddr).Port
}

// setReplyTo points replies at the client's receive socket.
func (l *fakeLink) setReplyTo(addr net.Addr) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.replyTo = addr.(*net.UDPAddr)
}

func (l *fakeLink) Received() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.received...)
}

func (l *fakeLink) serve() {
	buf := make([]byte, 2048)
	for {
		n, _, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		idText, body, ok := strings.Cut(string(buf[:n]), ",")
		if !ok {
			continue
		}
		id, err := strconv.Atoi(idText)
		if err != nil {
			continue
		}

		l.mu.Lock()
		l.attempts[id]++
		attempt := l.attempts[id]
		l.received = append(l.received, body)
		to := l.replyTo
		l.mu.Unlock()

		if answer := l.reply(id, body, attempt); answer != "" && to != nil {
			l.conn.WriteToUDP([]byte(answer), to)
		}
	}
}

func structured(format string, args ...any) string {
	return "*!" + fmt.Sprintf(format, args...)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
