package ws

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/vetriapp/vetri-backend/internal/chat"
)

type stubStore struct{}

func (stubStore) Create(_ context.Context, _, _ string) (int64, time.Time, error) {
	return 1, time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC), nil
}
func (stubStore) MarkSeen(_ context.Context, _ []int64) error  { return nil }
func (stubStore) MarkDelivered(_ context.Context, _ int64) error { return nil }

type stubVerifier struct{}

func (stubVerifier) Verify(_ context.Context, token string) (*chat.Identity, error) {
	if token == "good" {
		return &chat.Identity{UserID: 1, Username: "ada"}, nil
	}
	return nil, errors.New("bad token")
}

func newTestServer(config ServerConfig) (*Server, *httptest.Server) {
	relay := chat.NewRelay(chat.NewRegistry(), stubStore{})
	srv := NewServer(config, relay, stubVerifier{})
	ts := httptest.NewServer(http.HandlerFunc(srv.HandleUpgrade))
	return srv, ts
}

func dial(t *testing.T, ts *httptest.Server, query string) net.Conn {
	t.Helper()
	url := strings.Replace(ts.URL, "http", "ws", 1) + query
	conn, br, _, err := ws.Dial(context.Background(), url)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	if br != nil {
		// The dialer may have read frame bytes past the handshake; keep them.
		buffered := make([]byte, br.Buffered())
		if _, err := io.ReadFull(br, buffered); err != nil {
			t.Fatalf("draining dial buffer failed: %v", err)
		}
		ws.PutReader(br)
		return &bufferedConn{Conn: conn, buf: buffered}
	}
	return conn
}

// bufferedConn replays bytes the dialer buffered beyond the handshake before
// reading from the underlying connection.
type bufferedConn struct {
	net.Conn
	buf []byte
}

func (c *bufferedConn) Read(p []byte) (int, error) {
	if len(c.buf) > 0 {
		n := copy(p, c.buf)
		c.buf = c.buf[n:]
		return n, nil
	}
	return c.Conn.Read(p)
}

func readFrame(t *testing.T, conn net.Conn) (string, json.RawMessage) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	data, _, err := wsutil.ReadServerData(conn)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	var f struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &f); err != nil {
		t.Fatalf("bad frame %s: %v", data, err)
	}
	return f.Type, f.Data
}

func TestAuthenticatedMessageRoundTrip(t *testing.T) {
	srv, ts := newTestServer(DefaultServerConfig())
	defer ts.Close()
	defer srv.Shutdown()

	conn := dial(t, ts, "?token=good")
	defer conn.Close()

	if frameType, _ := readFrame(t, conn); frameType != "status" {
		t.Fatalf("expected status greeting, got %q", frameType)
	}

	err := wsutil.WriteClientText(conn, []byte(`{"type":"message","payload":{"text":"hello"}}`))
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}

	frameType, data := readFrame(t, conn)
	if frameType != "message" {
		t.Fatalf("expected message broadcast, got %q", frameType)
	}
	var msg struct {
		ID       int64  `json:"id"`
		FromUser string `json:"from_user"`
		Text     string `json:"text"`
	}
	json.Unmarshal(data, &msg)
	if msg.FromUser != "ada" || msg.Text != "hello" {
		t.Errorf("unexpected broadcast: %+v", msg)
	}

	frameType, data = readFrame(t, conn)
	if frameType != "ack" {
		t.Fatalf("expected ack after broadcast, got %q", frameType)
	}
	var ack struct {
		ID int64 `json:"id"`
	}
	json.Unmarshal(data, &ack)
	if ack.ID != msg.ID {
		t.Errorf("ack id %d does not match message id %d", ack.ID, msg.ID)
	}
}

func TestUnauthenticatedConnectionGetsError(t *testing.T) {
	srv, ts := newTestServer(DefaultServerConfig())
	defer ts.Close()
	defer srv.Shutdown()

	// No token: the connection is accepted but privileged events fail.
	conn := dial(t, ts, "")
	defer conn.Close()

	if frameType, _ := readFrame(t, conn); frameType != "status" {
		t.Fatalf("expected status greeting, got %q", frameType)
	}

	err := wsutil.WriteClientText(conn, []byte(`{"type":"message","payload":{"text":"hi"}}`))
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}

	frameType, data := readFrame(t, conn)
	if frameType != "error" {
		t.Fatalf("expected error frame, got %q", frameType)
	}
	var msg string
	json.Unmarshal(data, &msg)
	if msg != "Authentication required" {
		t.Errorf("unexpected error text: %q", msg)
	}
}

func TestBroadcastReachesOtherConnections(t *testing.T) {
	srv, ts := newTestServer(DefaultServerConfig())
	defer ts.Close()
	defer srv.Shutdown()

	sender := dial(t, ts, "?token=good")
	defer sender.Close()
	receiver := dial(t, ts, "")
	defer receiver.Close()

	readFrame(t, sender)   // status
	readFrame(t, receiver) // status

	err := wsutil.WriteClientText(sender, []byte(`{"type":"typing"}`))
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}

	frameType, data := readFrame(t, receiver)
	if frameType != "typing" {
		t.Fatalf("expected typing broadcast, got %q", frameType)
	}
	var typing struct {
		FromUser string `json:"from_user"`
	}
	json.Unmarshal(data, &typing)
	if typing.FromUser != "ada" {
		t.Errorf("expected from_user 'ada', got %q", typing.FromUser)
	}
}

func TestConnectionCapRejectsUpgrade(t *testing.T) {
	config := DefaultServerConfig()
	config.MaxConnections = 1
	srv, ts := newTestServer(config)
	defer ts.Close()
	defer srv.Shutdown()

	first := dial(t, ts, "")
	defer first.Close()
	readFrame(t, first)

	url := strings.Replace(ts.URL, "http", "ws", 1)
	if _, _, _, err := ws.Dial(context.Background(), url); err == nil {
		t.Fatal("expected second dial to be rejected")
	}
}

func TestDisconnectCleansUp(t *testing.T) {
	srv, ts := newTestServer(DefaultServerConfig())
	defer ts.Close()
	defer srv.Shutdown()

	conn := dial(t, ts, "")
	readFrame(t, conn)
	if srv.ConnectionCount() != 1 {
		t.Fatalf("expected 1 connection, got %d", srv.ConnectionCount())
	}

	conn.Close()

	deadline := time.Now().Add(3 * time.Second)
	for srv.ConnectionCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("connection not cleaned up, count=%d", srv.ConnectionCount())
		}
		time.Sleep(10 * time.Millisecond)
	}
}
