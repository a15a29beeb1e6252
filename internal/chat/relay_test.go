package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeMessageStore assigns monotonic ids and records calls. Failures can be
// switched on to exercise error paths.
type fakeMessageStore struct {
	mu        sync.Mutex
	nextID    int64
	created   []string
	seen      [][]int64
	delivered []int64
	fail      bool
}

func (f *fakeMessageStore) Create(_ context.Context, fromUser, text string) (int64, time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return 0, time.Time{}, errors.New("db down")
	}
	f.nextID++
	f.created = append(f.created, fromUser+":"+text)
	return f.nextID, time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC), nil
}

func (f *fakeMessageStore) MarkSeen(_ context.Context, ids []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("db down")
	}
	f.seen = append(f.seen, ids)
	return nil
}

func (f *fakeMessageStore) MarkDelivered(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delivered = append(f.delivered, id)
	return nil
}

func (f *fakeMessageStore) createdCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

// decodeFrames parses captured outbound frames into (type, raw data) pairs.
func decodeFrames(t *testing.T, sender *collectSender) []struct {
	Type string
	Data json.RawMessage
} {
	t.Helper()
	sender.mu.Lock()
	defer sender.mu.Unlock()

	out := make([]struct {
		Type string
		Data json.RawMessage
	}, 0, len(sender.frames))
	for _, frame := range sender.frames {
		var f struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(frame, &f); err != nil {
			t.Fatalf("bad outbound frame %s: %v", frame, err)
		}
		out = append(out, struct {
			Type string
			Data json.RawMessage
		}(f))
	}
	return out
}

func newTestRelay() (*Relay, *fakeMessageStore) {
	store := &fakeMessageStore{}
	return NewRelay(NewRegistry(), store), store
}

func TestConnectSendsStatus(t *testing.T) {
	relay, _ := newTestRelay()
	s, sender := newTestSession("a")

	relay.Connect(s)

	frames := decodeFrames(t, sender)
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	if frames[0].Type != "status" {
		t.Errorf("expected status frame, got %q", frames[0].Type)
	}
	var data struct {
		Message string `json:"message"`
	}
	json.Unmarshal(frames[0].Data, &data)
	if data.Message != "connected" {
		t.Errorf("expected 'connected', got %q", data.Message)
	}
	if relay.Registry().Count() != 1 {
		t.Errorf("expected 1 registered session, got %d", relay.Registry().Count())
	}
}

func TestUnauthenticatedMessageRejected(t *testing.T) {
	relay, store := newTestRelay()

	anon := NewSession("anon", nil, &collectSender{})
	other, otherSender := newTestSession("other")
	relay.Connect(anon)
	relay.Connect(other)

	anonSender := anon.sender.(*collectSender)
	before := anonSender.count()

	relay.Handle(context.Background(), anon, []byte(`{"type":"message","payload":{"text":"hi"}}`))

	frames := decodeFrames(t, anonSender)
	if len(frames) != before+1 {
		t.Fatalf("expected exactly one reply, got %d new frames", len(frames)-before)
	}
	last := frames[len(frames)-1]
	if last.Type != "error" {
		t.Fatalf("expected error frame, got %q", last.Type)
	}
	var msg string
	json.Unmarshal(last.Data, &msg)
	if msg != "Authentication required" {
		t.Errorf("expected 'Authentication required', got %q", msg)
	}
	if store.createdCount() != 0 {
		t.Errorf("rejected message was persisted")
	}
	// Only the connect status frame should have reached the other session.
	if otherSender.count() != 1 {
		t.Errorf("rejected message was broadcast: other has %d frames", otherSender.count())
	}
}

func TestMessagePersistBroadcastAck(t *testing.T) {
	relay, store := newTestRelay()

	sender1 := &collectSender{}
	s1 := NewSession("s1", &Identity{UserID: 1, Username: "ada"}, sender1)
	sender2 := &collectSender{}
	s2 := NewSession("s2", &Identity{UserID: 2, Username: "bob"}, sender2)
	relay.Connect(s1)
	relay.Connect(s2)

	relay.Handle(context.Background(), s1, []byte(`{"type":"message","payload":{"text":"hello"}}`))

	// Sender sees status, message, ack in that order.
	frames := decodeFrames(t, sender1)
	if len(frames) != 3 {
		t.Fatalf("expected 3 frames for sender, got %d", len(frames))
	}
	if frames[1].Type != "message" || frames[2].Type != "ack" {
		t.Fatalf("expected message then ack, got %q then %q", frames[1].Type, frames[2].Type)
	}

	var msg struct {
		ID        int64  `json:"id"`
		FromUser  string `json:"from_user"`
		Text      string `json:"text"`
		CreatedAt string `json:"created_at"`
	}
	json.Unmarshal(frames[1].Data, &msg)
	if msg.ID != 1 || msg.FromUser != "ada" || msg.Text != "hello" {
		t.Errorf("unexpected broadcast payload: %+v", msg)
	}
	if _, err := time.Parse(time.RFC3339, msg.CreatedAt); err != nil {
		t.Errorf("created_at is not RFC 3339: %q", msg.CreatedAt)
	}

	var ack struct {
		ID int64 `json:"id"`
	}
	json.Unmarshal(frames[2].Data, &ack)
	if ack.ID != msg.ID {
		t.Errorf("ack id %d does not match message id %d", ack.ID, msg.ID)
	}

	// The other session gets the broadcast but no ack.
	frames2 := decodeFrames(t, sender2)
	if len(frames2) != 2 || frames2[1].Type != "message" {
		t.Fatalf("expected status+message for other session, got %d frames", len(frames2))
	}

	if store.createdCount() != 1 {
		t.Errorf("expected 1 persisted message, got %d", store.createdCount())
	}
	store.mu.Lock()
	deliveredCalls := len(store.delivered)
	store.mu.Unlock()
	if deliveredCalls != 1 {
		t.Errorf("expected 1 MarkDelivered call, got %d", deliveredCalls)
	}
}

func TestMessageStoreFailureRepliesToSenderOnly(t *testing.T) {
	relay, store := newTestRelay()
	store.fail = true

	sender1 := &collectSender{}
	s1 := NewSession("s1", &Identity{UserID: 1, Username: "ada"}, sender1)
	sender2 := &collectSender{}
	s2 := NewSession("s2", &Identity{UserID: 2, Username: "bob"}, sender2)
	relay.Connect(s1)
	relay.Connect(s2)

	relay.Handle(context.Background(), s1, []byte(`{"type":"message","payload":{"text":"hello"}}`))

	frames := decodeFrames(t, sender1)
	last := frames[len(frames)-1]
	if last.Type != "error" {
		t.Fatalf("expected error frame, got %q", last.Type)
	}
	var msg string
	json.Unmarshal(last.Data, &msg)
	if msg != "message could not be saved" {
		t.Errorf("unexpected error text: %q", msg)
	}
	// Nothing beyond the connect status for the other session.
	if sender2.count() != 1 {
		t.Errorf("failure leaked to other sessions: %d frames", sender2.count())
	}
}

func TestTypingBroadcastIncludesSender(t *testing.T) {
	relay, _ := newTestRelay()

	sender1 := &collectSender{}
	s1 := NewSession("s1", &Identity{UserID: 1, Username: "ada"}, sender1)
	relay.Connect(s1)

	relay.Handle(context.Background(), s1, []byte(`{"type":"typing"}`))

	frames := decodeFrames(t, sender1)
	if len(frames) != 2 || frames[1].Type != "typing" {
		t.Fatalf("expected typing echo to sender, got %d frames", len(frames))
	}
	var data struct {
		FromUser string `json:"from_user"`
	}
	json.Unmarshal(frames[1].Data, &data)
	if data.FromUser != "ada" {
		t.Errorf("expected from_user 'ada', got %q", data.FromUser)
	}
}

func TestMarkSeenEmptyIsNoOp(t *testing.T) {
	relay, store := newTestRelay()

	sender1 := &collectSender{}
	s1 := NewSession("s1", &Identity{UserID: 1, Username: "ada"}, sender1)
	relay.Connect(s1)

	relay.Handle(context.Background(), s1, []byte(`{"type":"mark_seen","payload":{"ids":[]}}`))

	if sender1.count() != 1 {
		t.Errorf("empty mark_seen produced output: %d frames", sender1.count())
	}
	store.mu.Lock()
	seenCalls := len(store.seen)
	store.mu.Unlock()
	if seenCalls != 0 {
		t.Errorf("empty mark_seen hit the store")
	}
}

func TestMarkSeenBroadcastsIDsVerbatim(t *testing.T) {
	relay, store := newTestRelay()

	sender1 := &collectSender{}
	s1 := NewSession("s1", &Identity{UserID: 1, Username: "ada"}, sender1)
	relay.Connect(s1)

	// 999 matches nothing; it must still appear in the broadcast.
	relay.Handle(context.Background(), s1, []byte(`{"type":"mark_seen","payload":{"ids":[3,999]}}`))

	frames := decodeFrames(t, sender1)
	if len(frames) != 2 || frames[1].Type != "seen" {
		t.Fatalf("expected seen broadcast, got %d frames", len(frames))
	}
	var data struct {
		IDs []int64 `json:"ids"`
	}
	json.Unmarshal(frames[1].Data, &data)
	if len(data.IDs) != 2 || data.IDs[0] != 3 || data.IDs[1] != 999 {
		t.Errorf("ids not relayed verbatim: %v", data.IDs)
	}

	store.mu.Lock()
	seenCalls := len(store.seen)
	store.mu.Unlock()
	if seenCalls != 1 {
		t.Errorf("expected 1 MarkSeen call, got %d", seenCalls)
	}
}

func TestMalformedFramesDroppedSilently(t *testing.T) {
	relay, store := newTestRelay()

	sender1 := &collectSender{}
	s1 := NewSession("s1", &Identity{UserID: 1, Username: "ada"}, sender1)
	relay.Connect(s1)

	for _, data := range []string{`{broken`, `{"type":"dance"}`, `{"payload":{}}`} {
		relay.Handle(context.Background(), s1, []byte(data))
	}

	if sender1.count() != 1 {
		t.Errorf("dropped frames produced replies: %d frames", sender1.count())
	}
	if store.createdCount() != 0 {
		t.Errorf("dropped frames were persisted")
	}
}

func TestConcurrentSendersGetDistinctIDs(t *testing.T) {
	relay, store := newTestRelay()

	const n = 20
	sessions := make([]*Session, n)
	senders := make([]*collectSender, n)
	for i := range sessions {
		senders[i] = &collectSender{}
		sessions[i] = NewSession(fmt.Sprintf("s%d", i), &Identity{UserID: int64(i), Username: fmt.Sprintf("u%d", i)}, senders[i])
		relay.Connect(sessions[i])
	}

	var wg sync.WaitGroup
	for i := range sessions {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			relay.Handle(context.Background(), sessions[i], []byte(`{"type":"message","payload":{"text":"hi"}}`))
		}(i)
	}
	wg.Wait()

	if store.createdCount() != n {
		t.Fatalf("expected %d persisted messages, got %d", n, store.createdCount())
	}

	// Each session received exactly one ack with a unique id.
	ids := make(map[int64]bool)
	for i, sender := range senders {
		var ackID int64 = -1
		for _, f := range decodeFrames(t, sender) {
			if f.Type == "ack" {
				var ack struct {
					ID int64 `json:"id"`
				}
				json.Unmarshal(f.Data, &ack)
				ackID = ack.ID
			}
		}
		if ackID < 0 {
			t.Fatalf("session %d got no ack", i)
		}
		if ids[ackID] {
			t.Errorf("duplicate message id %d", ackID)
		}
		ids[ackID] = true
	}
}

func TestDeliverRemoteFansOutVerbatim(t *testing.T) {
	relay, _ := newTestRelay()

	sender1 := &collectSender{}
	s1 := NewSession("s1", nil, sender1)
	relay.Connect(s1)

	frame := []byte(`{"type":"message","data":{"id":9,"from_user":"peer","text":"yo","created_at":"2026-01-02T15:04:05Z"}}`)
	relay.DeliverRemote(frame)

	sender1.mu.Lock()
	defer sender1.mu.Unlock()
	if len(sender1.frames) != 2 {
		t.Fatalf("expected status+remote frame, got %d", len(sender1.frames))
	}
	if string(sender1.frames[1]) != string(frame) {
		t.Errorf("remote frame modified in transit: %s", sender1.frames[1])
	}
}

// recordingBridge captures frames handed to the bridge.
type recordingBridge struct {
	mu     sync.Mutex
	frames [][]byte
}

func (b *recordingBridge) Publish(frame []byte) error {
	b.mu.Lock()
	b.frames = append(b.frames, frame)
	b.mu.Unlock()
	return nil
}

func TestBroadcastsReachBridge(t *testing.T) {
	relay, _ := newTestRelay()
	bridge := &recordingBridge{}
	relay.SetBridge(bridge)

	sender1 := &collectSender{}
	s1 := NewSession("s1", &Identity{UserID: 1, Username: "ada"}, sender1)
	relay.Connect(s1)

	relay.Handle(context.Background(), s1, []byte(`{"type":"typing"}`))

	bridge.mu.Lock()
	defer bridge.mu.Unlock()
	if len(bridge.frames) != 1 {
		t.Fatalf("expected 1 bridged frame, got %d", len(bridge.frames))
	}
	var f struct {
		Type string `json:"type"`
	}
	json.Unmarshal(bridge.frames[0], &f)
	if f.Type != "typing" {
		t.Errorf("expected typing frame on bridge, got %q", f.Type)
	}
}
