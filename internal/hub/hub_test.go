package hub

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"pairpad/internal/models"
	"pairpad/internal/transport"
)

// testRelay spins up a hub behind a real websocket endpoint.
func testRelay(t *testing.T) (*Hub, string) {
	t.Helper()
	h := New()
	h.Start()

	router := mux.NewRouter()
	router.HandleFunc("/ws/room/{id}", NewHandler(h).HandleRoomConnection)
	srv := httptest.NewServer(router)

	t.Cleanup(func() {
		srv.Close()
		h.Shutdown()
	})
	return h, "ws" + strings.TrimPrefix(srv.URL, "http")
}

type peerInbox struct {
	envelopes chan models.Envelope
	presence  chan map[string]models.PresenceRecord
}

func newPeerInbox() *peerInbox {
	return &peerInbox{
		envelopes: make(chan models.Envelope, 16),
		presence:  make(chan map[string]models.PresenceRecord, 16),
	}
}

func (p *peerInbox) handlers() transport.Handlers {
	return transport.Handlers{
		OnEnvelope: func(env models.Envelope) { p.envelopes <- env },
		OnPresence: func(dir map[string]models.PresenceRecord) { p.presence <- dir },
	}
}

func connect(t *testing.T, hubURL, room, peerID string, in *peerInbox) *transport.WebsocketChannel {
	t.Helper()
	ch := transport.NewWebsocketChannel(hubURL, room, peerID, in.handlers())
	if err := ch.Subscribe(context.Background()); err != nil {
		t.Fatalf("subscribe %s: %v", peerID, err)
	}
	t.Cleanup(func() { ch.Close() })
	return ch
}

func awaitPresence(t *testing.T, in *peerInbox, want int) map[string]models.PresenceRecord {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case dir := <-in.presence:
			if len(dir) == want {
				return dir
			}
		case <-deadline:
			t.Fatalf("no presence sync with %d entries", want)
		}
	}
}

func TestRelayExcludesSender(t *testing.T) {
	_, hubURL := testRelay(t)
	aIn, bIn := newPeerInbox(), newPeerInbox()
	a := connect(t, hubURL, "room1", "peer-a", aIn)
	connect(t, hubURL, "room1", "peer-b", bIn)

	env := models.Envelope{
		Event: models.EventCodeUpdate,
		CodeUpdate: &models.CodeUpdatePayload{
			Code: "let x = 1", Language: models.LangJavaScript, UpdatedBy: "peer-a",
		},
	}
	if err := a.Publish(env); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-bIn.envelopes:
		if got.Event != models.EventCodeUpdate || got.CodeUpdate.Code != "let x = 1" {
			t.Fatalf("got %+v", got)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("broadcast never reached the other peer")
	}

	select {
	case got := <-aIn.envelopes:
		t.Fatalf("sender received its own broadcast: %+v", got)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestPresenceFannedToWholeRoom(t *testing.T) {
	_, hubURL := testRelay(t)
	aIn, bIn := newPeerInbox(), newPeerInbox()
	a := connect(t, hubURL, "room1", "peer-a", aIn)
	connect(t, hubURL, "room1", "peer-b", bIn)

	if err := a.Track(models.PresenceRecord{PeerID: "peer-a", Name: "ada", IsOwner: true}); err != nil {
		t.Fatal(err)
	}

	dirA := awaitPresence(t, aIn, 1)
	dirB := awaitPresence(t, bIn, 1)
	if !dirA["peer-a"].IsOwner || dirB["peer-a"].Name != "ada" {
		t.Fatalf("directories: a=%+v b=%+v", dirA, dirB)
	}
}

func TestLateJoinerReceivesRoster(t *testing.T) {
	_, hubURL := testRelay(t)
	aIn := newPeerInbox()
	a := connect(t, hubURL, "room1", "peer-a", aIn)
	if err := a.Track(models.PresenceRecord{PeerID: "peer-a", Name: "ada"}); err != nil {
		t.Fatal(err)
	}
	awaitPresence(t, aIn, 1)

	bIn := newPeerInbox()
	connect(t, hubURL, "room1", "peer-b", bIn)
	dir := awaitPresence(t, bIn, 1)
	if dir["peer-a"].Name != "ada" {
		t.Fatalf("roster missing earlier peer: %+v", dir)
	}
}

func TestDisconnectRemovesPresence(t *testing.T) {
	_, hubURL := testRelay(t)
	aIn, bIn := newPeerInbox(), newPeerInbox()
	a := connect(t, hubURL, "room1", "peer-a", aIn)
	connect(t, hubURL, "room1", "peer-b", bIn)

	if err := a.Track(models.PresenceRecord{PeerID: "peer-a", Name: "ada"}); err != nil {
		t.Fatal(err)
	}
	awaitPresence(t, bIn, 1)

	a.Close()

	awaitPresence(t, bIn, 0)
}

func TestRoomsAreIsolated(t *testing.T) {
	h, hubURL := testRelay(t)
	aIn, bIn := newPeerInbox(), newPeerInbox()
	a := connect(t, hubURL, "room1", "peer-a", aIn)
	connect(t, hubURL, "room2", "peer-b", bIn)

	if got := h.RoomCount(); got != 2 {
		t.Fatalf("RoomCount = %d, want 2", got)
	}

	env := models.Envelope{
		Event:      models.EventCodeUpdate,
		CodeUpdate: &models.CodeUpdatePayload{Code: "x", Language: models.LangGo, UpdatedBy: "peer-a"},
	}
	if err := a.Publish(env); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-bIn.envelopes:
		t.Fatalf("message crossed rooms: %+v", got)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestSlowClientDoesNotStallHub(t *testing.T) {
	h := New()
	h.Start()

	slow := newClient(h, "room1", "slow", nil)
	h.register <- slow
	for len(slow.send) < cap(slow.send) {
		slow.send <- []byte("x")
	}

	fast := newClient(h, "room1", "fast", nil)
	h.register <- fast

	h.broadcast <- &roomMessage{room: "room1", data: []byte("hello"), sender: fast}

	// The event loop must keep serving registrations after dropping the
	// slow client.
	third := newClient(h, "room2", "third", nil)
	registered := make(chan struct{})
	go func() {
		h.register <- third
		close(registered)
	}()
	select {
	case <-registered:
	case <-time.After(2 * time.Second):
		t.Fatal("hub event loop stalled after a slow-client broadcast")
	}

	deadline := time.After(2 * time.Second)
	for {
		h.mu.RLock()
		_, present := h.rooms["room1"][slow]
		h.mu.RUnlock()
		if !present {
			break
		}
		select {
		case <-deadline:
			t.Fatal("slow client was never dropped from its room")
		case <-time.After(5 * time.Millisecond):
		}
	}

	// Drain the remaining clients so Shutdown has no live connections to
	// close (these test clients carry no websocket).
	h.unregister <- fast
	h.unregister <- third
	deadline = time.After(2 * time.Second)
	for h.RoomCount() != 0 {
		select {
		case <-deadline:
			t.Fatal("rooms never drained")
		case <-time.After(5 * time.Millisecond):
		}
	}
	h.Shutdown()
}
