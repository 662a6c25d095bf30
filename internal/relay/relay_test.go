package relay

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/dkeye/Duet/internal/domain"
	"github.com/dkeye/Duet/internal/protocol"
	"github.com/dkeye/Duet/internal/registry"
)

type fakeMessenger struct {
	mu   sync.Mutex
	sent map[domain.ParticipantID][]protocol.Message
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{sent: make(map[domain.ParticipantID][]protocol.Message)}
}

func (f *fakeMessenger) Send(pid domain.ParticipantID, msg protocol.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent[pid] = append(f.sent[pid], msg)
	return nil
}

func (f *fakeMessenger) of(pid domain.ParticipantID) []protocol.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]protocol.Message(nil), f.sent[pid]...)
}

func (f *fakeMessenger) types(pid domain.ParticipantID) []protocol.Event {
	out := []protocol.Event{}
	for _, m := range f.of(pid) {
		out = append(out, m.Type)
	}
	return out
}

func newRelay() (*Relay, *registry.Registry, *fakeMessenger) {
	reg := registry.New()
	out := newFakeMessenger()
	return New(reg, out), reg, out
}

func join(r *Relay, pid domain.ParticipantID, code string) {
	r.HandleMessage(pid, protocol.Message{Type: protocol.EventJoinRoom, RoomCode: code})
}

func equalEvents(got, want []protocol.Event) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestJoinSequence(t *testing.T) {
	r, _, out := newRelay()

	join(r, "alice", "abcd")
	if got := out.types("alice"); !equalEvents(got, []protocol.Event{protocol.EventRoomJoined, protocol.EventWaitingForPartner}) {
		t.Fatalf("alice events = %v", got)
	}
	if msgs := out.of("alice"); msgs[0].RoomCode != "ABCD" {
		t.Fatalf("room_joined carries %q, want normalized ABCD", msgs[0].RoomCode)
	}

	join(r, "bob", "ABCD")
	if got := out.types("bob"); !equalEvents(got, []protocol.Event{protocol.EventRoomJoined, protocol.EventPartnerConnected}) {
		t.Fatalf("bob events = %v", got)
	}
	if got := out.types("alice"); got[len(got)-1] != protocol.EventPartnerConnected {
		t.Fatalf("alice never learned about the partner: %v", got)
	}
}

func TestJoinFullRoom(t *testing.T) {
	r, reg, out := newRelay()
	join(r, "alice", "ABCD")
	join(r, "bob", "ABCD")

	join(r, "carol", "ABCD")
	if got := out.types("carol"); !equalEvents(got, []protocol.Event{protocol.EventRoomFull}) {
		t.Fatalf("carol events = %v, want only room_full", got)
	}
	if peers := reg.PeersOf("ABCD"); len(peers) != 2 {
		t.Fatalf("membership changed by rejected join: %v", peers)
	}
	// Nobody else hears about the rejection.
	for _, pid := range []domain.ParticipantID{"alice", "bob"} {
		for _, ev := range out.types(pid) {
			if ev == protocol.EventRoomFull {
				t.Fatalf("%s received room_full", pid)
			}
		}
	}
}

func TestJoinInvalidCode(t *testing.T) {
	r, _, out := newRelay()
	for _, raw := range []string{"", "   ", "abc"} {
		join(r, "alice", raw)
	}
	for _, msg := range out.of("alice") {
		if msg.Type != protocol.EventError {
			t.Fatalf("invalid join produced %v, want only error events", msg.Type)
		}
	}
	if len(out.of("alice")) != 3 {
		t.Fatalf("expected one error per attempt, got %d", len(out.of("alice")))
	}
}

func TestChatRelayedToPartnerOnly(t *testing.T) {
	r, _, out := newRelay()
	join(r, "alice", "ABCD")
	join(r, "bob", "ABCD")

	r.HandleMessage("alice", protocol.Message{Type: protocol.EventChatMessage, RoomCode: "ABCD", Text: "hi"})

	bob := out.of("bob")
	last := bob[len(bob)-1]
	if last.Type != protocol.EventChatMessage || last.Text != "hi" {
		t.Fatalf("bob got %+v", last)
	}
	for _, msg := range out.of("alice") {
		if msg.Type == protocol.EventChatMessage {
			t.Fatal("chat echoed back to sender")
		}
	}
}

func TestChatValidation(t *testing.T) {
	r, _, out := newRelay()
	join(r, "alice", "ABCD")

	r.HandleMessage("alice", protocol.Message{Type: protocol.EventChatMessage, RoomCode: "ABCD"})
	msgs := out.of("alice")
	if last := msgs[len(msgs)-1]; last.Type != protocol.EventError {
		t.Fatalf("empty chat produced %v, want error", last.Type)
	}
}

func TestForwardingPreservesOrder(t *testing.T) {
	r, _, out := newRelay()
	join(r, "alice", "ABCD")
	join(r, "bob", "ABCD")

	offer := json.RawMessage(`{"type":"offer","sdp":"v=0"}`)
	c1 := json.RawMessage(`{"candidate":"one"}`)
	c2 := json.RawMessage(`{"candidate":"two"}`)
	r.HandleMessage("alice", protocol.Message{Type: protocol.EventOffer, RoomCode: "ABCD", Offer: offer})
	r.HandleMessage("alice", protocol.Message{Type: protocol.EventICECandidate, RoomCode: "ABCD", Candidate: c1})
	r.HandleMessage("alice", protocol.Message{Type: protocol.EventICECandidate, RoomCode: "ABCD", Candidate: c2})

	var got []protocol.Message
	for _, msg := range out.of("bob") {
		if msg.Type == protocol.EventOffer || msg.Type == protocol.EventICECandidate {
			got = append(got, msg)
		}
	}
	if len(got) != 3 || got[0].Type != protocol.EventOffer {
		t.Fatalf("bob observed %v", got)
	}
	if string(got[1].Candidate) != string(c1) || string(got[2].Candidate) != string(c2) {
		t.Fatalf("candidates out of order: %s then %s", got[1].Candidate, got[2].Candidate)
	}
	if string(got[0].Offer) != string(offer) {
		t.Fatalf("offer not forwarded verbatim: %s", got[0].Offer)
	}
}

func TestNoCrossRoomLeak(t *testing.T) {
	r, _, out := newRelay()
	join(r, "alice", "ABCD")
	join(r, "bob", "WXYZ")

	r.HandleMessage("alice", protocol.Message{Type: protocol.EventOffer, RoomCode: "WXYZ", Offer: json.RawMessage(`{}`)})
	r.HandleMessage("alice", protocol.Message{Type: protocol.EventChatMessage, RoomCode: "WXYZ", Text: "sneak"})

	for _, msg := range out.of("bob") {
		if msg.Type == protocol.EventOffer || msg.Type == protocol.EventChatMessage {
			t.Fatalf("message crossed rooms: %+v", msg)
		}
	}
}

func TestDisconnectNotifiesSurvivor(t *testing.T) {
	r, reg, out := newRelay()
	join(r, "alice", "ABCD")
	join(r, "bob", "ABCD")

	r.Disconnect("bob")

	alice := out.types("alice")
	if alice[len(alice)-1] != protocol.EventPartnerDisconnected {
		t.Fatalf("alice events = %v", alice)
	}
	if peers := reg.PeersOf("ABCD"); len(peers) != 1 {
		t.Fatalf("peers = %v, want only alice", peers)
	}

	// Last member leaving removes the room entirely.
	r.Disconnect("alice")
	if reg.Exists("ABCD") {
		t.Fatal("room survived both disconnects")
	}
	// Disconnecting someone in no room is a no-op.
	r.Disconnect("alice")
}

func TestRejoinNotifiesAbandonedPartner(t *testing.T) {
	r, reg, out := newRelay()
	join(r, "alice", "ABCD")
	join(r, "bob", "ABCD")

	// Bob moves to another room without disconnecting.
	join(r, "bob", "WXYZ")

	alice := out.types("alice")
	if alice[len(alice)-1] != protocol.EventPartnerDisconnected {
		t.Fatalf("alice never told her partner left; events = %v", alice)
	}
	if got := out.types("bob")[2:]; !equalEvents(got, []protocol.Event{protocol.EventRoomJoined, protocol.EventWaitingForPartner}) {
		t.Fatalf("bob events after move = %v", got)
	}
	if peers := reg.PeersOf("ABCD"); len(peers) != 1 {
		t.Fatalf("old room peers = %v, want only alice", peers)
	}
	if code, _ := reg.RoomOf("bob"); code != "WXYZ" {
		t.Fatalf("bob tracked in %q, want WXYZ", code)
	}
}

func TestStaleOfferAfterPartnerGone(t *testing.T) {
	r, _, out := newRelay()
	join(r, "alice", "ABCD")
	join(r, "bob", "ABCD")
	r.Disconnect("bob")

	before := len(out.of("bob"))
	r.HandleMessage("alice", protocol.Message{Type: protocol.EventOffer, RoomCode: "ABCD", Offer: json.RawMessage(`{}`)})
	if len(out.of("bob")) != before {
		t.Fatal("stale offer reached a departed participant")
	}
}
