// Package protocol defines the JSON envelope carried over the signaling
// channel. Negotiation payloads stay raw: the relay forwards them verbatim
// and never inspects SDP or candidate contents.
package protocol

import "encoding/json"

// Event tags a signaling message.
type Event string

const (
	// client -> server
	EventJoinRoom Event = "join_room"

	// server -> client
	EventRoomJoined          Event = "room_joined"
	EventRoomFull            Event = "room_full"
	EventWaitingForPartner   Event = "waiting_for_partner"
	EventPartnerConnected    Event = "partner_connected"
	EventPartnerDisconnected Event = "partner_disconnected"
	EventError               Event = "error"

	// relayed between the two room members
	EventChatMessage  Event = "chat_message"
	EventOffer        Event = "offer"
	EventAnswer       Event = "answer"
	EventICECandidate Event = "ice-candidate"
)

// Message is the wire envelope. Exactly one payload field is set per event.
type Message struct {
	Type      Event           `json:"type"`
	RoomCode  string          `json:"roomCode,omitempty"`
	Text      string          `json:"text,omitempty"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// Encode marshals a message for the transport.
func Encode(m Message) ([]byte, error) {
	return json.Marshal(m)
}

// Decode parses a wire frame into a message.
func Decode(data []byte) (Message, error) {
	var m Message
	err := json.Unmarshal(data, &m)
	return m, err
}
