// Package relay implements the signaling policy: admission events, chat and
// verbatim forwarding of negotiation payloads between the two members of a
// room. It holds no state of its own beyond the registry it consults.
package relay

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Duet/internal/domain"
	"github.com/dkeye/Duet/internal/protocol"
	"github.com/dkeye/Duet/internal/registry"
)

// Messenger is the outbound half of the channel abstraction: unicast to a
// connected participant. Delivery is best effort; a send error means the
// destination is gone or backpressured and is only logged.
type Messenger interface {
	Send(pid domain.ParticipantID, msg protocol.Message) error
}

// MembersForSession is the membership at which both sides learn the partner
// is present and negotiation may start.
const MembersForSession = registry.MaxMembers

type Relay struct {
	reg *registry.Registry
	out Messenger
}

func New(reg *registry.Registry, out Messenger) *Relay {
	return &Relay{reg: reg, out: out}
}

// HandleMessage routes one inbound envelope. Unknown types are logged and
// dropped; a single participant's bad input never affects other rooms.
func (r *Relay) HandleMessage(pid domain.ParticipantID, msg protocol.Message) {
	switch msg.Type {
	case protocol.EventJoinRoom:
		r.handleJoin(pid, msg.RoomCode)
	case protocol.EventChatMessage:
		r.handleChat(pid, msg)
	case protocol.EventOffer, protocol.EventAnswer, protocol.EventICECandidate:
		r.forward(pid, msg)
	default:
		log.Warn().Str("module", "relay").Str("type", string(msg.Type)).Str("participant", string(pid)).Msg("unknown signal")
	}
}

func (r *Relay) handleJoin(pid domain.ParticipantID, rawCode string) {
	code := domain.NormalizeRoomCode(rawCode)
	if err := domain.ValidateRoomCode(code); err != nil {
		r.sendError(pid, "invalid room code")
		return
	}

	// Moving to another room is a departure first: the abandoned partner
	// must learn about it the same way as on disconnect.
	if prev, ok := r.reg.RoomOf(pid); ok && prev != code {
		r.depart(prev, pid)
	}

	count, err := r.reg.Join(code, pid)
	if errors.Is(err, registry.ErrRoomFull) {
		log.Info().Str("module", "relay").Str("room", string(code)).Str("participant", string(pid)).Msg("join rejected, room full")
		r.send(pid, protocol.Message{Type: protocol.EventRoomFull})
		return
	}
	if err != nil {
		r.sendError(pid, "invalid room code")
		return
	}

	r.send(pid, protocol.Message{Type: protocol.EventRoomJoined, RoomCode: string(code)})
	if count == MembersForSession {
		for _, member := range r.reg.PeersOf(code) {
			r.send(member, protocol.Message{Type: protocol.EventPartnerConnected})
		}
	} else {
		r.send(pid, protocol.Message{Type: protocol.EventWaitingForPartner})
	}
}

// memberOf resolves the sender's room and rejects envelopes addressed to a
// room the sender is not in, so one room can never reach into another.
func (r *Relay) memberOf(pid domain.ParticipantID, rawCode string) (domain.RoomCode, bool) {
	code := domain.NormalizeRoomCode(rawCode)
	actual, ok := r.reg.RoomOf(pid)
	if !ok || actual != code {
		return "", false
	}
	return code, true
}

func (r *Relay) handleChat(pid domain.ParticipantID, msg protocol.Message) {
	if msg.RoomCode == "" || msg.Text == "" {
		r.sendError(pid, "chat message requires roomCode and text")
		return
	}
	code, ok := r.memberOf(pid, msg.RoomCode)
	if !ok {
		r.sendError(pid, "not a member of this room")
		return
	}
	r.broadcastExcept(code, pid, protocol.Message{Type: protocol.EventChatMessage, Text: msg.Text})
}

// forward relays offer/answer/ice-candidate envelopes untouched. With at most
// one other member, broadcast-except-sender is unicast to the partner; after
// the partner left it is a no-op.
func (r *Relay) forward(pid domain.ParticipantID, msg protocol.Message) {
	code, ok := r.memberOf(pid, msg.RoomCode)
	if !ok {
		return
	}
	r.broadcastExcept(code, pid, msg)
}

// Disconnect tears down a departed participant's membership and informs the
// remaining member, if any. Safe to call for participants in no room.
func (r *Relay) Disconnect(pid domain.ParticipantID) {
	code, ok := r.reg.RoomOf(pid)
	if !ok {
		return
	}
	r.depart(code, pid)
}

// depart removes the participant from a room and tells the remaining member,
// if any. Shared by disconnect and by joins that move between rooms.
func (r *Relay) depart(code domain.RoomCode, pid domain.ParticipantID) {
	remaining := r.reg.Leave(code, pid)
	if remaining == 0 {
		return
	}
	for _, member := range r.reg.PeersOf(code) {
		r.send(member, protocol.Message{Type: protocol.EventPartnerDisconnected})
	}
}

func (r *Relay) broadcastExcept(code domain.RoomCode, sender domain.ParticipantID, msg protocol.Message) {
	for _, member := range r.reg.PeersOf(code) {
		if member == sender {
			continue
		}
		r.send(member, msg)
	}
}

func (r *Relay) send(pid domain.ParticipantID, msg protocol.Message) {
	if err := r.out.Send(pid, msg); err != nil {
		log.Warn().Err(err).Str("module", "relay").Str("participant", string(pid)).Str("type", string(msg.Type)).Msg("send failed")
	}
}

func (r *Relay) sendError(pid domain.ParticipantID, reason string) {
	r.send(pid, protocol.Message{Type: protocol.EventError, Error: reason})
}
