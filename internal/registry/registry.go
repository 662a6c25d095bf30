// Package registry owns the process-wide room table: which participants sit
// in which room. Admission control lives here; nothing outside this package
// touches the underlying maps.
package registry

import (
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Duet/internal/domain"
)

// MaxMembers caps a room at two participants.
const MaxMembers = 2

var (
	ErrInvalidRoomCode = errors.New("invalid room code")
	ErrRoomFull        = errors.New("room full")
)

// Registry maps room codes to member sets, plus the reverse lookup used on
// disconnect. All mutations are single-step map operations under one mutex.
type Registry struct {
	mu     sync.RWMutex
	rooms  map[domain.RoomCode]map[domain.ParticipantID]struct{}
	inRoom map[domain.ParticipantID]domain.RoomCode
}

func New() *Registry {
	return &Registry{
		rooms:  make(map[domain.RoomCode]map[domain.ParticipantID]struct{}),
		inRoom: make(map[domain.ParticipantID]domain.RoomCode),
	}
}

// Join admits a participant into a room, creating the room if absent, and
// returns the member count after admission (1 or 2). A participant already in
// another room is moved; joining the same room twice is a no-op.
func (r *Registry) Join(code domain.RoomCode, pid domain.ParticipantID) (int, error) {
	if code == "" {
		return 0, ErrInvalidRoomCode
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.inRoom[pid]; ok {
		if prev == code {
			return len(r.rooms[code]), nil
		}
		r.removeLocked(prev, pid)
	}

	members, ok := r.rooms[code]
	if !ok {
		members = make(map[domain.ParticipantID]struct{}, MaxMembers)
		r.rooms[code] = members
	}
	if len(members) >= MaxMembers {
		return 0, ErrRoomFull
	}

	members[pid] = struct{}{}
	r.inRoom[pid] = code
	log.Info().Str("module", "registry").Str("room", string(code)).Str("participant", string(pid)).Int("members", len(members)).Msg("joined room")
	return len(members), nil
}

// Leave removes a participant and returns the remaining member count.
// The room entry is deleted as soon as it becomes empty. Leaving a room the
// participant is not in is a no-op returning 0.
func (r *Registry) Leave(code domain.RoomCode, pid domain.ParticipantID) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[code]
	if !ok {
		return 0
	}
	if _, ok := members[pid]; !ok {
		return 0
	}
	remaining := r.removeLocked(code, pid)
	log.Info().Str("module", "registry").Str("room", string(code)).Str("participant", string(pid)).Int("remaining", remaining).Msg("left room")
	return remaining
}

func (r *Registry) removeLocked(code domain.RoomCode, pid domain.ParticipantID) int {
	members := r.rooms[code]
	delete(members, pid)
	delete(r.inRoom, pid)
	if len(members) == 0 {
		delete(r.rooms, code)
		log.Info().Str("module", "registry").Str("room", string(code)).Msg("room removed")
		return 0
	}
	return len(members)
}

// PeersOf returns a snapshot of a room's members. With at most two members
// this is how the relay resolves "the other participant".
func (r *Registry) PeersOf(code domain.RoomCode) []domain.ParticipantID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members, ok := r.rooms[code]
	if !ok {
		return nil
	}
	out := make([]domain.ParticipantID, 0, len(members))
	for pid := range members {
		out = append(out, pid)
	}
	return out
}

// RoomOf reports which room a participant currently occupies.
// Consulted on disconnect, when the client cannot name its room itself.
func (r *Registry) RoomOf(pid domain.ParticipantID) (domain.RoomCode, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	code, ok := r.inRoom[pid]
	return code, ok
}

// Exists reports whether a room currently has any members.
func (r *Registry) Exists(code domain.RoomCode) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[code]
	return ok
}

// Info is a read-only view of one room for the monitoring API.
type Info struct {
	Code        domain.RoomCode `json:"code"`
	MemberCount int             `json:"member_count"`
}

// List snapshots all live rooms.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Info, 0, len(r.rooms))
	for code, members := range r.rooms {
		out = append(out, Info{Code: code, MemberCount: len(members)})
	}
	return out
}
