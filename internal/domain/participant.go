// Package domain contains entities without logic, just meta-data.
package domain

import "github.com/google/uuid"

// ParticipantID is an opaque, channel-assigned identity, unique for the
// lifetime of one connection and never reused after disconnect.
type ParticipantID string

// NewParticipantID mints a fresh identity for a connection.
func NewParticipantID() ParticipantID {
	return ParticipantID(uuid.NewString())
}
