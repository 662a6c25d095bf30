package domain

import (
	"errors"
	"math/rand"
	"strings"
)

// MinRoomCodeLen mirrors the web client's validation; codes shorter than
// this are rejected before they ever reach the registry.
const MinRoomCodeLen = 4

// GeneratedCodeLen is the length of server-generated room codes.
const GeneratedCodeLen = 6

var (
	ErrRoomCodeEmpty    = errors.New("room code empty")
	ErrRoomCodeTooShort = errors.New("room code too short")
)

// RoomCode identifies a two-party session. Codes are case-insensitive and
// stored normalized.
type RoomCode string

const base36Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// NormalizeRoomCode ensures consistent formatting (uppercase, trimmed).
func NormalizeRoomCode(raw string) RoomCode {
	return RoomCode(strings.ToUpper(strings.TrimSpace(raw)))
}

// ValidateRoomCode checks a normalized code against the length rules.
func ValidateRoomCode(code RoomCode) error {
	if code == "" {
		return ErrRoomCodeEmpty
	}
	if len(code) < MinRoomCodeLen {
		return ErrRoomCodeTooShort
	}
	return nil
}

// GenerateRoomCode creates a random base-36 room code.
func GenerateRoomCode() RoomCode {
	b := make([]byte, GeneratedCodeLen)
	for i := range b {
		b[i] = base36Alphabet[rand.Intn(len(base36Alphabet))]
	}
	return RoomCode(b)
}
