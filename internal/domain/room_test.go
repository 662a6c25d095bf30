package domain

import (
	"strings"
	"testing"
)

func TestNormalizeRoomCode(t *testing.T) {
	cases := []struct {
		raw  string
		want RoomCode
	}{
		{"abcd", "ABCD"},
		{"  abCD ", "ABCD"},
		{"WXYZ12", "WXYZ12"},
		{"", ""},
	}
	for _, c := range cases {
		if got := NormalizeRoomCode(c.raw); got != c.want {
			t.Errorf("NormalizeRoomCode(%q) = %q, want %q", c.raw, got, c.want)
		}
	}
}

func TestValidateRoomCode(t *testing.T) {
	if err := ValidateRoomCode(""); err != ErrRoomCodeEmpty {
		t.Errorf("empty code: got %v, want ErrRoomCodeEmpty", err)
	}
	if err := ValidateRoomCode("ABC"); err != ErrRoomCodeTooShort {
		t.Errorf("short code: got %v, want ErrRoomCodeTooShort", err)
	}
	if err := ValidateRoomCode("ABCD"); err != nil {
		t.Errorf("valid code: got %v, want nil", err)
	}
}

func TestGenerateRoomCode(t *testing.T) {
	for i := 0; i < 20; i++ {
		code := GenerateRoomCode()
		if len(code) != GeneratedCodeLen {
			t.Fatalf("generated code %q has length %d, want %d", code, len(code), GeneratedCodeLen)
		}
		for _, r := range string(code) {
			if !strings.ContainsRune(base36Alphabet, r) {
				t.Fatalf("generated code %q contains %q outside the base-36 alphabet", code, r)
			}
		}
		if err := ValidateRoomCode(code); err != nil {
			t.Fatalf("generated code %q failed validation: %v", code, err)
		}
	}
}
