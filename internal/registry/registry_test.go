package registry

import (
	"errors"
	"testing"

	"github.com/dkeye/Duet/internal/domain"
)

func TestJoinAdmitsAtMostTwo(t *testing.T) {
	reg := New()

	count, err := reg.Join("ABCD", "alice")
	if err != nil || count != 1 {
		t.Fatalf("first join: count=%d err=%v, want 1, nil", count, err)
	}
	count, err = reg.Join("ABCD", "bob")
	if err != nil || count != 2 {
		t.Fatalf("second join: count=%d err=%v, want 2, nil", count, err)
	}

	if _, err := reg.Join("ABCD", "carol"); !errors.Is(err, ErrRoomFull) {
		t.Fatalf("third join: err=%v, want ErrRoomFull", err)
	}
	if peers := reg.PeersOf("ABCD"); len(peers) != 2 {
		t.Fatalf("rejected join mutated membership: %v", peers)
	}
	if _, ok := reg.RoomOf("carol"); ok {
		t.Fatal("rejected participant should not be tracked")
	}
}

func TestJoinEmptyCode(t *testing.T) {
	reg := New()
	if _, err := reg.Join("", "alice"); !errors.Is(err, ErrInvalidRoomCode) {
		t.Fatalf("err=%v, want ErrInvalidRoomCode", err)
	}
}

func TestJoinSameRoomTwiceIsNoop(t *testing.T) {
	reg := New()
	reg.Join("ABCD", "alice")
	count, err := reg.Join("ABCD", "alice")
	if err != nil || count != 1 {
		t.Fatalf("re-join: count=%d err=%v, want 1, nil", count, err)
	}
}

func TestJoinMovesBetweenRooms(t *testing.T) {
	reg := New()
	reg.Join("ABCD", "alice")
	if _, err := reg.Join("WXYZ", "alice"); err != nil {
		t.Fatalf("move: %v", err)
	}
	if reg.Exists("ABCD") {
		t.Fatal("old room should be removed once empty")
	}
	if code, _ := reg.RoomOf("alice"); code != "WXYZ" {
		t.Fatalf("RoomOf = %q, want WXYZ", code)
	}
}

func TestLeaveRemovesEmptyRoom(t *testing.T) {
	reg := New()
	reg.Join("ABCD", "alice")
	reg.Join("ABCD", "bob")

	if remaining := reg.Leave("ABCD", "alice"); remaining != 1 {
		t.Fatalf("remaining=%d, want 1", remaining)
	}
	if !reg.Exists("ABCD") {
		t.Fatal("room with one waiting member must not be destroyed")
	}
	if remaining := reg.Leave("ABCD", "bob"); remaining != 0 {
		t.Fatalf("remaining=%d, want 0", remaining)
	}
	if reg.Exists("ABCD") {
		t.Fatal("empty room must be removed from the registry")
	}
}

func TestLeaveIsIdempotent(t *testing.T) {
	reg := New()
	if remaining := reg.Leave("ABCD", "ghost"); remaining != 0 {
		t.Fatalf("leave unknown: remaining=%d, want 0", remaining)
	}
	reg.Join("ABCD", "alice")
	reg.Leave("ABCD", "alice")
	if remaining := reg.Leave("ABCD", "alice"); remaining != 0 {
		t.Fatalf("double leave: remaining=%d, want 0", remaining)
	}
}

func TestPeersOfUnknownRoom(t *testing.T) {
	reg := New()
	if peers := reg.PeersOf("NOPE"); peers != nil {
		t.Fatalf("peers=%v, want nil", peers)
	}
}

func TestList(t *testing.T) {
	reg := New()
	reg.Join("ABCD", "alice")
	reg.Join("WXYZ", "bob")
	reg.Join("WXYZ", "carol")

	byCode := make(map[domain.RoomCode]int)
	for _, info := range reg.List() {
		byCode[info.Code] = info.MemberCount
	}
	if byCode["ABCD"] != 1 || byCode["WXYZ"] != 2 {
		t.Fatalf("unexpected snapshot: %v", byCode)
	}
}
