package rtc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
)

func TestReplaceVideoTrackWithoutSender(t *testing.T) {
	conn, err := NewConnection(webrtc.Configuration{})
	if err != nil {
		t.Fatalf("new connection: %v", err)
	}
	defer conn.Close()

	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", "duet")
	if err != nil {
		t.Fatalf("new track: %v", err)
	}
	if err := conn.ReplaceVideoTrack(track); !errors.Is(err, ErrNoVideoSender) {
		t.Fatalf("replace: %v, want ErrNoVideoSender", err)
	}
}

func TestOnClosedFires(t *testing.T) {
	conn, err := NewConnection(webrtc.Configuration{})
	if err != nil {
		t.Fatalf("new connection: %v", err)
	}

	closed := make(chan struct{}, 1)
	conn.OnClosed(func() {
		select {
		case closed <- struct{}{}:
		default:
		}
	})
	if err := conn.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	conn.Close()
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("close notification never delivered")
	}
}
