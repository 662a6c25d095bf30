// Package rtc wraps the pion peer connection behind the small surface the
// negotiation controller needs.
package rtc

import (
	"context"
	"errors"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

var ErrNoVideoSender = errors.New("no outgoing video sender")

type Connection struct {
	pc *webrtc.PeerConnection

	onICE    func(webrtc.ICECandidateInit)
	onTrack  func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver)
	onClosed func()
}

func DefaultConfig() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{
				URLs: []string{"stun:stun.l.google.com:19302"},
			},
		},
	}
}

func NewConnection(cfg webrtc.Configuration) (*Connection, error) {
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}
	return &Connection{pc: pc}, nil
}

// Start installs the pion callbacks. Callbacks must be set before Start.
func (c *Connection) Start(ctx context.Context) error {
	c.pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		log.Info().Str("module", "rtc").Str("ice_state", s.String()).Msg("ICE state")
	})

	c.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("module", "rtc").Str("peer_state", s.String()).Msg("peer state")
		if s == webrtc.PeerConnectionStateFailed || s == webrtc.PeerConnectionStateClosed {
			if c.onClosed != nil {
				c.onClosed()
			}
		}
	})

	c.pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		// Trickle: candidates go to the relay as they are discovered.
		if cand != nil && c.onICE != nil {
			c.onICE(cand.ToJSON())
		}
	})

	c.pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		log.Info().Str("module", "rtc").Str("kind", track.Kind().String()).Str("track_id", track.ID()).Msg("remote track")
		if c.onTrack != nil {
			c.onTrack(track, receiver)
		}
	})

	return nil
}

// AddLocalTrack attaches a local track to the connection.
func (c *Connection) AddLocalTrack(track webrtc.TrackLocal) error {
	_, err := c.pc.AddTrack(track)
	return err
}

// ReplaceVideoTrack swaps the outgoing video track in place. The transceiver
// and its SDP-level attributes are unchanged, so no offer/answer round
// follows.
func (c *Connection) ReplaceVideoTrack(track webrtc.TrackLocal) error {
	for _, sender := range c.pc.GetSenders() {
		current := sender.Track()
		if current == nil || current.Kind() != webrtc.RTPCodecTypeVideo {
			continue
		}
		return sender.ReplaceTrack(track)
	}
	return ErrNoVideoSender
}

// CreateAndSetOffer produces the local offer. The local description is set
// before the offer is handed to the caller for sending.
func (c *Connection) CreateAndSetOffer() (*webrtc.SessionDescription, error) {
	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return nil, err
	}
	if err := c.pc.SetLocalDescription(offer); err != nil {
		return nil, err
	}
	return c.pc.LocalDescription(), nil
}

// ApplyOfferAndCreateAnswer sets the remote offer and produces the local
// answer, again set locally before it is sent.
func (c *Connection) ApplyOfferAndCreateAnswer(offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	if err := c.pc.SetRemoteDescription(offer); err != nil {
		return nil, err
	}
	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return nil, err
	}
	if err := c.pc.SetLocalDescription(answer); err != nil {
		return nil, err
	}
	return c.pc.LocalDescription(), nil
}

func (c *Connection) ApplyAnswer(answer webrtc.SessionDescription) error {
	return c.pc.SetRemoteDescription(answer)
}

func (c *Connection) AddICECandidate(cand webrtc.ICECandidateInit) error {
	return c.pc.AddICECandidate(cand)
}

func (c *Connection) RemoteDescriptionSet() bool {
	return c.pc.RemoteDescription() != nil
}

func (c *Connection) OnICECandidate(fn func(webrtc.ICECandidateInit)) { c.onICE = fn }

func (c *Connection) OnTrack(fn func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver)) {
	c.onTrack = fn
}

// OnClosed fires once the peer connection reaches failed or closed.
func (c *Connection) OnClosed(fn func()) { c.onClosed = fn }

func (c *Connection) Close() {
	if c.pc != nil {
		if err := c.pc.Close(); err != nil {
			log.Error().Err(err).Str("module", "rtc").Msg("close error")
		}
	}
}
