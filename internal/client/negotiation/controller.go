// Package negotiation drives one peer connection through the offer/answer/ICE
// exchange as an explicit state machine, and sequences later track
// replacements (camera switch, screen share) against it.
package negotiation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Duet/internal/client/media"
)

// State of the negotiation session.
type State int

const (
	StateIdle State = iota
	StateHaveLocalOffer
	StateHaveRemoteOffer
	StateStable
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateHaveLocalOffer:
		return "have-local-offer"
	case StateHaveRemoteOffer:
		return "have-remote-offer"
	case StateStable:
		return "stable"
	default:
		return "unknown"
	}
}

var (
	ErrReplaceRejected = errors.New("track replacement rejected")
	ErrNegotiation     = errors.New("negotiation failure")
)

// PeerLink is the peer-connection capability the controller consumes. It is
// implemented by rtc.Connection and by fakes in tests.
type PeerLink interface {
	Start(ctx context.Context) error
	AddLocalTrack(track webrtc.TrackLocal) error
	ReplaceVideoTrack(track webrtc.TrackLocal) error
	CreateAndSetOffer() (*webrtc.SessionDescription, error)
	ApplyOfferAndCreateAnswer(offer webrtc.SessionDescription) (*webrtc.SessionDescription, error)
	ApplyAnswer(answer webrtc.SessionDescription) error
	AddICECandidate(cand webrtc.ICECandidateInit) error
	RemoteDescriptionSet() bool
	OnICECandidate(fn func(webrtc.ICECandidateInit))
	OnTrack(fn func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver))
	Close()
}

// Signaler is the outbound half of the signaling channel.
type Signaler interface {
	SendOffer(sdp webrtc.SessionDescription) error
	SendAnswer(sdp webrtc.SessionDescription) error
	SendCandidate(cand webrtc.ICECandidateInit) error
}

// Controller owns one negotiation session: one peer link, the media manager's
// handles, and the pending state that bridges the gap between a partner's
// offer and the local user opting into media.
type Controller struct {
	mu sync.Mutex

	state   State
	link    PeerLink
	newLink func() (PeerLink, error)
	media   *media.Manager
	sig     Signaler
	notify  func(notice string)

	pendingOffer      *webrtc.SessionDescription
	pendingCandidates []webrtc.ICECandidateInit
	onRemoteTrack     func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver)
}

func New(newLink func() (PeerLink, error), mgr *media.Manager, sig Signaler, notify func(string)) *Controller {
	if notify == nil {
		notify = func(string) {}
	}
	return &Controller{
		state:   StateIdle,
		newLink: newLink,
		media:   mgr,
		sig:     sig,
		notify:  notify,
	}
}

// OnRemoteTrack registers the sink for incoming media.
func (c *Controller) OnRemoteTrack(fn func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onRemoteTrack = fn
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// StartLocalMedia acquires camera and microphone and begins negotiating.
// If the partner's offer is already pending it answers that offer; otherwise
// it creates and sends an offer. A media acquisition failure surfaces a
// notice and leaves the controller Idle with no partial state.
func (c *Controller) StartLocalMedia(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.media.Start(); err != nil {
		if errors.Is(err, media.ErrAlreadyActive) {
			return nil
		}
		c.notify("Could not access camera/microphone.")
		return err
	}

	if err := c.ensureLinkLocked(ctx); err != nil {
		c.media.Stop()
		c.notify("Could not set up the call.")
		return err
	}

	if c.pendingOffer != nil {
		offer := *c.pendingOffer
		c.pendingOffer = nil
		return c.answerLocked(offer)
	}

	offer, err := c.link.CreateAndSetOffer()
	if err != nil {
		c.notify("Could not start the call.")
		return fmt.Errorf("%w: %v", ErrNegotiation, err)
	}
	if err := c.sig.SendOffer(*offer); err != nil {
		return fmt.Errorf("send offer: %w", err)
	}
	c.state = StateHaveLocalOffer
	log.Info().Str("module", "negotiation").Str("state", c.state.String()).Msg("offer sent")
	return nil
}

// HandleRemoteOffer reacts to the partner's offer. Without active local media
// the offer is held and a notice is surfaced; both sides must opt into media
// before a session forms. With local media active it answers immediately.
func (c *Controller) HandleRemoteOffer(ctx context.Context, offer webrtc.SessionDescription) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.media.Active() {
		c.pendingOffer = &offer
		c.notify("Partner started video. Start your video to join.")
		log.Info().Str("module", "negotiation").Msg("offer held until local media starts")
		return nil
	}

	if err := c.ensureLinkLocked(ctx); err != nil {
		c.notify("Could not set up the call.")
		return err
	}
	return c.answerLocked(offer)
}

// answerLocked sets the remote offer, produces and sends the answer.
// A rejected description leaves the session in its prior state.
func (c *Controller) answerLocked(offer webrtc.SessionDescription) error {
	prior := c.state
	c.state = StateHaveRemoteOffer
	answer, err := c.link.ApplyOfferAndCreateAnswer(offer)
	if err != nil {
		c.state = prior
		c.notify("Call setup failed.")
		return fmt.Errorf("%w: %v", ErrNegotiation, err)
	}
	c.drainCandidatesLocked()
	if err := c.sig.SendAnswer(*answer); err != nil {
		return fmt.Errorf("send answer: %w", err)
	}
	c.state = StateStable
	log.Info().Str("module", "negotiation").Str("state", c.state.String()).Msg("answer sent")
	return nil
}

// HandleRemoteAnswer applies the partner's answer. A no-op when no session
// exists, guarding against answers for a session already torn down.
func (c *Controller) HandleRemoteAnswer(answer webrtc.SessionDescription) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.link == nil {
		return nil
	}
	if err := c.link.ApplyAnswer(answer); err != nil {
		c.notify("Call setup failed.")
		return fmt.Errorf("%w: %v", ErrNegotiation, err)
	}
	c.drainCandidatesLocked()
	c.state = StateStable
	log.Info().Str("module", "negotiation").Str("state", c.state.String()).Msg("answer applied")
	return nil
}

// HandleRemoteCandidate applies or queues a partner candidate. Candidates
// arriving before the remote description are queued, never dropped; with no
// link and no pending offer they refer to a torn-down session and are
// ignored.
func (c *Controller) HandleRemoteCandidate(cand webrtc.ICECandidateInit) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.link == nil {
		if c.pendingOffer != nil {
			c.pendingCandidates = append(c.pendingCandidates, cand)
		}
		return nil
	}
	if !c.link.RemoteDescriptionSet() {
		c.pendingCandidates = append(c.pendingCandidates, cand)
		return nil
	}
	return c.link.AddICECandidate(cand)
}

func (c *Controller) drainCandidatesLocked() {
	for _, cand := range c.pendingCandidates {
		if err := c.link.AddICECandidate(cand); err != nil {
			log.Warn().Err(err).Str("module", "negotiation").Msg("queued candidate rejected")
		}
	}
	c.pendingCandidates = nil
}

// HandlePartnerDisconnected downgrades the session: the connection is closed
// but local media keeps running so the user can wait for a new partner.
func (c *Controller) HandlePartnerDisconnected() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.link != nil {
		c.link.Close()
		c.link = nil
	}
	c.pendingOffer = nil
	c.pendingCandidates = nil
	if c.media.Active() {
		c.state = StateIdle
	}
	c.notify("Partner disconnected.")
}

// Stop tears the whole session down: connection closed, every device handle
// released, state back to Idle. Always safe to call, including when Idle.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.link != nil {
		c.link.Close()
		c.link = nil
	}
	c.media.Stop()
	c.pendingOffer = nil
	c.pendingCandidates = nil
	c.state = StateIdle
	log.Info().Str("module", "negotiation").Msg("session stopped")
}

// ensureLinkLocked constructs the peer link once; constructing twice is a
// no-op. Local tracks are attached at construction.
func (c *Controller) ensureLinkLocked(ctx context.Context) error {
	if c.link != nil {
		return nil
	}
	link, err := c.newLink()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNegotiation, err)
	}
	link.OnICECandidate(func(cand webrtc.ICECandidateInit) {
		if err := c.sig.SendCandidate(cand); err != nil {
			log.Warn().Err(err).Str("module", "negotiation").Msg("candidate send failed")
		}
	})
	if c.onRemoteTrack != nil {
		link.OnTrack(c.onRemoteTrack)
	}
	if err := link.Start(ctx); err != nil {
		link.Close()
		return fmt.Errorf("%w: %v", ErrNegotiation, err)
	}
	if audio := c.media.AudioTrack(); audio != nil {
		if err := link.AddLocalTrack(audio); err != nil {
			link.Close()
			return fmt.Errorf("%w: %v", ErrNegotiation, err)
		}
	}
	if video := c.media.OutgoingVideo(); video != nil {
		if err := link.AddLocalTrack(video); err != nil {
			link.Close()
			return fmt.Errorf("%w: %v", ErrNegotiation, err)
		}
	}
	c.link = link
	return nil
}

// SwitchCamera swaps to the next camera and replaces the outgoing video
// track in place; no new offer/answer round is produced. While a screen
// share is active only the underlying camera changes, the outgoing screen
// track is untouched. Replacement rejection is surfaced, not retried.
func (c *Controller) SwitchCamera() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	fresh, switched, err := c.media.SwitchCamera()
	if err != nil {
		return err
	}
	if !switched {
		return nil
	}
	if c.link == nil || c.media.ScreenActive() {
		return nil
	}
	if err := c.link.ReplaceVideoTrack(fresh); err != nil {
		c.notify("Camera switch was rejected by the connection.")
		return fmt.Errorf("%w: %v", ErrReplaceRejected, err)
	}
	return nil
}

// StartScreenShare swaps the outgoing video to a display capture in place.
// If the capture ends from the outside the camera is restored the same way.
func (c *Controller) StartScreenShare() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	screen, err := c.media.StartScreenShare(func() {
		c.restoreCameraTrack()
		c.notify("Screen sharing ended.")
	})
	if err != nil {
		return err
	}
	if c.link == nil {
		return nil
	}
	if err := c.link.ReplaceVideoTrack(screen); err != nil {
		// Back out entirely: the share never becomes half-active.
		if _, stopErr := c.media.StopScreenShare(); stopErr != nil {
			log.Warn().Err(stopErr).Str("module", "negotiation").Msg("screen share rollback")
		}
		c.notify("Screen sharing was rejected by the connection.")
		return fmt.Errorf("%w: %v", ErrReplaceRejected, err)
	}
	return nil
}

// StopScreenShare releases the capture and restores the camera track.
func (c *Controller) StopScreenShare() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	camera, err := c.media.StopScreenShare()
	if err != nil {
		if errors.Is(err, media.ErrNotActive) {
			return nil
		}
		return err
	}
	return c.replaceVideoLocked(camera)
}

func (c *Controller) restoreCameraTrack() {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.replaceVideoLocked(c.media.CameraTrack())
}

func (c *Controller) replaceVideoLocked(track media.VideoTrack) error {
	if c.link == nil || track == nil {
		return nil
	}
	if err := c.link.ReplaceVideoTrack(track); err != nil {
		return fmt.Errorf("%w: %v", ErrReplaceRejected, err)
	}
	return nil
}

// ToggleTorch flips the camera flash where supported.
func (c *Controller) ToggleTorch() (bool, error) {
	return c.media.ToggleTorch()
}

// Controls reports which call controls the UI should expose right now.
func (c *Controller) Controls() media.Controls {
	return c.media.Controls()
}
