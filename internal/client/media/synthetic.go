package media

import (
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
)

// SyntheticCamera describes one fake video input for the synthetic provider.
type SyntheticCamera struct {
	ID    string
	Label string
	Torch bool
}

// SyntheticProvider implements Provider on pion sample tracks. It stands in
// for the browser capture capability in the headless client and in tests.
type SyntheticProvider struct {
	mu      sync.Mutex
	cameras []SyntheticCamera

	denyAll bool
	serial  int
}

func NewSyntheticProvider(cameras ...SyntheticCamera) *SyntheticProvider {
	return &SyntheticProvider{cameras: cameras}
}

// Deny makes every subsequent open fail, simulating a permission denial.
func (p *SyntheticProvider) Deny(deny bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.denyAll = deny
}

func (p *SyntheticProvider) VideoInputs() ([]Device, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.denyAll {
		return nil, fmt.Errorf("device enumeration denied")
	}
	out := make([]Device, 0, len(p.cameras))
	for _, c := range p.cameras {
		out = append(out, Device{ID: c.ID, Label: c.Label})
	}
	return out, nil
}

func (p *SyntheticProvider) OpenMicrophone() (AudioTrack, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.denyAll {
		return nil, fmt.Errorf("microphone access denied")
	}
	p.serial++
	local, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		fmt.Sprintf("audio-%d", p.serial), "duet",
	)
	if err != nil {
		return nil, err
	}
	return &syntheticAudio{TrackLocalStaticSample: local, enabled: true}, nil
}

func (p *SyntheticProvider) OpenCamera(deviceID string) (VideoTrack, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.denyAll {
		return nil, fmt.Errorf("camera access denied")
	}
	for _, c := range p.cameras {
		if c.ID == deviceID {
			p.serial++
			local, err := webrtc.NewTrackLocalStaticSample(
				webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8},
				fmt.Sprintf("video-%d", p.serial), "duet",
			)
			if err != nil {
				return nil, err
			}
			return &syntheticVideo{
				TrackLocalStaticSample: local,
				deviceID:               c.ID,
				caps:                   Capabilities{Torch: c.Torch},
			}, nil
		}
	}
	return nil, fmt.Errorf("no such camera: %s", deviceID)
}

func (p *SyntheticProvider) OpenDisplay() (VideoTrack, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.denyAll {
		return nil, fmt.Errorf("display capture denied")
	}
	p.serial++
	local, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8},
		fmt.Sprintf("screen-%d", p.serial), "duet",
	)
	if err != nil {
		return nil, err
	}
	return &syntheticVideo{TrackLocalStaticSample: local, deviceID: "display"}, nil
}

type syntheticAudio struct {
	*webrtc.TrackLocalStaticSample

	mu      sync.Mutex
	enabled bool
	stopped bool
}

func (t *syntheticAudio) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	return nil
}

func (t *syntheticAudio) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

func (t *syntheticAudio) SetEnabled(on bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = on
}

func (t *syntheticAudio) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

type syntheticVideo struct {
	*webrtc.TrackLocalStaticSample

	mu       sync.Mutex
	deviceID string
	caps     Capabilities
	torchOn  bool
	stopped  bool
	onEnded  func()
}

func (t *syntheticVideo) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	return nil
}

func (t *syntheticVideo) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

func (t *syntheticVideo) DeviceID() string { return t.deviceID }

func (t *syntheticVideo) Capabilities() Capabilities {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.caps
}

func (t *syntheticVideo) SetTorch(on bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.caps.Torch {
		return ErrTorchUnsupported
	}
	t.torchOn = on
	return nil
}

func (t *syntheticVideo) TorchOn() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.torchOn
}

func (t *syntheticVideo) OnEnded(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onEnded = fn
}

// EndSource simulates the source ending from outside, like the browser's own
// "stop sharing" control. No-op after Stop.
func (t *syntheticVideo) EndSource() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	fn := t.onEnded
	t.mu.Unlock()
	if fn != nil {
		fn()
	}
}
