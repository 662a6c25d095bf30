package media

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// Manager holds at most one camera/microphone pair and at most one screen
// capture at a time. All handles are released on Stop; an unreleased capture
// device is a correctness bug, not a cosmetic one.
type Manager struct {
	mu       sync.Mutex
	provider Provider

	audio    AudioTrack
	camera   VideoTrack
	screen   VideoTrack
	torchOn  bool
	controls Controls
}

func NewManager(p Provider) *Manager {
	return &Manager{provider: p}
}

// Start acquires the microphone and the first available camera. On any
// failure every partially acquired handle is released and the manager stays
// inactive.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.camera != nil {
		return ErrAlreadyActive
	}

	devices, err := m.provider.VideoInputs()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAccessDenied, err)
	}
	if len(devices) == 0 {
		return ErrNoVideoInput
	}

	audio, err := m.provider.OpenMicrophone()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAccessDenied, err)
	}
	camera, err := m.provider.OpenCamera(devices[0].ID)
	if err != nil {
		_ = audio.Stop()
		return fmt.Errorf("%w: %v", ErrAccessDenied, err)
	}

	m.audio = audio
	m.camera = camera
	m.torchOn = false
	m.refreshControlsLocked(devices)
	log.Info().Str("module", "media").Str("camera", camera.DeviceID()).Msg("local media started")
	return nil
}

// Stop releases every acquired handle. Always safe to call.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.screen != nil {
		_ = m.screen.Stop()
		m.screen = nil
	}
	if m.camera != nil {
		_ = m.camera.Stop()
		m.camera = nil
	}
	if m.audio != nil {
		_ = m.audio.Stop()
		m.audio = nil
	}
	m.torchOn = false
	m.controls = Controls{}
	log.Info().Str("module", "media").Msg("local media stopped")
}

func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.camera != nil
}

func (m *Manager) ScreenActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.screen != nil
}

// AudioTrack returns the microphone handle for attachment, nil when inactive.
func (m *Manager) AudioTrack() AudioTrack {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.audio
}

// CameraTrack returns the camera handle, nil when inactive.
func (m *Manager) CameraTrack() VideoTrack {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.camera
}

// OutgoingVideo is the track that should currently feed the connection:
// the screen while sharing, the camera otherwise.
func (m *Manager) OutgoingVideo() VideoTrack {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.screen != nil {
		return m.screen
	}
	return m.camera
}

// SetAudioEnabled flips the microphone mute without releasing the device.
func (m *Manager) SetAudioEnabled(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.audio != nil {
		m.audio.SetEnabled(on)
	}
}

// SwitchCamera moves to the next video input in enumeration order with
// wrap-around, preserving the audio track. With fewer than two devices it is
// a no-op. It returns the new camera track so the caller can swap it into an
// established connection in place.
func (m *Manager) SwitchCamera() (VideoTrack, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.camera == nil {
		return nil, false, ErrNotActive
	}

	devices, err := m.provider.VideoInputs()
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrAccessDenied, err)
	}
	if len(devices) < 2 {
		return nil, false, nil
	}

	current := 0
	for i, d := range devices {
		if d.ID == m.camera.DeviceID() {
			current = i
			break
		}
	}
	next := devices[(current+1)%len(devices)]

	fresh, err := m.provider.OpenCamera(next.ID)
	if err != nil {
		// The old camera keeps running; no partial state.
		return nil, false, fmt.Errorf("%w: %v", ErrAccessDenied, err)
	}

	_ = m.camera.Stop()
	m.camera = fresh
	m.torchOn = false
	m.refreshControlsLocked(devices)
	log.Info().Str("module", "media").Str("camera", fresh.DeviceID()).Msg("switched camera")
	return fresh, true, nil
}

// StartScreenShare acquires a display capture. Camera/microphone media must
// already be active: screen share augments the call, it does not replace it.
// onEnded fires once if the capture ends from the outside (the user stops
// sharing from the browser's own UI) after the share has been torn down.
func (m *Manager) StartScreenShare(onEnded func()) (VideoTrack, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.camera == nil {
		return nil, ErrNotActive
	}
	if m.screen != nil {
		return nil, ErrAlreadyActive
	}

	screen, err := m.provider.OpenDisplay()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAccessDenied, err)
	}
	m.screen = screen

	screen.OnEnded(func() {
		if _, err := m.StopScreenShare(); err == nil && onEnded != nil {
			onEnded()
		}
	})
	log.Info().Str("module", "media").Msg("screen share started")
	return screen, nil
}

// StopScreenShare releases the display capture and returns the camera track
// that should be restored on the connection. Returns ErrNotActive when no
// share is running, so external-end and button paths can race safely.
func (m *Manager) StopScreenShare() (VideoTrack, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.screen == nil {
		return nil, ErrNotActive
	}
	_ = m.screen.Stop()
	m.screen = nil
	log.Info().Str("module", "media").Msg("screen share stopped")
	return m.camera, nil
}

// ToggleTorch flips the flash on the active camera. A camera without torch
// support makes this a no-op reporting false.
func (m *Manager) ToggleTorch() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.camera == nil {
		return false, ErrNotActive
	}
	if !m.camera.Capabilities().Torch {
		return false, nil
	}
	next := !m.torchOn
	if err := m.camera.SetTorch(next); err != nil {
		return m.torchOn, fmt.Errorf("%w: %v", ErrTorchUnsupported, err)
	}
	m.torchOn = next
	return m.torchOn, nil
}

// Controls reports which call controls apply to the current devices.
// Refreshed after start and after every camera switch.
func (m *Manager) Controls() Controls {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.controls
}

func (m *Manager) refreshControlsLocked(devices []Device) {
	m.controls = Controls{
		MultiCamera: len(devices) > 1,
		Torch:       m.camera != nil && m.camera.Capabilities().Torch,
	}
}
