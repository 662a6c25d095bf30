// Package media owns the local capture sources: camera, microphone and
// screen. It mediates track replacement for camera switches and screen share
// so an established connection is never renegotiated structurally.
package media

import (
	"errors"

	"github.com/pion/webrtc/v4"
)

var (
	ErrAccessDenied     = errors.New("media access denied")
	ErrNoVideoInput     = errors.New("no video input device")
	ErrAlreadyActive    = errors.New("media already active")
	ErrNotActive        = errors.New("media not active")
	ErrTorchUnsupported = errors.New("torch not supported by active camera")
)

// Capabilities is the control surface reported by a video source. It is
// re-queried after every camera switch because different physical devices
// expose different controls.
type Capabilities struct {
	Torch bool
}

// Controls describes which user-facing controls should be exposed for the
// current device situation.
type Controls struct {
	MultiCamera bool
	Torch       bool
}

// Device describes one enumerable video input.
type Device struct {
	ID    string
	Label string
}

// Track is a local media track handle. It is attachable to a peer connection
// (it satisfies webrtc.TrackLocal) and must be stopped to release its source.
type Track interface {
	webrtc.TrackLocal
	Stop() error
}

// AudioTrack adds the mute toggle; disabling does not release the device.
type AudioTrack interface {
	Track
	SetEnabled(on bool)
	Enabled() bool
}

// VideoTrack adds capability queries, the torch constraint and an end-of
// source notification (a screen capture ends when the user stops sharing
// from the outside).
type VideoTrack interface {
	Track
	DeviceID() string
	Capabilities() Capabilities
	SetTorch(on bool) error
	OnEnded(fn func())
}

// Provider abstracts the capture capability: enumerate devices, open tracks,
// query controls. Real browsers supply this natively; the synthetic provider
// in this package backs headless clients and tests.
type Provider interface {
	VideoInputs() ([]Device, error)
	OpenMicrophone() (AudioTrack, error)
	OpenCamera(deviceID string) (VideoTrack, error)
	OpenDisplay() (VideoTrack, error)
}
