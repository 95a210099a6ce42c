package media

import (
	"fmt"

	"github.com/pion/webrtc/v3"
)

// Constraints selects which local capture tracks to acquire.
// Video and audio default to on; Screen replaces the camera track.
type Constraints struct {
	Audio  bool `json:"audio"`
	Video  bool `json:"video"`
	Screen bool `json:"screen"`
}

func DefaultConstraints() Constraints {
	return Constraints{Audio: true, Video: true}
}

// AccessError is returned when the runtime denies or lacks a requested
// capture device. It is fatal to session start; retry policy belongs to
// the caller.
type AccessError struct {
	Reason string
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("media access denied: %s", e.Reason)
}

const (
	TrackKindAudio = "audio"
	TrackKindVideo = "video"

	TrackStateLive  = "live"
	TrackStateEnded = "ended"
)

type Track interface {
	ID() string
	Kind() string
	Enabled() bool
	SetEnabled(enabled bool)
	Stop()
	ReadyState() string
}

type Stream interface {
	ID() string
	Tracks() []Track
}

// PeerConnection is the session-negotiation object consumed by the call
// manager. The default implementation wraps a pion peer connection;
// tests substitute fakes.
type PeerConnection interface {
	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(desc webrtc.SessionDescription) error
	SetRemoteDescription(desc webrtc.SessionDescription) error
	HasRemoteDescription() bool
	AddICECandidate(candidate webrtc.ICECandidateInit) error
	AddTrack(track Track) error
	ReplaceVideoTrack(track Track) error

	OnICECandidate(fn func(candidate webrtc.ICECandidateInit))
	OnTrack(fn func(track Track))
	OnConnectionStateChange(fn func(state string))

	Close() error
}

// Runtime is the capture + peer-connection factory contract.
type Runtime interface {
	AcquireMedia(constraints Constraints) (Stream, error)
	NewPeerConnection() (PeerConnection, error)
}
