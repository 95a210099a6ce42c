package services

import (
	"fmt"
	"sync"

	"github.com/afyalink/telecare/pkg/internal/media"
	"github.com/afyalink/telecare/pkg/internal/models"
	"github.com/pion/webrtc/v3"
	"github.com/rs/zerolog/log"
)

const (
	CallSessionStateIdle        = "IDLE"
	CallSessionStateNegotiating = "NEGOTIATING"
	CallSessionStateConnected   = "CONNECTED"
	CallSessionStateClosed      = "CLOSED"
)

var callSessionStateRank = map[string]int{
	CallSessionStateIdle:        0,
	CallSessionStateNegotiating: 1,
	CallSessionStateConnected:   2,
	CallSessionStateClosed:      3,
}

// CallSessionHooks are the UI-facing callbacks of one session: remote
// media arriving, connection-state transitions, and an optional observer
// for locally discovered candidates (the manager already forwards them
// over the channel).
type CallSessionHooks struct {
	OnRemoteTrack func(track media.Track)
	OnStateChange func(state string)
	OnCandidate   func(candidate webrtc.ICECandidateInit)
}

// CallSession is one live negotiation per room. The peer connection is
// owned exclusively by the manager and destroyed on hangup.
type CallSession struct {
	RoomID   string
	LocalID  string
	RemoteID string

	mu                sync.Mutex
	pc                media.PeerConnection
	state             string
	answered          bool
	pendingCandidates []webrtc.ICECandidateInit
	hooks             CallSessionHooks
}

func (s *CallSession) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// setState only moves forward. A session that went CONNECTED while a
// description was still being committed must never fall back to
// NEGOTIATING.
func (s *CallSession) setState(state string) {
	s.mu.Lock()
	if callSessionStateRank[state] <= callSessionStateRank[s.state] {
		s.mu.Unlock()
		return
	}
	s.state = state
	hook := s.hooks.OnStateChange
	s.mu.Unlock()

	if hook != nil {
		hook(state)
	}
}

// CallManager negotiates and maintains at most one media session per
// room over the signaling channel, with explicit leak-free teardown.
type CallManager struct {
	runtime media.Runtime
	channel *SignalingChannel

	mu          sync.Mutex
	localStream media.Stream
	sessions    map[string]*CallSession
	listeners   map[string]func()
}

func NewCallManager(runtime media.Runtime, channel *SignalingChannel) *CallManager {
	return &CallManager{
		runtime:   runtime,
		channel:   channel,
		sessions:  make(map[string]*CallSession),
		listeners: make(map[string]func()),
	}
}

// AcquireLocalMedia requests capture devices from the runtime and holds
// the stream for upcoming sessions. Failure is fatal to session start;
// the manager never retries on its own.
func (v *CallManager) AcquireLocalMedia(constraints media.Constraints) (media.Stream, error) {
	stream, err := v.runtime.AcquireMedia(constraints)
	if err != nil {
		return nil, err
	}

	v.mu.Lock()
	v.localStream = stream
	v.mu.Unlock()
	return stream, nil
}

func (v *CallManager) LocalStream() media.Stream {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.localStream
}

// CreateSession builds the negotiation object for a room and attaches
// every track of the currently held local stream. Creating a second
// session for the same room replaces the tracking of the first; ending
// the prior one first is the caller's contract.
func (v *CallManager) CreateSession(roomId, localId, remoteId string, hooks CallSessionHooks) (*CallSession, error) {
	pc, err := v.runtime.NewPeerConnection()
	if err != nil {
		return nil, fmt.Errorf("unable to create peer connection: %v", err)
	}

	session := &CallSession{
		RoomID:   roomId,
		LocalID:  localId,
		RemoteID: remoteId,
		pc:       pc,
		state:    CallSessionStateIdle,
		hooks:    hooks,
	}

	v.mu.Lock()
	localStream := v.localStream
	v.mu.Unlock()

	if localStream != nil {
		for _, track := range localStream.Tracks() {
			if err := pc.AddTrack(track); err != nil {
				_ = pc.Close()
				return nil, fmt.Errorf("unable to attach local track: %v", err)
			}
		}
	}

	pc.OnICECandidate(func(candidate webrtc.ICECandidateInit) {
		if hooks.OnCandidate != nil {
			hooks.OnCandidate(candidate)
		}
		var data map[string]any
		models.FitStruct(candidate, &data)
		if _, err := v.channel.Publish(models.SignalingMessage{
			RoomID:      roomId,
			Type:        models.SignalingTypeIceCandidate,
			SenderID:    localId,
			RecipientID: remoteId,
			Data:        data,
		}); err != nil {
			log.Warn().Err(err).Str("room", roomId).Msg("An error occurred when forwarding local candidate...")
		}
	})

	pc.OnTrack(func(track media.Track) {
		session.setState(CallSessionStateConnected)
		if hooks.OnRemoteTrack != nil {
			hooks.OnRemoteTrack(track)
		}
	})

	pc.OnConnectionStateChange(func(state string) {
		log.Debug().Str("room", roomId).Str("state", state).Msg("Peer connection state changed.")
	})

	v.mu.Lock()
	v.sessions[roomId] = session
	v.mu.Unlock()

	return session, nil
}

func (v *CallManager) GetSession(roomId string) (*CallSession, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	session, ok := v.sessions[roomId]
	return session, ok
}

// Listen subscribes to the room's signaling messages addressed to
// localId. The subscription is tracked per room so that EndSession can
// cancel it; the returned disposer may also be called directly.
func (v *CallManager) Listen(roomId, localId string, onMessage func(message models.SignalingMessage)) func() {
	unsubscribe := v.channel.Subscribe(roomId, localId, onMessage)

	v.mu.Lock()
	v.listeners[roomId] = unsubscribe
	v.mu.Unlock()
	return unsubscribe
}

// Offer generates the local session description, commits it, and
// publishes it to the callee.
func (v *CallManager) Offer(session *CallSession) (webrtc.SessionDescription, error) {
	session.setState(CallSessionStateNegotiating)

	offer, err := session.pc.CreateOffer()
	if err != nil {
		return offer, fmt.Errorf("unable to create offer: %v", err)
	}
	if err := session.pc.SetLocalDescription(offer); err != nil {
		return offer, fmt.Errorf("unable to commit local offer: %v", err)
	}

	var data map[string]any
	models.FitStruct(offer, &data)
	if _, err := v.channel.Publish(models.SignalingMessage{
		RoomID:      session.RoomID,
		Type:        models.SignalingTypeOffer,
		SenderID:    session.LocalID,
		RecipientID: session.RemoteID,
		Data:        data,
	}); err != nil {
		return offer, fmt.Errorf("unable to publish offer: %v", err)
	}

	return offer, nil
}

// Answer commits the caller's offer, generates the local answer, commits
// and publishes it.
func (v *CallManager) Answer(session *CallSession, remoteOffer webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	session.setState(CallSessionStateNegotiating)

	var answer webrtc.SessionDescription
	if err := session.pc.SetRemoteDescription(remoteOffer); err != nil {
		return answer, fmt.Errorf("unable to commit remote offer: %v", err)
	}

	v.drainPendingCandidates(session)

	answer, err := session.pc.CreateAnswer()
	if err != nil {
		return answer, fmt.Errorf("unable to create answer: %v", err)
	}
	if err := session.pc.SetLocalDescription(answer); err != nil {
		return answer, fmt.Errorf("unable to commit local answer: %v", err)
	}

	var data map[string]any
	models.FitStruct(answer, &data)
	if _, err := v.channel.Publish(models.SignalingMessage{
		RoomID:      session.RoomID,
		Type:        models.SignalingTypeAnswer,
		SenderID:    session.LocalID,
		RecipientID: session.RemoteID,
		Data:        data,
	}); err != nil {
		return answer, fmt.Errorf("unable to publish answer: %v", err)
	}

	return answer, nil
}

// AcceptAnswer commits a received answer on the offering side. It must
// be called once per session, after Offer.
func (v *CallManager) AcceptAnswer(session *CallSession, remoteAnswer webrtc.SessionDescription) error {
	session.mu.Lock()
	if session.answered {
		session.mu.Unlock()
		return fmt.Errorf("answer already accepted for room %s", session.RoomID)
	}
	session.answered = true
	session.mu.Unlock()

	if err := session.pc.SetRemoteDescription(remoteAnswer); err != nil {
		return fmt.Errorf("unable to commit remote answer: %v", err)
	}

	v.drainPendingCandidates(session)
	return nil
}

// AddRemoteCandidate feeds one remote network-path candidate into the
// session. Candidates arriving before the remote description are queued;
// malformed or stale ones are logged and skipped, never fatal.
func (v *CallManager) AddRemoteCandidate(session *CallSession, candidate webrtc.ICECandidateInit) {
	session.mu.Lock()
	if !session.pc.HasRemoteDescription() {
		session.pendingCandidates = append(session.pendingCandidates, candidate)
		session.mu.Unlock()
		return
	}
	session.mu.Unlock()

	if err := session.pc.AddICECandidate(candidate); err != nil {
		log.Warn().Err(err).Str("room", session.RoomID).Msg("Dropped a remote candidate the runtime rejected.")
	}
}

func (v *CallManager) drainPendingCandidates(session *CallSession) {
	session.mu.Lock()
	pending := session.pendingCandidates
	session.pendingCandidates = nil
	session.mu.Unlock()

	for _, candidate := range pending {
		if err := session.pc.AddICECandidate(candidate); err != nil {
			log.Warn().Err(err).Str("room", session.RoomID).Msg("Dropped a queued remote candidate the runtime rejected.")
		}
	}
}

// SwapOutgoingVideoTrack replaces the outgoing video track in place, used
// for camera to screen-share switching. No-op when the new stream has no
// video track.
func (v *CallManager) SwapOutgoingVideoTrack(session *CallSession, newStream media.Stream) error {
	if newStream == nil {
		return nil
	}
	for _, track := range newStream.Tracks() {
		if track.Kind() == media.TrackKindVideo {
			return session.pc.ReplaceVideoTrack(track)
		}
	}
	return nil
}

func (v *CallManager) SetAudioEnabled(enabled bool) {
	v.setTracksEnabled(media.TrackKindAudio, enabled)
}

func (v *CallManager) SetVideoEnabled(enabled bool) {
	v.setTracksEnabled(media.TrackKindVideo, enabled)
}

func (v *CallManager) setTracksEnabled(kind string, enabled bool) {
	v.mu.Lock()
	stream := v.localStream
	v.mu.Unlock()
	if stream == nil {
		return
	}
	for _, track := range stream.Tracks() {
		if track.Kind() == kind {
			track.SetEnabled(enabled)
		}
	}
}

// EndSession tears a room down: close the peer connection, stop every
// local track, cancel the room subscription, and best-effort broadcast a
// hangup. The four steps run independently; a failing one never blocks
// the others. Ending an already-ended room is a no-op.
func (v *CallManager) EndSession(roomId, localId string) {
	v.mu.Lock()
	session := v.sessions[roomId]
	delete(v.sessions, roomId)
	stream := v.localStream
	v.localStream = nil
	unsubscribe := v.listeners[roomId]
	delete(v.listeners, roomId)
	v.mu.Unlock()

	if session != nil {
		session.setState(CallSessionStateClosed)
		if err := session.pc.Close(); err != nil {
			log.Warn().Err(err).Str("room", roomId).Msg("An error occurred when closing peer connection...")
		}
	}

	if stream != nil {
		for _, track := range stream.Tracks() {
			track.Stop()
		}
	}

	if unsubscribe != nil {
		unsubscribe()
	}

	if session != nil {
		if _, err := v.channel.Publish(models.SignalingMessage{
			RoomID:   roomId,
			Type:     models.SignalingTypeHangup,
			SenderID: localId,
			Data:     map[string]any{"reason": "left"},
		}); err != nil {
			// Local resources are already released; peers will notice
			// the connection drop on their own.
			log.Warn().Err(err).Str("room", roomId).Msg("An error occurred when broadcasting hangup...")
		}
	}
}
