package media

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v3"
	"github.com/samber/lo"
	"github.com/spf13/viper"
)

// PionRuntime backs the media contract with pion. Local capture is a pair
// of sample tracks the caller feeds frames into; there is no TURN relay
// configured by default, only the public STUN pair.
type PionRuntime struct{}

func NewPionRuntime() *PionRuntime {
	return &PionRuntime{}
}

func IceServers() []webrtc.ICEServer {
	urls := viper.GetStringSlice("calling.stun_servers")
	if len(urls) == 0 {
		urls = []string{
			"stun:stun.l.google.com:19302",
			"stun:stun1.l.google.com:19302",
		}
	}
	return []webrtc.ICEServer{{URLs: urls}}
}

func (r *PionRuntime) AcquireMedia(constraints Constraints) (Stream, error) {
	stream := &pionStream{id: uuid.NewString()}

	if constraints.Audio {
		track, err := webrtc.NewTrackLocalStaticSample(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
			"audio-"+uuid.NewString(), stream.id,
		)
		if err != nil {
			return nil, &AccessError{Reason: err.Error()}
		}
		stream.tracks = append(stream.tracks, newPionTrack(track, TrackKindAudio))
	}

	if constraints.Video || constraints.Screen {
		track, err := webrtc.NewTrackLocalStaticSample(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8},
			"video-"+uuid.NewString(), stream.id,
		)
		if err != nil {
			return nil, &AccessError{Reason: err.Error()}
		}
		stream.tracks = append(stream.tracks, newPionTrack(track, TrackKindVideo))
	}

	if len(stream.tracks) == 0 {
		return nil, &AccessError{Reason: "no capture track requested"}
	}

	return stream, nil
}

func (r *PionRuntime) NewPeerConnection() (PeerConnection, error) {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{
		ICEServers: IceServers(),
	})
	if err != nil {
		return nil, err
	}
	return &pionPeerConnection{pc: pc}, nil
}

type pionStream struct {
	id     string
	tracks []Track
}

func (s *pionStream) ID() string {
	return s.id
}

func (s *pionStream) Tracks() []Track {
	return s.tracks
}

type pionTrack struct {
	mu      sync.Mutex
	local   webrtc.TrackLocal
	kind    string
	enabled bool
	state   string
}

func newPionTrack(local webrtc.TrackLocal, kind string) *pionTrack {
	return &pionTrack{local: local, kind: kind, enabled: true, state: TrackStateLive}
}

func (t *pionTrack) ID() string {
	return t.local.ID()
}

func (t *pionTrack) Kind() string {
	return t.kind
}

func (t *pionTrack) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

func (t *pionTrack) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
}

func (t *pionTrack) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = false
	t.state = TrackStateEnded
}

func (t *pionTrack) ReadyState() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

type pionPeerConnection struct {
	mu      sync.Mutex
	pc      *webrtc.PeerConnection
	senders map[string]*webrtc.RTPSender
}

func (p *pionPeerConnection) CreateOffer() (webrtc.SessionDescription, error) {
	return p.pc.CreateOffer(nil)
}

func (p *pionPeerConnection) CreateAnswer() (webrtc.SessionDescription, error) {
	return p.pc.CreateAnswer(nil)
}

func (p *pionPeerConnection) SetLocalDescription(desc webrtc.SessionDescription) error {
	return p.pc.SetLocalDescription(desc)
}

func (p *pionPeerConnection) SetRemoteDescription(desc webrtc.SessionDescription) error {
	return p.pc.SetRemoteDescription(desc)
}

func (p *pionPeerConnection) HasRemoteDescription() bool {
	return p.pc.RemoteDescription() != nil
}

func (p *pionPeerConnection) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	return p.pc.AddICECandidate(candidate)
}

func (p *pionPeerConnection) AddTrack(track Track) error {
	impl, ok := track.(*pionTrack)
	if !ok {
		return fmt.Errorf("unsupported track implementation %T", track)
	}

	sender, err := p.pc.AddTrack(impl.local)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.senders == nil {
		p.senders = make(map[string]*webrtc.RTPSender)
	}
	p.senders[impl.kind] = sender
	return nil
}

func (p *pionPeerConnection) ReplaceVideoTrack(track Track) error {
	impl, ok := track.(*pionTrack)
	if !ok {
		return fmt.Errorf("unsupported track implementation %T", track)
	}

	p.mu.Lock()
	sender := p.senders[TrackKindVideo]
	p.mu.Unlock()
	if sender == nil {
		return nil
	}
	return sender.ReplaceTrack(impl.local)
}

func (p *pionPeerConnection) OnICECandidate(fn func(candidate webrtc.ICECandidateInit)) {
	p.pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate == nil {
			return
		}
		fn(candidate.ToJSON())
	})
}

func (p *pionPeerConnection) OnTrack(fn func(track Track)) {
	p.pc.OnTrack(func(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		fn(&remoteTrack{remote: remote})
	})
}

func (p *pionPeerConnection) OnConnectionStateChange(fn func(state string)) {
	p.pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		fn(state.String())
	})
}

func (p *pionPeerConnection) Close() error {
	return p.pc.Close()
}

type remoteTrack struct {
	remote *webrtc.TrackRemote
	ended  bool
}

func (t *remoteTrack) ID() string {
	return t.remote.ID()
}

func (t *remoteTrack) Kind() string {
	return lo.Ternary(t.remote.Kind() == webrtc.RTPCodecTypeAudio, TrackKindAudio, TrackKindVideo)
}

func (t *remoteTrack) Enabled() bool {
	return !t.ended
}

func (t *remoteTrack) SetEnabled(bool) {}

func (t *remoteTrack) Stop() {
	t.ended = true
}

func (t *remoteTrack) ReadyState() string {
	return lo.Ternary(t.ended, TrackStateEnded, TrackStateLive)
}
