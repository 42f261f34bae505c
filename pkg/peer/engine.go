package peer

import (
	"github.com/pion/webrtc/v4"
)

// Engine is the transport engine a Peer drives. It does the actual ICE,
// DTLS and SCTP work; the Peer only configures it and reacts to its events.
// WebRTC is the pion implementation.
//
// Event handlers may be called from any goroutine.
type Engine interface {
	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(webrtc.SessionDescription) error
	LocalDescription() *webrtc.SessionDescription
	SetRemoteDescription(webrtc.SessionDescription) error
	RemoteDescription() *webrtc.SessionDescription
	AddICECandidate(webrtc.ICECandidateInit) error

	AddTrack(webrtc.TrackLocal) error
	CreateDataChannel(label string) (Channel, error)

	// OnICECandidate is called for every locally gathered candidate, then
	// once with nil when gathering is complete.
	OnICECandidate(func(*webrtc.ICECandidateInit))
	OnDataChannel(func(Channel))
	OnTrack(func(RemoteStream))
	OnConnectionStateChange(func(webrtc.PeerConnectionState))

	Close() error
}

// Channel is a data channel carrying text messages.
type Channel interface {
	Label() string
	SendText(string) error
	Close() error

	OnOpen(func())
	OnClose(func())
	OnMessage(func(string))
}

// MediaStream groups the local tracks sent to the remote side.
type MediaStream struct {
	ID     string
	Tracks []webrtc.TrackLocal
}

// RemoteStream is one media track received from the remote side together
// with the id of the stream it belongs to.
type RemoteStream struct {
	ID       string
	Track    *webrtc.TrackRemote
	Receiver *webrtc.RTPReceiver
}
