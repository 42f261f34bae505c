package peer

import (
	"strings"
	"time"

	"peerlink/pkg/log"

	"github.com/pion/transport/v4"
	"github.com/pion/webrtc/v4"
	"github.com/pkg/errors"
)

// DefaultSTUN is used when WebRTCConfig.STUN is nil.
var DefaultSTUN = []string{
	"stun1.l.google.com:19302",
	"stun2.l.google.com:19302",
}

const (
	defaultDisconnectedTimeout = 15 * time.Minute
	defaultFailedTimeout       = 25 * time.Second
	defaultKeepAliveInterval   = 2 * time.Second
)

// WebRTC is the Engine backed by a pion PeerConnection.
type WebRTC struct {
	conn *webrtc.PeerConnection
}

type WebRTCConfig struct {
	// STUN lists discovery servers as host:port; entries that already carry
	// a scheme (stun:, stuns:, turn:, turns:) are used as is. nil means
	// DefaultSTUN, an empty slice means host candidates only.
	STUN []string

	// Net replaces the OS network stack, e.g. with a pion vnet.
	Net transport.Net

	DisconnectedTimeout time.Duration
	FailedTimeout       time.Duration
	KeepAliveInterval   time.Duration
}

func NewWebRTC(cfg WebRTCConfig) (*WebRTC, error) {
	stun := cfg.STUN
	if stun == nil {
		stun = DefaultSTUN
	}

	ice := make([]webrtc.ICEServer, len(stun))

	for i, server := range stun {
		ice[i] = webrtc.ICEServer{
			URLs: []string{iceURL(server)},
		}
	}

	settings := webrtc.SettingEngine{
		LoggerFactory: log.PionLoggerFactory{},
	}

	settings.SetICETimeouts(
		durationOr(cfg.DisconnectedTimeout, defaultDisconnectedTimeout),
		durationOr(cfg.FailedTimeout, defaultFailedTimeout),
		durationOr(cfg.KeepAliveInterval, defaultKeepAliveInterval),
	)

	if cfg.Net != nil {
		settings.SetNet(cfg.Net)
	}

	media := &webrtc.MediaEngine{}
	if err := media.RegisterDefaultCodecs(); err != nil {
		return nil, errors.Wrap(err, "register codecs")
	}

	api := webrtc.NewAPI(
		webrtc.WithSettingEngine(settings),
		webrtc.WithMediaEngine(media),
	)

	conn, err := api.NewPeerConnection(webrtc.Configuration{
		ICEServers: ice,
	})
	if err != nil {
		return nil, err
	}

	return &WebRTC{
		conn: conn,
	}, nil
}

func (p *WebRTC) CreateOffer() (webrtc.SessionDescription, error) {
	return p.conn.CreateOffer(nil)
}

func (p *WebRTC) CreateAnswer() (webrtc.SessionDescription, error) {
	return p.conn.CreateAnswer(nil)
}

func (p *WebRTC) SetLocalDescription(sdp webrtc.SessionDescription) error {
	return p.conn.SetLocalDescription(sdp)
}

func (p *WebRTC) LocalDescription() *webrtc.SessionDescription {
	return p.conn.LocalDescription()
}

func (p *WebRTC) SetRemoteDescription(sdp webrtc.SessionDescription) error {
	return p.conn.SetRemoteDescription(sdp)
}

func (p *WebRTC) RemoteDescription() *webrtc.SessionDescription {
	return p.conn.RemoteDescription()
}

func (p *WebRTC) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	return p.conn.AddICECandidate(candidate)
}

func (p *WebRTC) AddTrack(track webrtc.TrackLocal) error {
	_, err := p.conn.AddTrack(track)

	return err
}

func (p *WebRTC) CreateDataChannel(label string) (Channel, error) {
	channel, err := p.conn.CreateDataChannel(label, nil)
	if err != nil {
		return nil, err
	}

	return &dataChannel{channel}, nil
}

func (p *WebRTC) OnICECandidate(h func(*webrtc.ICECandidateInit)) {
	p.conn.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate == nil {
			h(nil)

			return
		}

		candidateInit := candidate.ToJSON()
		h(&candidateInit)
	})
}

func (p *WebRTC) OnDataChannel(h func(Channel)) {
	p.conn.OnDataChannel(func(channel *webrtc.DataChannel) {
		h(&dataChannel{channel})
	})
}

func (p *WebRTC) OnTrack(h func(RemoteStream)) {
	p.conn.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		h(RemoteStream{
			ID:       track.StreamID(),
			Track:    track,
			Receiver: receiver,
		})
	})
}

func (p *WebRTC) OnConnectionStateChange(h func(webrtc.PeerConnectionState)) {
	p.conn.OnConnectionStateChange(h)
}

func (p *WebRTC) Close() error {
	return p.conn.Close()
}

type dataChannel struct {
	channel *webrtc.DataChannel
}

func (c *dataChannel) Label() string {
	return c.channel.Label()
}

func (c *dataChannel) SendText(message string) error {
	return c.channel.SendText(message)
}

func (c *dataChannel) Close() error {
	return c.channel.Close()
}

func (c *dataChannel) OnOpen(h func()) {
	c.channel.OnOpen(h)
}

func (c *dataChannel) OnClose(h func()) {
	c.channel.OnClose(h)
}

func (c *dataChannel) OnMessage(h func(string)) {
	c.channel.OnMessage(func(msg webrtc.DataChannelMessage) {
		h(string(msg.Data))
	})
}

func iceURL(server string) string {
	for _, scheme := range []string{"stun:", "stuns:", "turn:", "turns:"} {
		if strings.HasPrefix(server, scheme) {
			return server
		}
	}

	return "stun:" + server
}

func durationOr(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}

	return fallback
}
