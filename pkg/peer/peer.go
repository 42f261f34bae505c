package peer

import (
	"context"
	"sync"

	"peerlink/pkg/event"
	"peerlink/pkg/log"
	"peerlink/pkg/signal"
	psync "peerlink/pkg/sync"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DataChannelLabel names the channel an initiator creates.
const DataChannelLabel = "dataChannel"

type Config struct {
	Role Role

	// Stream, if set, has every track sent to the remote side.
	Stream *MediaStream
}

// Peer negotiates one session with a remote endpoint over a signaling
// channel the caller provides: BeginSignaling hands out the local payload
// (description plus every gathered candidate) and SetRemoteSignal applies the
// remote one.
//
// Engine callbacks and the asynchronous operations all run on one queue per
// Peer, one at a time. Close stops the queue: nothing the engine reports
// afterwards is processed.
type Peer struct {
	id  string
	cfg Config
	log *logrus.Entry

	engine Engine
	codec  *signal.Codec

	queue      *psync.Queue
	dispatcher *event.Dispatcher
	aggregator aggregator

	mx             sync.Mutex
	state          State
	signaling      bool
	channel        Channel
	channelState   ChannelState
	streamHandlers []func(RemoteStream)

	channelReady *psync.Event
	closed       *psync.Event
	closeOnce    sync.Once
}

// New binds a session to engine, which the Peer owns from then on. The
// codec is shared by both directions and must match the remote side's.
func New(cfg Config, engine Engine, codec *signal.Codec) (*Peer, error) {
	if cfg.Role != RoleInitiator && cfg.Role != RoleResponder {
		return nil, ErrUnknownRole
	}

	if codec == nil {
		return nil, ErrNoCodec
	}

	id := uuid.New().String()

	p := &Peer{
		id:           id,
		cfg:          cfg,
		log:          log.WithField("session", id).WithField("role", cfg.Role.String()),
		engine:       engine,
		codec:        codec,
		queue:        psync.NewQueue(),
		dispatcher:   event.NewDispatcher(),
		state:        StateCreated,
		channelReady: psync.NewEvent(),
		closed:       psync.NewEvent(),
	}

	go p.queue.Run()

	p.engine.OnICECandidate(func(c *webrtc.ICECandidateInit) {
		p.push(func() { p.onICECandidate(c) })
	})
	p.engine.OnTrack(func(s RemoteStream) {
		p.push(func() { p.onTrack(s) })
	})
	p.engine.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		p.push(func() { p.onConnStateChange(s) })
	})

	if err := p.setup(); err != nil {
		p.queue.Stop()

		return nil, err
	}

	p.log.Info("session created")

	return p, nil
}

// NewWebRTCPeer is New with a pion engine built from webrtcCfg.
func NewWebRTCPeer(cfg Config, webrtcCfg WebRTCConfig, codec *signal.Codec) (*Peer, error) {
	engine, err := NewWebRTC(webrtcCfg)
	if err != nil {
		return nil, errors.Wrap(err, "peer connection")
	}

	p, err := New(cfg, engine, codec)
	if err != nil {
		if err := engine.Close(); err != nil {
			log.Error(err)
		}

		return nil, err
	}

	return p, nil
}

func (p *Peer) setup() error {
	if p.cfg.Stream != nil {
		for _, track := range p.cfg.Stream.Tracks {
			if err := p.engine.AddTrack(track); err != nil {
				return errors.Wrapf(err, "add track %s", track.ID())
			}
		}
	}

	if p.cfg.Role == RoleResponder {
		// The engine starts reading from the channel once this returns, so
		// its handlers are attached here rather than from the queue.
		p.engine.OnDataChannel(func(channel Channel) {
			p.push(func() { p.adoptChannel(channel) })
			p.watchChannel(channel)
		})

		return nil
	}

	channel, err := p.engine.CreateDataChannel(DataChannelLabel)
	if err != nil {
		return errors.Wrap(err, "data channel")
	}

	p.adoptChannel(channel)
	p.watchChannel(channel)

	return nil
}

func (p *Peer) ID() string {
	return p.id
}

func (p *Peer) Role() Role {
	return p.cfg.Role
}

func (p *Peer) State() State {
	p.mx.Lock()
	defer p.mx.Unlock()

	return p.state
}

func (p *Peer) ChannelState() ChannelState {
	p.mx.Lock()
	defer p.mx.Unlock()

	return p.channelState
}

// RemoteApplied reports whether the engine has accepted a remote description.
func (p *Peer) RemoteApplied() bool {
	return p.engine.RemoteDescription() != nil
}

// ChannelReady is closed once the data channel opens.
func (p *Peer) ChannelReady() <-chan struct{} {
	return p.channelReady.Done()
}

// Done is closed when the session is closed, either by Close or because the
// connection failed.
func (p *Peer) Done() <-chan struct{} {
	return p.closed.Done()
}

// BeginSignaling creates the local description, gathers every candidate and
// then calls onReady once with the encoded payload. It returns immediately.
//
// A responder must have applied the remote payload first. Failures are
// logged and onReady is simply never called, so callers should bound the
// wait themselves (see Signal). onReady runs on the session queue and must
// not block on other session events.
func (p *Peer) BeginSignaling(onReady func(payload string)) {
	p.push(func() { p.beginSignaling(onReady) })
}

// Signal is BeginSignaling for callers that prefer to block. It returns the
// payload, ErrClosed if the session ends first, or ctx's error.
func (p *Peer) Signal(ctx context.Context) (string, error) {
	ready := make(chan string, 1)

	p.BeginSignaling(func(payload string) {
		ready <- payload
	})

	select {
	case payload := <-ready:
		return payload, nil
	case <-p.Done():
		return "", ErrClosed
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// SetRemoteSignal applies the remote side's payload: its description first,
// then each of its candidates in order. A payload that does not decode is
// logged and leaves the session untouched, so the caller may retry.
func (p *Peer) SetRemoteSignal(payload string) {
	p.push(func() { p.setRemoteSignal(payload) })
}

// OnRemoteStream registers h for every remote track received.
func (p *Peer) OnRemoteStream(h func(RemoteStream)) {
	if h == nil {
		return
	}

	p.mx.Lock()
	defer p.mx.Unlock()

	p.streamHandlers = append(p.streamHandlers, h)
}

// OnMessage registers h for every inbound message.
func (p *Peer) OnMessage(h event.Handler) {
	p.dispatcher.OnAny(h)
}

// On registers h for inbound messages whose content is exactly name.
func (p *Peer) On(name string, h event.Handler) {
	p.dispatcher.On(name, h)
}

// Send delivers message if the data channel is open and drops it otherwise.
func (p *Peer) Send(message string) {
	p.mx.Lock()
	channel, open := p.channel, p.channelState == ChannelOpen && p.state != StateClosed
	p.mx.Unlock()

	if !open {
		p.log.Debugf("channel not open, dropping %d byte message", len(message))

		return
	}

	if err := channel.SendText(message); err != nil {
		p.log.Error(errors.Wrap(err, "send"))
	}
}

// Close releases the engine. It is safe to call more than once.
func (p *Peer) Close() {
	p.closeOnce.Do(func() {
		p.queue.Stop()

		p.mx.Lock()
		channel := p.channel
		p.state = StateClosed
		if channel != nil {
			p.channelState = ChannelClosed
		}
		p.mx.Unlock()

		if channel != nil {
			if err := channel.Close(); err != nil {
				p.log.Error(errors.Wrap(err, "close data channel"))
			}
		}

		if err := p.engine.Close(); err != nil {
			p.log.Error(errors.Wrap(err, "close"))
		}

		p.closed.Fire()
		p.log.Info("session closed")
	})
}

func (p *Peer) push(task func()) {
	if !p.queue.Push(task) {
		p.log.Debugf("session closed, event dropped")
	}
}

func (p *Peer) setState(s State) {
	p.mx.Lock()
	defer p.mx.Unlock()

	p.state = s
}

func (p *Peer) beginSignaling(onReady func(string)) {
	p.mx.Lock()

	if p.state == StateClosed {
		p.mx.Unlock()

		return
	}

	if p.signaling {
		p.mx.Unlock()
		p.log.Error(ErrSignalingStarted)

		return
	}

	if p.cfg.Role == RoleResponder && !p.RemoteApplied() {
		p.mx.Unlock()
		p.log.Error(ErrNoRemoteDescription)

		return
	}

	p.signaling = true
	p.state = StateAwaitingLocalDescription
	p.mx.Unlock()

	sdp, err := p.createLocalDescription()
	if err != nil {
		p.log.Error(err)

		// Nothing was produced, so the caller may try again.
		p.mx.Lock()
		p.signaling = false
		p.state = StateCreated
		p.mx.Unlock()

		return
	}

	p.aggregator.arm(func(candidates []webrtc.ICECandidateInit) {
		p.onCandidatesComplete(sdp, candidates, onReady)
	})

	p.setState(StateAggregatingCandidates)
	p.log.Infof("%s set, gathering candidates...", sdp.Type)
}

func (p *Peer) createLocalDescription() (webrtc.SessionDescription, error) {
	var (
		sdp webrtc.SessionDescription
		err error
	)

	if p.cfg.Role == RoleInitiator {
		sdp, err = p.engine.CreateOffer()
	} else {
		sdp, err = p.engine.CreateAnswer()
	}
	if err != nil {
		return sdp, errors.Wrapf(err, "create %s", p.localType())
	}

	if err := p.engine.SetLocalDescription(sdp); err != nil {
		return sdp, errors.Wrapf(err, "set local %s", p.localType())
	}

	return sdp, nil
}

func (p *Peer) localType() webrtc.SDPType {
	if p.cfg.Role == RoleInitiator {
		return webrtc.SDPTypeOffer
	}

	return webrtc.SDPTypeAnswer
}

func (p *Peer) onICECandidate(c *webrtc.ICECandidateInit) {
	if !p.aggregator.add(c) {
		p.log.Debugf("candidate outside of gathering ignored")
	}
}

func (p *Peer) onCandidatesComplete(sdp webrtc.SessionDescription, candidates []webrtc.ICECandidateInit, onReady func(string)) {
	if local := p.engine.LocalDescription(); local != nil {
		sdp = *local
	}

	payload, err := p.codec.Encode(signal.Payload{
		SDP:        sdp,
		Candidates: candidates,
	})
	if err != nil {
		p.log.Error(errors.Wrap(err, "encode payload"))

		return
	}

	p.setState(StateSignalingReady)
	p.log.Infof("%d candidates gathered, payload ready", len(candidates))

	if onReady != nil {
		onReady(payload)
	}
}

func (p *Peer) setRemoteSignal(s string) {
	if p.State() == StateClosed {
		return
	}

	payload, err := p.codec.Decode(s)
	if err != nil {
		p.log.Error(err)

		return
	}

	if err := p.engine.SetRemoteDescription(payload.SDP); err != nil {
		p.log.Error(errors.Wrapf(err, "set remote %s", payload.SDP.Type))

		return
	}

	for _, candidate := range payload.Candidates {
		if err := p.engine.AddICECandidate(candidate); err != nil {
			p.log.Error(errors.Wrap(err, "add remote candidate"))
		}
	}

	p.log.Infof("remote %s applied with %d candidates", payload.SDP.Type, len(payload.Candidates))
}

func (p *Peer) adoptChannel(channel Channel) {
	p.mx.Lock()
	p.channel = channel
	p.channelState = ChannelAvailable
	p.mx.Unlock()

	p.log.Infof("data channel %q available", channel.Label())
}

// watchChannel must run after adoptChannel has run or been queued, so the
// channel is current by the time its open and close tasks run.
func (p *Peer) watchChannel(channel Channel) {
	channel.OnOpen(func() {
		p.push(func() { p.onChannelOpen(channel) })
	})
	channel.OnClose(func() {
		p.push(func() { p.onChannelClose(channel) })
	})
	channel.OnMessage(func(message string) {
		p.push(func() { p.onChannelMessage(message) })
	})
}

func (p *Peer) onChannelOpen(channel Channel) {
	p.mx.Lock()
	current := p.channel == channel
	if current {
		p.channelState = ChannelOpen
	}
	p.mx.Unlock()

	if !current {
		return
	}

	p.channelReady.Fire()
	p.log.Infof("data channel %q open", channel.Label())
}

func (p *Peer) onChannelMessage(message string) {
	if p.dispatcher.Dispatch(message) == 0 {
		p.log.Debugf("no handler for %d byte message", len(message))
	}
}

func (p *Peer) onChannelClose(channel Channel) {
	p.mx.Lock()
	current := p.channel == channel
	if current {
		p.channelState = ChannelClosed
	}
	p.mx.Unlock()

	if current {
		p.log.Infof("data channel %q closed", channel.Label())
	}
}

func (p *Peer) onTrack(s RemoteStream) {
	p.mx.Lock()
	handlers := p.streamHandlers
	p.mx.Unlock()

	p.log.Infof("remote stream %q received", s.ID)

	for _, h := range handlers {
		h(s)
	}
}

func (p *Peer) onConnStateChange(state webrtc.PeerConnectionState) {
	p.log.Info("connection state changed: ", state)

	if state == webrtc.PeerConnectionStateFailed ||
		state == webrtc.PeerConnectionStateClosed {
		p.Close()
	}
}
