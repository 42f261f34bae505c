package peer

import (
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/require"

	"peerlink/pkg/signal"
)

const (
	offerSDP  = "v=0\r\no=- 1 1 IN IP4 127.0.0.1\r\ns=offer\r\nt=0 0\r\n"
	answerSDP = "v=0\r\no=- 2 1 IN IP4 127.0.0.1\r\ns=answer\r\nt=0 0\r\n"

	waitTimeout = 5 * time.Second
)

// fakeEngine records what the Peer asks of it and lets tests fire the
// events a real engine would.
type fakeEngine struct {
	mx sync.Mutex

	offerErr     error
	answerErr    error
	remoteErr    error
	addTrackErr  error
	candidateErr error

	local      *webrtc.SessionDescription
	remote     *webrtc.SessionDescription
	candidates []webrtc.ICECandidateInit
	tracks     []webrtc.TrackLocal
	channels   []*fakeChannel
	closeCalls int

	localSet chan webrtc.SessionDescription

	onCandidate   func(*webrtc.ICECandidateInit)
	onDataChannel func(Channel)
	onTrack       func(RemoteStream)
	onState       func(webrtc.PeerConnectionState)
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		localSet: make(chan webrtc.SessionDescription, 4),
	}
}

func (e *fakeEngine) CreateOffer() (webrtc.SessionDescription, error) {
	e.mx.Lock()
	defer e.mx.Unlock()

	if e.offerErr != nil {
		return webrtc.SessionDescription{}, e.offerErr
	}

	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: offerSDP}, nil
}

func (e *fakeEngine) CreateAnswer() (webrtc.SessionDescription, error) {
	e.mx.Lock()
	defer e.mx.Unlock()

	if e.answerErr != nil {
		return webrtc.SessionDescription{}, e.answerErr
	}

	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: answerSDP}, nil
}

func (e *fakeEngine) SetLocalDescription(sdp webrtc.SessionDescription) error {
	e.mx.Lock()
	e.local = &sdp
	e.mx.Unlock()

	e.localSet <- sdp

	return nil
}

func (e *fakeEngine) LocalDescription() *webrtc.SessionDescription {
	e.mx.Lock()
	defer e.mx.Unlock()

	return e.local
}

func (e *fakeEngine) SetRemoteDescription(sdp webrtc.SessionDescription) error {
	e.mx.Lock()
	defer e.mx.Unlock()

	if e.remoteErr != nil {
		return e.remoteErr
	}

	e.remote = &sdp

	return nil
}

func (e *fakeEngine) RemoteDescription() *webrtc.SessionDescription {
	e.mx.Lock()
	defer e.mx.Unlock()

	return e.remote
}

func (e *fakeEngine) AddICECandidate(c webrtc.ICECandidateInit) error {
	e.mx.Lock()
	defer e.mx.Unlock()

	if e.candidateErr != nil {
		return e.candidateErr
	}

	e.candidates = append(e.candidates, c)

	return nil
}

func (e *fakeEngine) AddTrack(track webrtc.TrackLocal) error {
	e.mx.Lock()
	defer e.mx.Unlock()

	if e.addTrackErr != nil {
		return e.addTrackErr
	}

	e.tracks = append(e.tracks, track)

	return nil
}

func (e *fakeEngine) CreateDataChannel(label string) (Channel, error) {
	e.mx.Lock()
	defer e.mx.Unlock()

	c := &fakeChannel{label: label}
	e.channels = append(e.channels, c)

	return c, nil
}

func (e *fakeEngine) OnICECandidate(h func(*webrtc.ICECandidateInit)) {
	e.mx.Lock()
	defer e.mx.Unlock()

	e.onCandidate = h
}

func (e *fakeEngine) OnDataChannel(h func(Channel)) {
	e.mx.Lock()
	defer e.mx.Unlock()

	e.onDataChannel = h
}

func (e *fakeEngine) OnTrack(h func(RemoteStream)) {
	e.mx.Lock()
	defer e.mx.Unlock()

	e.onTrack = h
}

func (e *fakeEngine) OnConnectionStateChange(h func(webrtc.PeerConnectionState)) {
	e.mx.Lock()
	defer e.mx.Unlock()

	e.onState = h
}

func (e *fakeEngine) Close() error {
	e.mx.Lock()
	defer e.mx.Unlock()

	e.closeCalls++

	return nil
}

func (e *fakeEngine) emitCandidate(c *webrtc.ICECandidateInit) {
	e.mx.Lock()
	h := e.onCandidate
	e.mx.Unlock()

	h(c)
}

func (e *fakeEngine) emitDataChannel(c Channel) {
	e.mx.Lock()
	h := e.onDataChannel
	e.mx.Unlock()

	h(c)
}

func (e *fakeEngine) emitTrack(s RemoteStream) {
	e.mx.Lock()
	h := e.onTrack
	e.mx.Unlock()

	h(s)
}

func (e *fakeEngine) emitState(s webrtc.PeerConnectionState) {
	e.mx.Lock()
	h := e.onState
	e.mx.Unlock()

	h(s)
}

func (e *fakeEngine) remoteCandidates() []webrtc.ICECandidateInit {
	e.mx.Lock()
	defer e.mx.Unlock()

	return append([]webrtc.ICECandidateInit(nil), e.candidates...)
}

func (e *fakeEngine) closed() int {
	e.mx.Lock()
	defer e.mx.Unlock()

	return e.closeCalls
}

type fakeChannel struct {
	mx sync.Mutex

	label  string
	sent   []string
	closed bool

	onOpen    func()
	onClose   func()
	onMessage func(string)
}

func (c *fakeChannel) Label() string {
	return c.label
}

func (c *fakeChannel) SendText(message string) error {
	c.mx.Lock()
	defer c.mx.Unlock()

	c.sent = append(c.sent, message)

	return nil
}

func (c *fakeChannel) Close() error {
	c.mx.Lock()
	defer c.mx.Unlock()

	c.closed = true

	return nil
}

func (c *fakeChannel) OnOpen(h func()) {
	c.mx.Lock()
	defer c.mx.Unlock()

	c.onOpen = h
}

func (c *fakeChannel) OnClose(h func()) {
	c.mx.Lock()
	defer c.mx.Unlock()

	c.onClose = h
}

func (c *fakeChannel) OnMessage(h func(string)) {
	c.mx.Lock()
	defer c.mx.Unlock()

	c.onMessage = h
}

func (c *fakeChannel) open() {
	c.mx.Lock()
	h := c.onOpen
	c.mx.Unlock()

	if h != nil {
		h()
	}
}

func (c *fakeChannel) close() {
	c.mx.Lock()
	h := c.onClose
	c.mx.Unlock()

	if h != nil {
		h()
	}
}

// receive delivers message like pion does: a message that arrives before a
// handler is set is lost.
func (c *fakeChannel) receive(message string) {
	c.mx.Lock()
	h := c.onMessage
	c.mx.Unlock()

	if h != nil {
		h(message)
	}
}

func (c *fakeChannel) isClosed() bool {
	c.mx.Lock()
	defer c.mx.Unlock()

	return c.closed
}

func (c *fakeChannel) sentMessages() []string {
	c.mx.Lock()
	defer c.mx.Unlock()

	return append([]string(nil), c.sent...)
}

func newTestCodec(t *testing.T) *signal.Codec {
	t.Helper()

	codec, err := signal.NewCodec(signal.CodecConfig{}, nil)
	require.NoError(t, err)
	t.Cleanup(codec.Close)

	return codec
}

func newTestPeer(t *testing.T, role Role) (*Peer, *fakeEngine) {
	t.Helper()

	engine := newFakeEngine()

	p, err := New(Config{Role: role}, engine, newTestCodec(t))
	require.NoError(t, err)
	t.Cleanup(p.Close)

	return p, engine
}

// drain waits until every task queued on p so far has run.
func drain(t *testing.T, p *Peer) {
	t.Helper()

	done := make(chan struct{})
	if !p.queue.Push(func() { close(done) }) {
		return
	}

	select {
	case <-done:
	case <-time.After(waitTimeout):
		t.Fatal("session queue did not drain")
	}
}

func waitLocal(t *testing.T, e *fakeEngine) webrtc.SessionDescription {
	t.Helper()

	select {
	case sdp := <-e.localSet:
		return sdp
	case <-time.After(waitTimeout):
		t.Fatal("local description never set")
	}

	return webrtc.SessionDescription{}
}

func hostCandidate(addr string) *webrtc.ICECandidateInit {
	mid := "0"
	index := uint16(0)

	return &webrtc.ICECandidateInit{
		Candidate:     "candidate:1 1 udp 2130706431 " + addr + " 50000 typ host",
		SDPMid:        &mid,
		SDPMLineIndex: &index,
	}
}
