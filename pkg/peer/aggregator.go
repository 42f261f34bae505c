package peer

import (
	"github.com/pion/webrtc/v4"
)

// aggregator collects local ICE candidates until gathering completes, then
// hands over the frozen list exactly once. Bundling every candidate with the
// description is what lets signaling be a single one-shot message; the cost
// is that nothing can be sent before gathering finishes.
//
// It is only touched from the Peer's queue.
type aggregator struct {
	armed  bool
	frozen bool

	candidates []webrtc.ICECandidateInit
	onComplete func([]webrtc.ICECandidateInit)
}

// arm starts collection. It returns false if the aggregator was armed before.
func (a *aggregator) arm(onComplete func([]webrtc.ICECandidateInit)) bool {
	if a.armed {
		return false
	}

	a.armed = true
	a.candidates = make([]webrtc.ICECandidateInit, 0, 4)
	a.onComplete = onComplete

	return true
}

// add buffers c, or freezes the list when c is nil. It returns false when
// the candidate was ignored because collection is not running.
func (a *aggregator) add(c *webrtc.ICECandidateInit) bool {
	if !a.armed || a.frozen {
		return false
	}

	if c != nil {
		a.candidates = append(a.candidates, *c)

		return true
	}

	a.frozen = true

	onComplete := a.onComplete
	a.onComplete = nil

	onComplete(a.candidates)

	return true
}
