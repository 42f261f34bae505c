package signal

import (
	"github.com/pion/webrtc/v4"
)

// Payload is everything one endpoint needs from the other: its local
// description and the full, frozen list of its ICE candidates. It is the
// only thing that crosses between the two endpoints.
type Payload struct {
	SDP        webrtc.SessionDescription `json:"sdp"`
	Candidates []webrtc.ICECandidateInit `json:"candidates"`
}

func (p Payload) validate() error {
	if p.SDP.Type != webrtc.SDPTypeOffer && p.SDP.Type != webrtc.SDPTypeAnswer {
		return errUnexpectedType(p.SDP.Type)
	}

	if len(p.SDP.SDP) == 0 {
		return errEmptySDP
	}

	return nil
}
