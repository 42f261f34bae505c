package peer

type Role int

const (
	// RoleInitiator creates the data channel and sends the offer.
	RoleInitiator Role = iota
	// RoleResponder waits for the remote offer and the remote data channel.
	RoleResponder
)

func (r Role) String() string {
	switch r {
	case RoleInitiator:
		return "initiator"
	case RoleResponder:
		return "responder"
	default:
		return "unknown"
	}
}

// State is the signaling progress of a session. Whether the remote payload
// has been applied and whether the channel is open are tracked separately
// (see Peer.RemoteApplied and Peer.ChannelState): both can happen in any
// order relative to the states below.
type State int

const (
	StateCreated State = iota
	StateAwaitingLocalDescription
	StateAggregatingCandidates
	StateSignalingReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateAwaitingLocalDescription:
		return "awaiting-local-description"
	case StateAggregatingCandidates:
		return "aggregating-candidates"
	case StateSignalingReady:
		return "signaling-ready"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type ChannelState int

const (
	// ChannelUnavailable: no channel yet. A responder stays here until the
	// remote side's channel arrives.
	ChannelUnavailable ChannelState = iota
	ChannelAvailable
	ChannelOpen
	ChannelClosed
)

func (s ChannelState) String() string {
	switch s {
	case ChannelUnavailable:
		return "unavailable"
	case ChannelAvailable:
		return "available"
	case ChannelOpen:
		return "open"
	case ChannelClosed:
		return "closed"
	default:
		return "unknown"
	}
}
