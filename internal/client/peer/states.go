package peer

// SignalingState tracks where a pairwise negotiation stands. The
// have-remote-offer state is transient: an accepted offer is answered
// within the same event and collapses back to stable.
type SignalingState int

const (
	StateIdle SignalingState = iota
	StateHaveLocalOffer
	StateHaveRemoteOffer
	StateStable
	StateClosed
)

func (s SignalingState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateHaveLocalOffer:
		return "have-local-offer"
	case StateHaveRemoteOffer:
		return "have-remote-offer"
	case StateStable:
		return "stable"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Connectivity mirrors the media transport's connection state.
type Connectivity int

const (
	ConnectivityNew Connectivity = iota
	ConnectivityChecking
	ConnectivityConnected
	ConnectivityDisconnected
	ConnectivityFailed
	ConnectivityClosed
)

func (c Connectivity) String() string {
	switch c {
	case ConnectivityNew:
		return "new"
	case ConnectivityChecking:
		return "checking"
	case ConnectivityConnected:
		return "connected"
	case ConnectivityDisconnected:
		return "disconnected"
	case ConnectivityFailed:
		return "failed"
	case ConnectivityClosed:
		return "closed"
	default:
		return "unknown"
	}
}
