package peer

import (
	"github.com/pkg/errors"
)

var (
	ErrClosed              = errors.New("session closed")
	ErrSignalingStarted    = errors.New("signaling already started")
	ErrNoRemoteDescription = errors.New("responder has no remote description yet")
	ErrNoCodec             = errors.New("no signaling codec")
	ErrUnknownRole         = errors.New("unknown role")
)
