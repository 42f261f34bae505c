package signal

import (
	"github.com/pion/webrtc/v4"
	"github.com/pkg/errors"
)

// ErrMalformedPayload is wrapped by every Decode failure: bad armor, bad
// compression, failed unsealing, bad JSON or a description that is neither
// an offer nor an answer.
var ErrMalformedPayload = errors.New("malformed signaling payload")

// ErrUnsealedPayload is returned by a sealing codec when it is handed a
// plain JSON payload.
var ErrUnsealedPayload = errors.New("payload is not sealed")

var errEmptySDP = errors.New("empty session description")

func errUnexpectedType(t webrtc.SDPType) error {
	return errors.Errorf("unexpected description type %q", t.String())
}
