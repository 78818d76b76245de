package wtecho

import "errors"

var (
	// ErrUnknownStream is returned by a Transport when a command names a
	// stream that it cannot write to.
	ErrUnknownStream = errors.New("wtecho: unknown stream")

	// ErrNoSession is returned by a Transport when a command names a
	// session that does not exist.
	ErrNoSession = errors.New("wtecho: no session")
)

// HTTP status codes sent by the handshake and the encryption overlay.
const (
	StatusOK                  = 200
	StatusBadRequest          = 400
	StatusNotFound            = 404
	StatusInternalServerError = 500
)

// RejectReason tells why a CONNECT request was not accepted.
type RejectReason int

const (
	// RejectBadRequest is used for a missing :authority or :path,
	// or a method/protocol other than CONNECT/webtransport.
	RejectBadRequest RejectReason = iota + 1

	// RejectNotFound is used for a path other than HandlerPath.
	RejectNotFound

	// RejectSessionLimit is used when the connection already carries a session.
	RejectSessionLimit
)

var rejectReasonTexts = map[RejectReason]string{
	RejectBadRequest:   "wtecho: bad request",
	RejectNotFound:     "wtecho: not found",
	RejectSessionLimit: "wtecho: session limit reached",
}

func (r RejectReason) String() string {
	return rejectReasonTexts[r]
}

// StatusCode returns the HTTP status sent for the reason.
func (r RejectReason) StatusCode() int {
	switch r {
	case RejectNotFound:
		return StatusNotFound
	default:
		return StatusBadRequest
	}
}

// RejectError wraps a RejectReason as an error.
type RejectError struct {
	Reason RejectReason
}

func (err RejectError) Error() string {
	return err.Reason.String()
}
