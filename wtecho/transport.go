package wtecho

// StreamID identifies a stream within one QUIC connection.
type StreamID uint64

// SessionID is the stream id of the CONNECT request that created a session.
type SessionID = StreamID

// IsUnidirectional reports whether id names a unidirectional QUIC stream.
// The second least significant bit of a QUIC stream id encodes its direction.
func (id StreamID) IsUnidirectional() bool {
	return id&0x2 != 0
}

// Transport is the command side of the transport collaborator.
// All methods are invoked from the goroutine that delivers events to the
// Connection, one at a time.
type Transport interface {
	// SendHeaders sends a response header block on a request stream.
	SendHeaders(id StreamID, headers Headers, endStream bool) error

	// SendStreamData writes data on a stream and optionally finishes it.
	SendStreamData(id StreamID, data []byte, endStream bool) error

	// SendDatagram sends a datagram associated with the session.
	SendDatagram(sess SessionID, data []byte) error

	// CreateUnidirectionalStream opens a server-initiated unidirectional
	// stream bound to the session and returns its id.
	CreateUnidirectionalStream(sess SessionID) (StreamID, error)

	// StreamIsUnidirectional reports whether the stream is unidirectional.
	StreamIsUnidirectional(id StreamID) bool
}
