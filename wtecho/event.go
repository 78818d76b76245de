package wtecho

// Event is a transport event delivered to a Connection.
// The set of events is closed: only the types declared in this file implement it.
type Event interface {
	event()
}

var (
	_ Event = ProtocolNegotiated{}
	_ Event = StreamReset{}
	_ Event = HeadersReceived{}
	_ Event = StreamDataReceived{}
	_ Event = DatagramReceived{}
)

// ProtocolNegotiated is delivered once the TLS handshake has selected the application protocol.
type ProtocolNegotiated struct {
	Protocol string
}

func (ProtocolNegotiated) event() {}

// StreamReset is delivered when the peer aborts a stream.
type StreamReset struct {
	StreamID StreamID
}

func (StreamReset) event() {}

// HeadersReceived carries a request header block, pseudo-headers included.
type HeadersReceived struct {
	StreamID StreamID
	Headers  Headers
}

func (HeadersReceived) event() {}

// StreamDataReceived carries a chunk of a WebTransport stream.
// Data may be empty when only the end of the stream is signalled.
type StreamDataReceived struct {
	StreamID    StreamID
	Data        []byte
	StreamEnded bool
}

func (StreamDataReceived) event() {}

// DatagramReceived carries a WebTransport datagram payload.
type DatagramReceived struct {
	Data []byte
}

func (DatagramReceived) event() {}
