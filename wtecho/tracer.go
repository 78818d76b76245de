package wtecho

// Tracer receives notifications about the echo protocol.
// Nil hooks are replaced with no-op defaults by InitTracer.
type Tracer struct {
	// Handshake
	HandshakeCompleted func(id StreamID, status int)

	// Session
	SessionStarted func(sess SessionID)
	SessionClosed  func(sess SessionID)

	// Echo
	StreamEchoed   func(id StreamID, total uint64, unidirectional bool)
	DatagramEchoed func(size int)
	StreamReset    func(id StreamID)

	// Encryption overlay
	StreamSealed     func(id StreamID, size int)
	EncryptionFailed func(id StreamID, err error)
}

// InitTracer fills unset hooks with no-op defaults.
func InitTracer(tracer *Tracer) {
	if tracer == nil {
		panic("Tracer must not be nil")
	}

	if tracer.HandshakeCompleted == nil {
		tracer.HandshakeCompleted = DefaultHandshakeCompleted
	}
	if tracer.SessionStarted == nil {
		tracer.SessionStarted = DefaultSessionStarted
	}
	if tracer.SessionClosed == nil {
		tracer.SessionClosed = DefaultSessionClosed
	}
	if tracer.StreamEchoed == nil {
		tracer.StreamEchoed = DefaultStreamEchoed
	}
	if tracer.DatagramEchoed == nil {
		tracer.DatagramEchoed = DefaultDatagramEchoed
	}
	if tracer.StreamReset == nil {
		tracer.StreamReset = DefaultStreamReset
	}
	if tracer.StreamSealed == nil {
		tracer.StreamSealed = DefaultStreamSealed
	}
	if tracer.EncryptionFailed == nil {
		tracer.EncryptionFailed = DefaultEncryptionFailed
	}
}

// DefaultTracer returns a Tracer whose hooks do nothing.
func DefaultTracer() *Tracer {
	tracer := &Tracer{}
	InitTracer(tracer)
	return tracer
}

// Default functions for Tracer hooks

var DefaultHandshakeCompleted = func(id StreamID, status int) {}

var DefaultSessionStarted = func(sess SessionID) {}

var DefaultSessionClosed = func(sess SessionID) {}

var DefaultStreamEchoed = func(id StreamID, total uint64, unidirectional bool) {}

var DefaultDatagramEchoed = func(size int) {}

var DefaultStreamReset = func(id StreamID) {}

var DefaultStreamSealed = func(id StreamID, size int) {}

var DefaultEncryptionFailed = func(id StreamID, err error) {}
