package wtecho

import (
	"bytes"
	"io"
	"log/slog"

	"github.com/OkutaniDaichi0106/gowtecho/wtecho/envelope"
)

type connState int

const (
	stateIdle connState = iota
	stateReady
	stateSessionActive
	stateClosed
)

var connStateTexts = map[connState]string{
	stateIdle:          "idle",
	stateReady:         "ready",
	stateSessionActive: "session_active",
	stateClosed:        "closed",
}

func (s connState) String() string {
	return connStateTexts[s]
}

// NewConnection returns the dispatcher of one transport connection.
// The connection starts idle and becomes ready once ProtocolNegotiated
// is delivered.
func NewConnection(transport Transport, config *Config, logger *slog.Logger) *Connection {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	tracer := config.tracer()

	conn := &Connection{
		transport: transport,
		logger:    logger,
		tracer:    tracer,
		state:     stateIdle,
	}

	if config.secured() {
		conn.overlay = newOverlay(transport, config.keys(), logger, tracer)
	}

	return conn
}

// Connection routes the events of one transport connection to the
// handshake logic or to the active Session.
//
// Events must be delivered one at a time; a Connection is not safe for
// concurrent use.
type Connection struct {
	transport Transport

	state    connState
	protocol string

	session *Session
	overlay *overlay

	logger *slog.Logger
	tracer *Tracer
}

// Session returns the active session, or nil.
func (c *Connection) Session() *Session {
	return c.session
}

// Protocol returns the negotiated application protocol.
func (c *Connection) Protocol() string {
	return c.protocol
}

// Secured reports whether the encryption overlay is active.
func (c *Connection) Secured() bool {
	return c.overlay != nil
}

// HandleEvent processes one transport event.
func (c *Connection) HandleEvent(ev Event) {
	if c.state == stateClosed {
		return
	}

	switch ev := ev.(type) {
	case ProtocolNegotiated:
		if c.state == stateIdle {
			c.protocol = ev.Protocol
			c.state = stateReady
			c.logger.Debug("protocol negotiated", "protocol", ev.Protocol)
		}
	case StreamReset:
		if c.session != nil {
			c.logger.Debug("stream reset", "stream_id", uint64(ev.StreamID))
			c.session.StreamClosed(ev.StreamID)
			c.tracer.StreamReset(ev.StreamID)
		}
	}

	if c.state == stateIdle {
		c.logger.Debug("dropped event before protocol negotiation")
		return
	}

	switch ev := ev.(type) {
	case HeadersReceived:
		c.handleHeaders(ev)
	case StreamDataReceived:
		if c.overlay != nil {
			c.overlay.handleStreamData(ev)
		}
	}

	if c.session != nil {
		c.session.HandleEvent(ev)
	}
}

func (c *Connection) handleHeaders(ev HeadersReceived) {
	method, _ := ev.Headers.Get(headerMethod)
	protocol, _ := ev.Headers.Get(headerProtocol)

	if bytes.Equal(method, methodConnect) && bytes.Equal(protocol, protocolWebTransport) {
		c.Handshake(ev.StreamID, ev.Headers)
		return
	}

	c.logger.Debug("unsupported request",
		"stream_id", uint64(ev.StreamID),
		"method", string(method),
		"protocol", string(protocol),
	)
	c.reject(ev.StreamID, RejectBadRequest)
}

// Handshake validates a WebTransport CONNECT request received on stream id
// and answers it. On success the new Session is bound to id and the request
// stream is left open.
func (c *Connection) Handshake(id StreamID, headers Headers) HandshakeResult {
	authority, hasAuthority := headers.Get(headerAuthority)
	path, hasPath := headers.Get(headerPath)

	if !hasAuthority || !hasPath {
		return c.reject(id, RejectBadRequest)
	}

	if string(path) != HandlerPath {
		return c.reject(id, RejectNotFound)
	}

	if c.session != nil {
		c.logger.Warn("rejected additional session",
			"stream_id", uint64(id),
			"session_id", uint64(c.session.ID()),
		)
		return c.reject(id, RejectSessionLimit)
	}

	sess := newSession(id, c.transport, string(authority), string(path), c.logger, c.tracer)

	err := c.transport.SendHeaders(id, responseHeaders(StatusOK), false)
	if err != nil {
		c.logger.Error("failed to accept session",
			"stream_id", uint64(id),
			"error", err,
		)
		return HandshakeResult{err: err}
	}

	c.session = sess
	c.state = stateSessionActive
	if c.overlay != nil {
		c.overlay.bind(envelope.KeyInfo{
			Authority: sess.Authority(),
			Path:      sess.Path(),
		})
	}

	c.logger.Info("session accepted",
		"session_id", uint64(id),
		"authority", sess.Authority(),
	)
	c.tracer.HandshakeCompleted(id, StatusOK)
	c.tracer.SessionStarted(id)

	return HandshakeResult{Session: sess}
}

func (c *Connection) reject(id StreamID, reason RejectReason) HandshakeResult {
	status := reason.StatusCode()

	err := c.transport.SendHeaders(id, responseHeaders(status), true)
	if err != nil {
		c.logger.Warn("failed to send rejection",
			"stream_id", uint64(id),
			"status", status,
			"error", err,
		)
	}

	c.logger.Debug("rejected request",
		"stream_id", uint64(id),
		"status", status,
		"reason", reason,
	)
	c.tracer.HandshakeCompleted(id, status)

	return HandshakeResult{Reason: reason, err: err}
}

// Close releases the session and its counters.
// Events delivered after Close are ignored.
func (c *Connection) Close() {
	if c.state == stateClosed {
		return
	}

	if c.session != nil {
		c.logger.Info("session closed",
			"session_id", uint64(c.session.ID()),
			"open_streams", c.session.OpenStreams(),
		)
		c.tracer.SessionClosed(c.session.ID())
		c.session = nil
	}

	c.state = stateClosed
}

// HandshakeResult is the outcome of a CONNECT request: either an accepted
// Session or a rejection reason.
type HandshakeResult struct {
	Session *Session
	Reason  RejectReason

	// err is set when the response could not be sent.
	err error
}

// Accepted reports whether a session was created.
func (r HandshakeResult) Accepted() bool {
	return r.Session != nil
}

// StatusCode returns the status that was sent for the request.
func (r HandshakeResult) StatusCode() int {
	if r.Accepted() {
		return StatusOK
	}
	if r.Reason == 0 {
		return StatusInternalServerError
	}
	return r.Reason.StatusCode()
}

// Err returns nil for an accepted session, the transport error when the
// response could not be sent, and a RejectError otherwise.
func (r HandshakeResult) Err() error {
	if r.Accepted() {
		return nil
	}
	if r.err != nil {
		return r.err
	}
	return RejectError{Reason: r.Reason}
}
