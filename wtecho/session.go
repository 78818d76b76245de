package wtecho

import (
	"log/slog"
	"strconv"
)

func newSession(id SessionID, transport Transport, authority, path string, logger *slog.Logger, tracer *Tracer) *Session {
	return &Session{
		id:        id,
		authority: authority,
		path:      path,
		transport: transport,
		counters:  make(counterTable),
		logger:    logger.With("session_id", uint64(id)),
		tracer:    tracer,
	}
}

// Session is an accepted WebTransport session. It echoes the total size of
// every stream and the size of every datagram back to the client.
//
// A Session is driven by its Connection and is not safe for concurrent use.
type Session struct {
	id        SessionID
	authority string
	path      string

	// transport is shared with the Connection, which owns its lifetime.
	transport Transport

	counters counterTable

	logger *slog.Logger
	tracer *Tracer
}

// ID returns the stream id of the CONNECT request that created the session.
func (s *Session) ID() SessionID {
	return s.id
}

// Authority returns the :authority of the CONNECT request.
func (s *Session) Authority() string {
	return s.authority
}

// Path returns the :path of the CONNECT request.
func (s *Session) Path() string {
	return s.path
}

// BytesReceived returns the running total of an open stream.
func (s *Session) BytesReceived(id StreamID) (uint64, bool) {
	return s.counters.get(id)
}

// OpenStreams returns the number of streams with a live counter.
func (s *Session) OpenStreams() int {
	return len(s.counters)
}

// HandleEvent observes a raw transport event.
// Only datagrams and stream data produce replies.
func (s *Session) HandleEvent(ev Event) {
	switch ev := ev.(type) {
	case DatagramReceived:
		s.OnDatagram(ev.Data)
	case StreamDataReceived:
		s.OnStreamData(ev.StreamID, ev.Data, ev.StreamEnded)
	}
}

// OnDatagram replies with the decimal length of payload as a datagram.
func (s *Session) OnDatagram(payload []byte) {
	size := len(payload)
	reply := []byte(strconv.Itoa(size))

	if err := s.transport.SendDatagram(s.id, reply); err != nil {
		s.logger.Warn("failed to send datagram",
			"size", size,
			"error", err,
		)
		return
	}

	s.logger.Debug("echoed datagram size", "size", size)
	s.tracer.DatagramEchoed(size)
}

// OnStreamData accumulates chunk into the stream counter. When the stream
// ends, the total is written as decimal ASCII on the reply stream and the
// counter is removed.
func (s *Session) OnStreamData(id StreamID, chunk []byte, ended bool) {
	total := s.counters.add(id, len(chunk))
	if !ended {
		return
	}
	defer s.StreamClosed(id)

	streamLogger := s.logger.With("stream_id", uint64(id))

	unidirectional := s.transport.StreamIsUnidirectional(id)

	replyID := id
	if unidirectional {
		var err error
		replyID, err = s.transport.CreateUnidirectionalStream(s.id)
		if err != nil {
			streamLogger.Warn("failed to open unidirectional stream",
				"error", err,
			)
			return
		}
	}

	payload := []byte(strconv.FormatUint(total, 10))
	if err := s.transport.SendStreamData(replyID, payload, true); err != nil {
		streamLogger.Warn("failed to send stream total",
			"reply_stream_id", uint64(replyID),
			"total", total,
			"error", err,
		)
		return
	}

	streamLogger.Debug("echoed stream total",
		"reply_stream_id", uint64(replyID),
		"total", total,
	)
	s.tracer.StreamEchoed(id, total, unidirectional)
}

// StreamClosed forgets the counter of a finished or reset stream.
// It is a no-op when the stream has no counter.
func (s *Session) StreamClosed(id StreamID) {
	s.counters.remove(id)
}
