package webtransportgo

import (
	"context"
	"errors"
	"io"

	"github.com/OkutaniDaichi0106/gowtecho/internal/bufpool"
	"github.com/OkutaniDaichi0106/gowtecho/wtecho"
	"github.com/quic-go/webtransport-go"
)

// Read buffers step through the bufpool size classes: a read that fills the
// buffer moves up one class and a read using a quarter or less moves down.
const (
	minReadSize = 1 << 10
	maxReadSize = 1 << 14
)

func nextReadSize(size, n int) int {
	switch {
	case n >= size && size < maxReadSize:
		return size << 2
	case n <= size>>2 && size > minReadSize:
		return size >> 2
	default:
		return size
	}
}

// serveSession registers an upgraded session and starts its readers.
// It must be called on the loop goroutine.
func (sc *serverConn) serveSession(id wtecho.SessionID, sess session) {
	sc.sessions[id] = sess

	logger := sc.logger.With("session_id", uint64(id))
	logger.Debug("serving webtransport session")

	// Listen bidirectional streams
	sc.wg.Add(1)
	go func() {
		defer sc.wg.Done()
		sc.acceptStreams(sess)
	}()

	// Listen unidirectional streams
	sc.wg.Add(1)
	go func() {
		defer sc.wg.Done()
		sc.acceptUniStreams(sess)
	}()

	// Listen datagrams
	sc.wg.Add(1)
	go func() {
		defer sc.wg.Done()
		sc.receiveDatagrams(sess)
	}()

	// Forget the session once it is gone
	sc.wg.Add(1)
	go func() {
		defer sc.wg.Done()
		select {
		case <-sess.Context().Done():
		case <-sc.done:
			return
		}
		sc.enqueue(func() {
			delete(sc.sessions, id)
			logger.Debug("webtransport session ended",
				"reason", context.Cause(sess.Context()),
			)
		})
	}()
}

func (sc *serverConn) acceptStreams(sess session) {
	ctx := sess.Context()
	for {
		str, err := sess.AcceptStream(ctx)
		if err != nil {
			sc.logger.Debug("stopped accepting bidirectional streams", "error", err)
			return
		}

		id := wtecho.StreamID(str.StreamID())
		registered := sc.enqueue(func() {
			sc.sendStreams[id] = str
		})
		if !registered {
			return
		}

		sc.wg.Add(1)
		go func() {
			defer sc.wg.Done()
			sc.readStream(id, str)
		}()
	}
}

func (sc *serverConn) acceptUniStreams(sess session) {
	ctx := sess.Context()
	for {
		str, err := sess.AcceptUniStream(ctx)
		if err != nil {
			sc.logger.Debug("stopped accepting unidirectional streams", "error", err)
			return
		}

		id := wtecho.StreamID(str.StreamID())

		sc.wg.Add(1)
		go func() {
			defer sc.wg.Done()
			sc.readStream(id, str)
		}()
	}
}

func (sc *serverConn) receiveDatagrams(sess session) {
	ctx := sess.Context()
	for {
		data, err := sess.ReceiveDatagram(ctx)
		if err != nil {
			sc.logger.Debug("stopped receiving datagrams", "error", err)
			return
		}

		if !sc.post(wtecho.DatagramReceived{Data: data}, nil) {
			return
		}
	}
}

// readStream posts every chunk read from str until it ends or is reset.
func (sc *serverConn) readStream(id wtecho.StreamID, str receiveStream) {
	size := minReadSize
	for {
		buf := bufpool.Get(size)

		n, err := str.Read(buf)
		size = nextReadSize(size, n)
		ended := errors.Is(err, io.EOF)

		if n > 0 || ended {
			ev := wtecho.StreamDataReceived{
				StreamID:    id,
				Data:        buf[:n],
				StreamEnded: ended,
			}
			if !sc.post(ev, func() { bufpool.Put(buf) }) {
				return
			}
		} else {
			bufpool.Put(buf)
		}

		if err == nil {
			continue
		}
		if ended {
			return
		}

		var strErr *webtransport.StreamError
		if errors.As(err, &strErr) {
			sc.logger.Debug("stream reset by peer",
				"stream_id", uint64(id),
				"error_code", strErr.ErrorCode,
			)
			sc.enqueue(func() {
				delete(sc.sendStreams, id)
				sc.conn.HandleEvent(wtecho.StreamReset{StreamID: id})
			})
			return
		}

		sc.logger.Debug("stopped reading stream",
			"stream_id", uint64(id),
			"error", err,
		)
		return
	}
}
