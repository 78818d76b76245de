package webtransportgo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OkutaniDaichi0106/gowtecho/wtecho"
	"github.com/quic-go/quic-go"
	"github.com/quic-go/webtransport-go"
)

const taskQueueSize = 1 << 6

// syntheticStreamIDBase is above the largest valid QUIC stream id (2^62-1).
// It is used for request streams whose id the HTTP/3 layer does not expose.
const syntheticStreamIDBase = wtecho.StreamID(1) << 62

var _ wtecho.Transport = (*serverConn)(nil)

func newServerConn(server *Server, conn quic.Connection) *serverConn {
	logger := server.Logger.With(
		"remote_address", conn.RemoteAddr(),
	)

	sc := &serverConn{
		upgrader:     wtUpgrader{server.wtServer},
		writeTimeout: server.writeTimeout(),
		logger:       logger,
		tasks:        make(chan func(), taskQueueSize),
		done:         make(chan struct{}),
		stopped:      make(chan struct{}),
		pending:      make(map[wtecho.StreamID]*pendingRequest),
		sessions:     make(map[wtecho.SessionID]session),
		sendStreams:  make(map[wtecho.StreamID]sendStream),
	}
	sc.conn = wtecho.NewConnection(sc, server.Config, logger)

	return sc
}

// upgrader turns an HTTP/3 request into a WebTransport session.
type upgrader interface {
	Upgrade(w http.ResponseWriter, r *http.Request) (session, error)
}

type wtUpgrader struct {
	server *webtransport.Server
}

func (u wtUpgrader) Upgrade(w http.ResponseWriter, r *http.Request) (session, error) {
	sess, err := u.server.Upgrade(w, r)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// session is the part of *webtransport.Session used by the loop.
type session interface {
	AcceptStream(ctx context.Context) (webtransport.Stream, error)
	AcceptUniStream(ctx context.Context) (webtransport.ReceiveStream, error)
	OpenUniStream() (webtransport.SendStream, error)
	SendDatagram(b []byte) error
	ReceiveDatagram(ctx context.Context) ([]byte, error)
	Context() context.Context
}

var _ session = (*webtransport.Session)(nil)

// sendStream is the writable half of a stream.
type sendStream interface {
	Write(b []byte) (int, error)
	Close() error
	CancelWrite(webtransport.StreamErrorCode)
	SetWriteDeadline(time.Time) error
}

// receiveStream is the readable half of a stream.
type receiveStream interface {
	Read(b []byte) (int, error)
}

type pendingRequest struct {
	w    http.ResponseWriter
	r    *http.Request
	done chan struct{}
}

// serverConn owns the protocol state of one QUIC connection.
// Everything below the task channel is accessed only by the loop goroutine.
type serverConn struct {
	upgrader     upgrader
	writeTimeout time.Duration
	logger       *slog.Logger

	tasks     chan func()
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once

	wg sync.WaitGroup

	syntheticIDs atomic.Uint64

	conn        *wtecho.Connection
	pending     map[wtecho.StreamID]*pendingRequest
	sessions    map[wtecho.SessionID]session
	sendStreams map[wtecho.StreamID]sendStream
}

// run executes posted tasks one at a time until the connection closes.
func (sc *serverConn) run() {
	defer close(sc.stopped)

	for {
		select {
		case <-sc.done:
			sc.conn.Close()
			sc.releasePending()
			return
		case task := <-sc.tasks:
			task()
		}
	}
}

// enqueue schedules task on the loop. It returns false once the
// connection is closed.
func (sc *serverConn) enqueue(task func()) bool {
	select {
	case <-sc.done:
		return false
	case sc.tasks <- task:
		return true
	}
}

// post delivers ev to the protocol. release, if non-nil, runs after the
// event has been handled.
func (sc *serverConn) post(ev wtecho.Event, release func()) bool {
	ok := sc.enqueue(func() {
		sc.conn.HandleEvent(ev)
		if release != nil {
			release()
		}
	})
	if !ok && release != nil {
		release()
	}
	return ok
}

func (sc *serverConn) close() {
	sc.closeOnce.Do(func() {
		close(sc.done)
	})
}

// wait blocks until the loop and all readers have stopped.
func (sc *serverConn) wait() {
	<-sc.stopped
	sc.wg.Wait()
}

func (sc *serverConn) releasePending() {
	for id, req := range sc.pending {
		delete(sc.pending, id)
		close(req.done)
	}
}

// serveRequest forwards a request header block and blocks until the
// protocol has answered it.
func (sc *serverConn) serveRequest(w http.ResponseWriter, r *http.Request) {
	id := sc.requestStreamID(r)
	req := &pendingRequest{
		w:    w,
		r:    r,
		done: make(chan struct{}),
	}

	ok := sc.enqueue(func() {
		// A canceled request means its handler has returned, so w must not be used.
		if err := r.Context().Err(); err != nil {
			sc.logger.Debug("dropped canceled request",
				"stream_id", uint64(id),
				"error", err,
			)
			return
		}

		sc.pending[id] = req
		sc.conn.HandleEvent(wtecho.HeadersReceived{
			StreamID: id,
			Headers:  requestHeaders(r),
		})

		// Every request must be answered before the handler returns.
		if _, unanswered := sc.pending[id]; unanswered {
			delete(sc.pending, id)
			w.WriteHeader(http.StatusInternalServerError)
			close(req.done)
		}
	})
	if !ok {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	select {
	case <-req.done:
	case <-sc.done:
	case <-r.Context().Done():
	}
}

func (sc *serverConn) requestStreamID(r *http.Request) wtecho.StreamID {
	if body, ok := r.Body.(interface{ StreamID() quic.StreamID }); ok {
		return wtecho.StreamID(body.StreamID())
	}
	return syntheticStreamIDBase + wtecho.StreamID(sc.syntheticIDs.Add(1))
}

// requestHeaders rebuilds the header block of r, pseudo-headers first.
func requestHeaders(r *http.Request) wtecho.Headers {
	headers := wtecho.Headers{
		wtecho.NewHeaderField(":method", r.Method),
	}

	// net/http reports the :protocol pseudo-header of an extended CONNECT in Proto.
	if r.Method == http.MethodConnect && r.Proto != "" && r.Proto != "HTTP/3.0" {
		headers = append(headers, wtecho.NewHeaderField(":protocol", r.Proto))
	}
	if r.Host != "" {
		headers = append(headers, wtecho.NewHeaderField(":authority", r.Host))
	}

	// For CONNECT requests RequestURI holds the authority, so :path comes from URL.
	if r.URL != nil {
		headers = append(headers, wtecho.NewHeaderField(":path", r.URL.RequestURI()))
	}

	for name, values := range r.Header {
		for _, value := range values {
			headers = append(headers, wtecho.HeaderField{
				Name:  bytes.ToLower([]byte(name)),
				Value: []byte(value),
			})
		}
	}

	return headers
}

/*
 * wtecho.Transport
 */

func (sc *serverConn) SendHeaders(id wtecho.StreamID, headers wtecho.Headers, endStream bool) error {
	status, ok := headers.Status()
	if !ok {
		return errors.New("webtransportgo: response without :status")
	}

	req, ok := sc.pending[id]
	if !ok {
		return sc.resetStream(id, status)
	}
	delete(sc.pending, id)
	defer close(req.done)

	if status == wtecho.StatusOK && !endStream {
		sess, err := sc.upgrader.Upgrade(req.w, req.r)
		if err != nil {
			sc.logger.Error("failed to upgrade http to webtransport",
				"stream_id", uint64(id),
				"error", err,
			)
			req.w.WriteHeader(http.StatusInternalServerError)
			return fmt.Errorf("webtransportgo: upgrade failed: %w", err)
		}

		sc.serveSession(id, sess)
		return nil
	}

	for _, f := range headers {
		if len(f.Name) == 0 || f.Name[0] == ':' {
			continue
		}
		req.w.Header().Add(string(f.Name), string(f.Value))
	}
	req.w.WriteHeader(status)

	return nil
}

// resetStream answers a status on a WebTransport data stream, which cannot
// carry HTTP headers, by resetting its send side with the status as code.
func (sc *serverConn) resetStream(id wtecho.StreamID, status int) error {
	str, ok := sc.sendStreams[id]
	if !ok {
		return wtecho.ErrUnknownStream
	}
	delete(sc.sendStreams, id)

	str.CancelWrite(webtransport.StreamErrorCode(status))
	return nil
}

func (sc *serverConn) SendStreamData(id wtecho.StreamID, data []byte, endStream bool) error {
	str, ok := sc.sendStreams[id]
	if !ok {
		return wtecho.ErrUnknownStream
	}

	if err := str.SetWriteDeadline(time.Now().Add(sc.writeTimeout)); err != nil {
		return err
	}

	if len(data) > 0 {
		if _, err := str.Write(data); err != nil {
			delete(sc.sendStreams, id)
			str.CancelWrite(0)
			return err
		}
	}

	if endStream {
		delete(sc.sendStreams, id)
		return str.Close()
	}

	return nil
}

func (sc *serverConn) SendDatagram(id wtecho.SessionID, data []byte) error {
	sess, ok := sc.sessions[id]
	if !ok {
		return wtecho.ErrNoSession
	}
	return sess.SendDatagram(data)
}

func (sc *serverConn) CreateUnidirectionalStream(id wtecho.SessionID) (wtecho.StreamID, error) {
	sess, ok := sc.sessions[id]
	if !ok {
		return 0, wtecho.ErrNoSession
	}

	str, err := sess.OpenUniStream()
	if err != nil {
		return 0, err
	}

	streamID := wtecho.StreamID(str.StreamID())
	sc.sendStreams[streamID] = str

	return streamID, nil
}

func (sc *serverConn) StreamIsUnidirectional(id wtecho.StreamID) bool {
	return id.IsUnidirectional()
}
