package webtransportgo

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/OkutaniDaichi0106/gowtecho/internal/wttest"
	"github.com/OkutaniDaichi0106/gowtecho/wtecho"
	"github.com/quic-go/quic-go"
	"github.com/quic-go/webtransport-go"
)

var _ webtransport.Stream = (*fakeStream)(nil)

// fakeStream returns chunks from Read in order, then readErr (io.EOF by default).
type fakeStream struct {
	id quic.StreamID

	mu       sync.Mutex
	chunks   [][]byte
	readErr  error
	written  bytes.Buffer
	writeErr error
	closed   bool
	canceled *webtransport.StreamErrorCode
}

func newFakeStream(id quic.StreamID, chunks ...string) *fakeStream {
	str := &fakeStream{id: id, readErr: io.EOF}
	for _, c := range chunks {
		str.chunks = append(str.chunks, []byte(c))
	}
	return str
}

func (s *fakeStream) StreamID() quic.StreamID { return s.id }

func (s *fakeStream) Read(b []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.chunks) == 0 {
		return 0, s.readErr
	}
	n := copy(b, s.chunks[0])
	s.chunks[0] = s.chunks[0][n:]
	if len(s.chunks[0]) == 0 {
		s.chunks = s.chunks[1:]
	}
	return n, nil
}

func (s *fakeStream) Write(b []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writeErr != nil {
		return 0, s.writeErr
	}
	return s.written.Write(b)
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

func (s *fakeStream) CancelWrite(code webtransport.StreamErrorCode) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.canceled = &code
}

func (s *fakeStream) CancelRead(webtransport.StreamErrorCode) {}

func (s *fakeStream) SetDeadline(time.Time) error      { return nil }
func (s *fakeStream) SetReadDeadline(time.Time) error  { return nil }
func (s *fakeStream) SetWriteDeadline(time.Time) error { return nil }

func (s *fakeStream) result() (written string, closed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.written.String(), s.closed
}

func (s *fakeStream) canceledCode() (webtransport.StreamErrorCode, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.canceled == nil {
		return 0, false
	}
	return *s.canceled, true
}

var _ session = (*fakeSession)(nil)

type fakeSession struct {
	ctx    context.Context
	cancel context.CancelFunc

	streams    chan webtransport.Stream
	uniStreams chan webtransport.ReceiveStream
	datagrams  chan []byte

	mu     sync.Mutex
	sent   [][]byte
	nextID quic.StreamID
	opened []*fakeStream
}

func newFakeSession() *fakeSession {
	ctx, cancel := context.WithCancel(context.Background())
	return &fakeSession{
		ctx:        ctx,
		cancel:     cancel,
		streams:    make(chan webtransport.Stream, 4),
		uniStreams: make(chan webtransport.ReceiveStream, 4),
		datagrams:  make(chan []byte, 4),
		nextID:     3,
	}
}

func (s *fakeSession) AcceptStream(ctx context.Context) (webtransport.Stream, error) {
	select {
	case str := <-s.streams:
		return str, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *fakeSession) AcceptUniStream(ctx context.Context) (webtransport.ReceiveStream, error) {
	select {
	case str := <-s.uniStreams:
		return str, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *fakeSession) OpenUniStream() (webtransport.SendStream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	str := newFakeStream(s.nextID)
	s.nextID += 4
	s.opened = append(s.opened, str)
	return str, nil
}

func (s *fakeSession) SendDatagram(b []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sent = append(s.sent, bytes.Clone(b))
	return nil
}

func (s *fakeSession) ReceiveDatagram(ctx context.Context) ([]byte, error) {
	select {
	case b := <-s.datagrams:
		return b, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *fakeSession) Context() context.Context {
	return s.ctx
}

func (s *fakeSession) sentDatagrams() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([][]byte(nil), s.sent...)
}

func (s *fakeSession) openedStreams() []*fakeStream {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]*fakeStream(nil), s.opened...)
}

var _ upgrader = (*fakeUpgrader)(nil)

type fakeUpgrader struct {
	sess *fakeSession
	err  error

	mu    sync.Mutex
	calls int
}

func (u *fakeUpgrader) Upgrade(w http.ResponseWriter, r *http.Request) (session, error) {
	u.mu.Lock()
	u.calls++
	u.mu.Unlock()

	if u.err != nil {
		return nil, u.err
	}
	w.WriteHeader(http.StatusOK)
	return u.sess, nil
}

// requestBody exposes a stream id the way the HTTP/3 request body does.
type requestBody struct {
	io.Reader
	id quic.StreamID
}

func (b requestBody) Close() error            { return nil }
func (b requestBody) StreamID() quic.StreamID { return b.id }

func newTestServerConn(t *testing.T, up upgrader, config *wtecho.Config) *serverConn {
	t.Helper()

	sc := &serverConn{
		upgrader:     up,
		writeTimeout: time.Second,
		logger:       wttest.NewLogger(t),
		tasks:        make(chan func(), taskQueueSize),
		done:         make(chan struct{}),
		stopped:      make(chan struct{}),
		pending:      make(map[wtecho.StreamID]*pendingRequest),
		sessions:     make(map[wtecho.SessionID]session),
		sendStreams:  make(map[wtecho.StreamID]sendStream),
	}
	sc.conn = wtecho.NewConnection(sc, config, sc.logger)

	return sc
}

// start runs the loop of sc until the test ends.
func start(t *testing.T, sc *serverConn) {
	t.Helper()

	go sc.run()
	t.Cleanup(func() {
		sc.close()
		sc.wait()
	})
}

// do runs fn on the loop of sc and waits for it.
func do(t *testing.T, sc *serverConn, fn func()) {
	t.Helper()

	done := make(chan struct{})
	if !sc.enqueue(func() {
		fn()
		close(done)
	}) {
		t.Fatal("loop is closed")
	}
	<-done
}
