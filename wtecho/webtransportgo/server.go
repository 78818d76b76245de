// Package webtransportgo serves the wtecho protocol with quic-go's HTTP/3
// server and webtransport-go.
//
// Every QUIC connection gets one event loop goroutine that owns a
// wtecho.Connection. Request handlers, stream readers and the datagram
// reader only post events to that loop, so the protocol state is never
// touched concurrently.
package webtransportgo

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OkutaniDaichi0106/gowtecho/wtecho"
	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"
	"github.com/quic-go/webtransport-go"
)

// ErrServerClosed is returned by the serve methods after Close or Shutdown.
var ErrServerClosed = errors.New("webtransportgo: server closed")

const (
	defaultWriteTimeout = 5 * time.Second
	defaultIdleTimeout  = 30 * time.Second
)

type Server struct {
	/*
	 * Server's Address
	 */
	Addr string

	/*
	 * TLS configuration
	 */
	TLSConfig *tls.Config

	/*
	 * QUIC configuration
	 * Datagrams are always enabled.
	 */
	QUICConfig *quic.Config

	/*
	 * Echo protocol configuration
	 */
	Config *wtecho.Config

	/*
	 * WriteTimeout bounds every stream write issued by the protocol.
	 * If zero, 5 seconds is used.
	 */
	WriteTimeout time.Duration

	/*
	 * CheckOrigin validates the Origin header of CONNECT requests.
	 * If nil, all origins are accepted.
	 */
	CheckOrigin func(*http.Request) bool

	/*
	 * Logger
	 */
	Logger *slog.Logger

	initOnce sync.Once

	wtServer *webtransport.Server

	mu    sync.Mutex
	conns map[*serverConn]struct{}

	inShutdown atomic.Bool
}

func (s *Server) init() {
	s.initOnce.Do(func() {
		s.conns = make(map[*serverConn]struct{})

		if s.Logger == nil {
			s.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		}
		s.Logger = s.Logger.With("address", s.Addr)

		checkOrigin := s.CheckOrigin
		if checkOrigin == nil {
			checkOrigin = func(*http.Request) bool { return true }
		}

		s.wtServer = &webtransport.Server{
			H3: http3.Server{
				Addr:            s.Addr,
				TLSConfig:       s.TLSConfig,
				QUICConfig:      s.quicConfig(),
				Handler:         s,
				EnableDatagrams: true,
				ConnContext:     s.connContext,
			},
			CheckOrigin: checkOrigin,
		}

		s.Logger.Debug("initialized server")
	})
}

func (s *Server) quicConfig() *quic.Config {
	var config *quic.Config
	if s.QUICConfig != nil {
		config = s.QUICConfig.Clone()
	} else {
		config = &quic.Config{
			MaxIdleTimeout: defaultIdleTimeout,
		}
	}
	config.EnableDatagrams = true
	return config
}

func (s *Server) writeTimeout() time.Duration {
	if s.WriteTimeout > 0 {
		return s.WriteTimeout
	}
	return defaultWriteTimeout
}

// ListenAndServe listens on the UDP address s.Addr using s.TLSConfig.
func (s *Server) ListenAndServe() error {
	if s.shuttingDown() {
		return ErrServerClosed
	}
	if s.TLSConfig == nil {
		return errors.New("webtransportgo: configuration for TLS is required")
	}

	s.init()

	s.Logger.Info("listening for WebTransport sessions")

	return s.wrapServeError(s.wtServer.ListenAndServe())
}

// ListenAndServeTLS loads a certificate and key from PEM files and listens on s.Addr.
func (s *Server) ListenAndServeTLS(certFile, keyFile string) error {
	if s.shuttingDown() {
		return ErrServerClosed
	}

	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		if s.Logger != nil {
			s.Logger.Error("failed to load X509 key pair",
				"certFile", certFile,
				"keyFile", keyFile,
				"error", err,
			)
		}
		return err
	}

	if s.TLSConfig == nil {
		s.TLSConfig = &tls.Config{}
	} else {
		s.TLSConfig = s.TLSConfig.Clone()
	}
	s.TLSConfig.Certificates = []tls.Certificate{cert}

	return s.ListenAndServe()
}

// Serve serves connections arriving on conn.
func (s *Server) Serve(conn net.PacketConn) error {
	if s.shuttingDown() {
		return ErrServerClosed
	}

	s.init()

	return s.wrapServeError(s.wtServer.Serve(conn))
}

func (s *Server) wrapServeError(err error) error {
	if s.shuttingDown() {
		return ErrServerClosed
	}
	return err
}

// Close stops the server immediately and releases all connections.
func (s *Server) Close() error {
	s.inShutdown.Store(true)
	s.init()

	s.Logger.Info("closing server")

	err := s.wtServer.Close()

	s.mu.Lock()
	conns := make([]*serverConn, 0, len(s.conns))
	for sc := range s.conns {
		conns = append(conns, sc)
	}
	s.mu.Unlock()

	for _, sc := range conns {
		sc.close()
	}

	return err
}

// Shutdown closes the server and waits until every connection loop has
// stopped or ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	closeCh := make(chan error, 1)

	go func() {
		err := s.Close()
		s.mu.Lock()
		conns := make([]*serverConn, 0, len(s.conns))
		for sc := range s.conns {
			conns = append(conns, sc)
		}
		s.mu.Unlock()
		for _, sc := range conns {
			sc.wait()
		}
		closeCh <- err
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-closeCh:
		return err
	}
}

// ServeHTTP hands a request to the connection loop it arrived on.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sc, ok := r.Context().Value(serverConnKey{}).(*serverConn)
	if !ok {
		s.Logger.Error("request without connection state",
			"remote_address", r.RemoteAddr,
		)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	sc.serveRequest(w, r)
}

type serverConnKey struct{}

// connContext creates the event loop of a new QUIC connection.
func (s *Server) connContext(ctx context.Context, conn quic.Connection) context.Context {
	sc := newServerConn(s, conn)
	s.addConn(sc)

	go sc.run()

	context.AfterFunc(conn.Context(), func() {
		sc.close()
		s.removeConn(sc)
	})

	sc.post(wtecho.ProtocolNegotiated{
		Protocol: conn.ConnectionState().TLS.NegotiatedProtocol,
	}, nil)

	return context.WithValue(ctx, serverConnKey{}, sc)
}

func (s *Server) addConn(sc *serverConn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conns[sc] = struct{}{}
}

func (s *Server) removeConn(sc *serverConn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.conns, sc)
}

// activeConns returns the number of connection loops.
func (s *Server) activeConns() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.conns)
}

func (s *Server) shuttingDown() bool {
	return s.inShutdown.Load()
}
