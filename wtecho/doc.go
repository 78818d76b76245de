// Package wtecho implements a WebTransport echo session protocol on top of
// an HTTP/3 transport.
//
// A client opens a session with an extended CONNECT request to "/handler".
// Within that session the server answers
//
//   - every datagram with the decimal length of its payload,
//   - every bidirectional stream, once finished, with the decimal total of
//     bytes received, written on the same stream,
//   - every unidirectional stream, once finished, with the same total
//     written on a new server-initiated unidirectional stream.
//
// In the secured variant every received stream chunk is additionally
// sealed with AES-256-GCM (see package envelope) and written back on the
// stream it arrived on.
//
// # Core Components
//
//   - Connection: per-connection dispatcher driving the handshake
//   - Session: byte accounting and echo for one accepted session
//   - Transport: commands the dispatcher issues to the transport
//   - Event: the closed set of transport events
//
// The webtransportgo subpackage binds these to quic-go and webtransport-go.
package wtecho
