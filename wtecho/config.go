package wtecho

import "github.com/OkutaniDaichi0106/gowtecho/wtecho/envelope"

// Config contains configuration options for echo connections.
type Config struct {
	// Secured enables the encryption overlay: every stream chunk is sealed
	// and written back on the stream it arrived on.
	Secured bool

	// Keys provides the overlay key for a session.
	// If nil, the static default key is used.
	Keys envelope.KeyProvider

	// Tracer receives protocol notifications. If nil, no-op hooks are used.
	Tracer func() *Tracer
}

func (c *Config) secured() bool {
	return c != nil && c.Secured
}

func (c *Config) keys() envelope.KeyProvider {
	if c != nil && c.Keys != nil {
		return c.Keys
	}
	return envelope.StaticKey(envelope.DefaultKey())
}

func (c *Config) tracer() *Tracer {
	if c == nil || c.Tracer == nil {
		return DefaultTracer()
	}
	tracer := c.Tracer()
	// This should not be nil, and if it is, panic occurs
	InitTracer(tracer)
	return tracer
}

// Clone creates a copy of the Config.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	return &Config{
		Secured: c.Secured,
		Keys:    c.Keys,
		Tracer:  c.Tracer,
	}
}
