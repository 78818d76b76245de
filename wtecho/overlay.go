package wtecho

import (
	"log/slog"

	"github.com/OkutaniDaichi0106/gowtecho/wtecho/envelope"
)

func newOverlay(transport Transport, keys envelope.KeyProvider, logger *slog.Logger, tracer *Tracer) *overlay {
	return &overlay{
		transport: transport,
		keys:      keys,
		logger:    logger,
		tracer:    tracer,
	}
}

// overlay seals every received stream chunk and writes the envelope back
// on the stream it arrived on, finishing that stream.
type overlay struct {
	transport Transport
	keys      envelope.KeyProvider

	info   envelope.KeyInfo
	sealer *envelope.Sealer

	logger *slog.Logger
	tracer *Tracer
}

// bind selects the key of a newly accepted session.
func (o *overlay) bind(info envelope.KeyInfo) {
	o.info = info
	o.sealer = nil
}

func (o *overlay) seal(plaintext []byte) ([]byte, error) {
	if o.sealer == nil {
		key, err := o.keys.Key(o.info)
		if err != nil {
			return nil, err
		}
		sealer, err := envelope.NewSealer(key)
		if err != nil {
			return nil, err
		}
		o.sealer = sealer
	}
	return o.sealer.Seal(plaintext)
}

func (o *overlay) handleStreamData(ev StreamDataReceived) {
	streamLogger := o.logger.With("stream_id", uint64(ev.StreamID))

	sealed, err := o.seal(ev.Data)
	if err != nil {
		streamLogger.Error("encryption failed", "error", err)
		o.tracer.EncryptionFailed(ev.StreamID, err)

		err = o.transport.SendHeaders(ev.StreamID, responseHeaders(StatusInternalServerError), true)
		if err != nil {
			streamLogger.Warn("failed to send error response",
				"status", StatusInternalServerError,
				"error", err,
			)
		}
		return
	}

	if err := o.transport.SendStreamData(ev.StreamID, sealed, true); err != nil {
		streamLogger.Warn("failed to send sealed payload",
			"size", len(sealed),
			"error", err,
		)
		return
	}

	streamLogger.Debug("sent sealed payload", "size", len(sealed))
	o.tracer.StreamSealed(ev.StreamID, len(sealed))
}
