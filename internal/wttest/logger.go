// Package wttest holds helpers shared by tests.
package wttest

import (
	"log/slog"
	"testing"

	"github.com/neilotoole/slogt"
)

// NewLogger returns a debug level logger whose output is attached to t.
func NewLogger(t testing.TB) *slog.Logger {
	return slogt.New(t)
}
