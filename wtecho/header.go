package wtecho

import (
	"bytes"
	"strconv"
)

// Pseudo-header and token literals used by the extended CONNECT handshake.
var (
	headerMethod    = []byte(":method")
	headerProtocol  = []byte(":protocol")
	headerAuthority = []byte(":authority")
	headerPath      = []byte(":path")
	headerStatus    = []byte(":status")

	methodConnect        = []byte("CONNECT")
	protocolWebTransport = []byte("webtransport")
	headerDraft          = []byte("sec-webtransport-http3-draft")
	draftVersion         = []byte("draft02")
)

// HandlerPath is the only path served by the echo handler.
const HandlerPath = "/handler"

// HeaderField is a raw header name/value pair as seen on the wire.
type HeaderField struct {
	Name  []byte
	Value []byte
}

// NewHeaderField builds a HeaderField from strings.
func NewHeaderField(name, value string) HeaderField {
	return HeaderField{Name: []byte(name), Value: []byte(value)}
}

// Headers is an ordered header block.
type Headers []HeaderField

// Get returns the value of the last field named name.
// The boolean is false when no such field exists, which is distinct
// from a field that is present with an empty value.
func (h Headers) Get(name []byte) ([]byte, bool) {
	var (
		value []byte
		found bool
	)
	for _, f := range h {
		if bytes.Equal(f.Name, name) {
			value = f.Value
			found = true
		}
	}
	return value, found
}

// Status parses the :status pseudo-header.
func (h Headers) Status() (int, bool) {
	v, ok := h.Get(headerStatus)
	if !ok {
		return 0, false
	}
	code, err := strconv.Atoi(string(v))
	if err != nil {
		return 0, false
	}
	return code, true
}

func responseHeaders(status int) Headers {
	headers := Headers{
		{Name: headerStatus, Value: []byte(strconv.Itoa(status))},
	}
	if status == StatusOK {
		headers = append(headers, HeaderField{Name: headerDraft, Value: draftVersion})
	}
	return headers
}
