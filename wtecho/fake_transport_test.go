package wtecho

import (
	"strconv"
)

type sentHeaders struct {
	id        StreamID
	headers   Headers
	endStream bool
}

type sentData struct {
	id        StreamID
	data      []byte
	endStream bool
}

type sentDatagram struct {
	sess SessionID
	data []byte
}

var _ Transport = (*fakeTransport)(nil)

// fakeTransport records every command. Unidirectional streams are
// allocated with server-initiated unidirectional ids (3, 7, 11, ...).
type fakeTransport struct {
	headers   []sentHeaders
	data      []sentData
	datagrams []sentDatagram
	uniOpened []StreamID

	nextUni StreamID

	finished map[StreamID]bool

	sendHeadersErr error
	openUniErr     error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		nextUni:  3,
		finished: make(map[StreamID]bool),
	}
}

func (f *fakeTransport) SendHeaders(id StreamID, headers Headers, endStream bool) error {
	if f.sendHeadersErr != nil {
		return f.sendHeadersErr
	}
	f.headers = append(f.headers, sentHeaders{id: id, headers: headers, endStream: endStream})
	return nil
}

func (f *fakeTransport) SendStreamData(id StreamID, data []byte, endStream bool) error {
	if f.finished[id] {
		return ErrUnknownStream
	}
	f.data = append(f.data, sentData{id: id, data: data, endStream: endStream})
	if endStream {
		f.finished[id] = true
	}
	return nil
}

func (f *fakeTransport) SendDatagram(sess SessionID, data []byte) error {
	f.datagrams = append(f.datagrams, sentDatagram{sess: sess, data: data})
	return nil
}

func (f *fakeTransport) CreateUnidirectionalStream(sess SessionID) (StreamID, error) {
	if f.openUniErr != nil {
		return 0, f.openUniErr
	}
	id := f.nextUni
	f.nextUni += 4
	f.uniOpened = append(f.uniOpened, id)
	return id, nil
}

func (f *fakeTransport) StreamIsUnidirectional(id StreamID) bool {
	return id.IsUnidirectional()
}

func (f *fakeTransport) lastStatus() int {
	if len(f.headers) == 0 {
		return 0
	}
	status, _ := f.headers[len(f.headers)-1].headers.Status()
	return status
}

func (f *fakeTransport) dataOn(id StreamID) []sentData {
	var out []sentData
	for _, d := range f.data {
		if d.id == id {
			out = append(out, d)
		}
	}
	return out
}

func connectHeaders(fields ...HeaderField) HeadersReceived {
	return HeadersReceived{Headers: fields}
}

func connectRequest(id StreamID, path string) HeadersReceived {
	return HeadersReceived{
		StreamID: id,
		Headers: Headers{
			NewHeaderField(":method", "CONNECT"),
			NewHeaderField(":protocol", "webtransport"),
			NewHeaderField(":scheme", "https"),
			NewHeaderField(":authority", "localhost:4433"),
			NewHeaderField(":path", path),
		},
	}
}

func decimal(n int) []byte {
	return []byte(strconv.Itoa(n))
}
