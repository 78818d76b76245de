package wtecho

import (
	"github.com/stretchr/testify/mock"
)

var _ Transport = (*MockTransport)(nil)

// MockTransport is a mock implementation of Transport using testify/mock
type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) SendHeaders(id StreamID, headers Headers, endStream bool) error {
	args := m.Called(id, headers, endStream)
	return args.Error(0)
}

func (m *MockTransport) SendStreamData(id StreamID, data []byte, endStream bool) error {
	args := m.Called(id, data, endStream)
	return args.Error(0)
}

func (m *MockTransport) SendDatagram(sess SessionID, data []byte) error {
	args := m.Called(sess, data)
	return args.Error(0)
}

func (m *MockTransport) CreateUnidirectionalStream(sess SessionID) (StreamID, error) {
	args := m.Called(sess)
	return args.Get(0).(StreamID), args.Error(1)
}

func (m *MockTransport) StreamIsUnidirectional(id StreamID) bool {
	args := m.Called(id)
	return args.Bool(0)
}
