package wtecho

import (
	"github.com/OkutaniDaichi0106/gowtecho/wtecho/envelope"
	"github.com/stretchr/testify/mock"
)

var _ envelope.KeyProvider = (*MockKeyProvider)(nil)

// MockKeyProvider is a mock implementation of envelope.KeyProvider using testify/mock
type MockKeyProvider struct {
	mock.Mock
}

func (m *MockKeyProvider) Key(info envelope.KeyInfo) ([]byte, error) {
	args := m.Called(info)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}
