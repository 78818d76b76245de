package webtransportgo

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextReadSize(t *testing.T) {
	tests := map[string]struct {
		size   int
		n      int
		expect int
	}{
		"full small read grows":  {size: 1 << 10, n: 1 << 10, expect: 1 << 12},
		"full middle read grows": {size: 1 << 12, n: 1 << 12, expect: 1 << 14},
		"full large read stays":  {size: 1 << 14, n: 1 << 14, expect: 1 << 14},
		"partial read stays":     {size: 1 << 12, n: 2000, expect: 1 << 12},
		"short read shrinks":     {size: 1 << 14, n: 100, expect: 1 << 12},
		"short small read stays": {size: 1 << 10, n: 0, expect: 1 << 10},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.expect, nextReadSize(tt.size, tt.n))
		})
	}
}

func TestServerConn_ReadStream_LargeBody(t *testing.T) {
	_, sess := newServingConn(t, nil)

	sess.uniStreams <- newFakeStream(2, strings.Repeat("x", 50000))

	assert.Eventually(t, func() bool {
		opened := sess.openedStreams()
		if len(opened) != 1 {
			return false
		}
		_, closed := opened[0].result()
		return closed
	}, time.Second, 5*time.Millisecond)

	written, _ := sess.openedStreams()[0].result()
	assert.Equal(t, "50000", written)
}
