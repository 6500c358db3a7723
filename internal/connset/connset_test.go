package connset

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu     sync.Mutex
	sent   [][]byte
	fail   bool
	closed bool
}

func (c *fakeConn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("send failed")
	}
	c.sent = append(c.sent, data)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) RemoteAddr() string { return "fake" }

func (c *fakeConn) sentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func TestAddRespectsCap(t *testing.T) {
	s := New("u", 2)
	require.True(t, s.Add(&fakeConn{}))
	require.True(t, s.Add(&fakeConn{}))
	assert.False(t, s.Add(&fakeConn{}))
	assert.Equal(t, 2, s.ConnectionCount())
}

func TestZeroCapMeansUnlimited(t *testing.T) {
	s := New("u", 0)
	for i := 0; i < 10; i++ {
		require.True(t, s.Add(&fakeConn{}))
	}
	assert.Equal(t, 10, s.ConnectionCount())
}

func TestBroadcastReachesAllConnections(t *testing.T) {
	s := New("u", 0)
	a, b := &fakeConn{}, &fakeConn{}
	s.Add(a)
	s.Add(b)

	s.Broadcast(map[string]string{"type": "status"})

	assert.Equal(t, 1, a.sentCount())
	assert.Equal(t, 1, b.sentCount())
}

func TestBroadcastRemovesFailedConnection(t *testing.T) {
	s := New("u", 0)
	ok, bad := &fakeConn{}, &fakeConn{fail: true}
	s.Add(ok)
	s.Add(bad)

	s.Broadcast(map[string]string{"type": "status"})

	assert.Equal(t, 1, s.ConnectionCount())
	assert.Equal(t, 1, ok.sentCount())

	// The failed connection is gone; further broadcasts reach only the
	// healthy one.
	s.Broadcast(map[string]string{"type": "status"})
	assert.Equal(t, 2, ok.sentCount())
}

func TestRemoveIsIdempotent(t *testing.T) {
	s := New("u", 0)
	c := &fakeConn{}
	s.Add(c)
	s.Remove(c)
	s.Remove(c)
	assert.True(t, s.IsEmpty())
}

func TestDrainClosesEverything(t *testing.T) {
	s := New("u", 0)
	a, b := &fakeConn{}, &fakeConn{}
	s.Add(a)
	s.Add(b)

	s.Drain()

	assert.True(t, s.IsEmpty())
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}

func TestSendToUnicasts(t *testing.T) {
	s := New("u", 0)
	a, b := &fakeConn{}, &fakeConn{}
	s.Add(a)
	s.Add(b)

	require.NoError(t, s.SendTo(a, map[string]string{"type": "init"}))

	assert.Equal(t, 1, a.sentCount())
	assert.Equal(t, 0, b.sentCount())
}
