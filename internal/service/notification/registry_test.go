package notification

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeChannel records sends and can be told to fail.
type fakeChannel struct {
	mu     sync.Mutex
	sent   [][]byte
	fail   bool
	closed bool
}

func (c *fakeChannel) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("broken pipe")
	}
	c.sent = append(c.sent, payload)
	return nil
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeChannel) sentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func TestRegistrySendToConnectedUser(t *testing.T) {
	r := NewRegistry(nil, nil)
	ch := &fakeChannel{}
	r.Connect("user-1", ch)

	assert.True(t, r.Send("user-1", map[string]string{"hello": "world"}))
	assert.Equal(t, 1, ch.sentCount())
}

func TestRegistrySendToOfflineUser(t *testing.T) {
	r := NewRegistry(nil, nil)
	assert.False(t, r.Send("nobody", "message"))
}

func TestRegistryLastConnectionWins(t *testing.T) {
	r := NewRegistry(nil, nil)
	old := &fakeChannel{}
	replacement := &fakeChannel{}

	r.Connect("user-1", old)
	r.Connect("user-1", replacement)

	assert.True(t, old.closed, "replaced channel must be closed")
	require.True(t, r.Send("user-1", "hi"))
	assert.Zero(t, old.sentCount())
	assert.Equal(t, 1, replacement.sentCount())
}

func TestRegistryEvictsOnSendFailure(t *testing.T) {
	r := NewRegistry(nil, nil)
	ch := &fakeChannel{fail: true}
	r.Connect("user-1", ch)

	assert.False(t, r.Send("user-1", "hi"))
	assert.False(t, r.IsOnline("user-1"))
	assert.True(t, ch.closed)
}

func TestRegistryDisconnectIdempotent(t *testing.T) {
	r := NewRegistry(nil, nil)
	r.Connect("user-1", &fakeChannel{})

	r.Disconnect("user-1")
	r.Disconnect("user-1")
	assert.Empty(t, r.Online())
}

func TestRegistryBroadcast(t *testing.T) {
	r := NewRegistry(nil, nil)
	good := &fakeChannel{}
	bad := &fakeChannel{fail: true}
	r.Connect("user-1", good)
	r.Connect("user-2", bad)

	failed := r.Broadcast("market open", "user-1", "user-2", "user-3")
	assert.ElementsMatch(t, []string{"user-2", "user-3"}, failed)
	assert.Equal(t, 1, good.sentCount())
}

func TestRegistryStats(t *testing.T) {
	r := NewRegistry(nil, nil)
	r.Connect("user-1", &fakeChannel{})
	r.Connect("user-2", &fakeChannel{})

	stats := r.Stats()
	assert.Equal(t, 2, stats.Connected)
	assert.Contains(t, stats.Users, "user-1")
	assert.Contains(t, stats.Users, "user-2")
}
