package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, c *Client) (Message, bool) {
	t.Helper()
	select {
	case msg, ok := <-c.Events():
		return msg, ok
	default:
		return Message{}, false
	}
}

func TestHub_BroadcastReachesEveryClient(t *testing.T) {
	hub := NewHub(false)
	a := hub.Subscribe("")
	b := hub.Subscribe("NCR-OTHER-B")
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, 2, hub.ClientCount())

	hub.Broadcast("lineItemUpdated", ChangeEvent{ResumeToken: 1, BranchID: "NCR-VAL-B"})

	for _, c := range []*Client{a, b} {
		msg, ok := receive(t, c)
		require.True(t, ok)
		assert.Equal(t, "lineItemUpdated", msg.Event)
		assert.Equal(t, uint64(1), msg.Data.ResumeToken)
	}
}

func TestHub_BranchScoping(t *testing.T) {
	hub := NewHub(true)
	mine := hub.Subscribe("NCR-VAL-B")
	other := hub.Subscribe("NCR-OTHER-B")
	everything := hub.Subscribe("")

	hub.Broadcast("appointmentUpdated", ChangeEvent{BranchID: "NCR-VAL-B"})

	_, ok := receive(t, mine)
	assert.True(t, ok)
	_, ok = receive(t, other)
	assert.False(t, ok)
	_, ok = receive(t, everything)
	assert.True(t, ok)

	hub.Broadcast("appointmentUpdated", ChangeEvent{})
	_, ok = receive(t, other)
	assert.True(t, ok, "events without a branch go to everyone")
}

func TestHub_SlowClientIsDisconnected(t *testing.T) {
	hub := NewHub(false)
	hub.bufferSize = 2
	slow := hub.Subscribe("")
	fast := hub.Subscribe("")

	for i := 0; i < 3; i++ {
		hub.Broadcast("lineItemUpdated", ChangeEvent{ResumeToken: uint64(i)})
		_, ok := receive(t, fast)
		require.True(t, ok)
	}

	assert.Equal(t, 1, hub.ClientCount(), "the slow client was dropped")

	var tokens []uint64
	for msg := range slow.Events() {
		tokens = append(tokens, msg.Data.ResumeToken)
	}
	assert.Equal(t, []uint64{0, 1}, tokens, "buffered events drain before the channel closes")

	hub.Unsubscribe(slow)
	hub.Broadcast("lineItemUpdated", ChangeEvent{ResumeToken: 9})
	msg, ok := receive(t, fast)
	require.True(t, ok)
	assert.Equal(t, uint64(9), msg.Data.ResumeToken)
}

func TestHub_CloseAll(t *testing.T) {
	hub := NewHub(false)
	clients := []*Client{hub.Subscribe(""), hub.Subscribe("NCR-VAL-B")}

	hub.CloseAll()
	assert.Zero(t, hub.ClientCount())
	for _, c := range clients {
		_, ok := <-c.Events()
		assert.False(t, ok)
		hub.Unsubscribe(c)
	}
}

func TestHub_Unsubscribe(t *testing.T) {
	hub := NewHub(false)
	c := hub.Subscribe("")

	hub.Unsubscribe(c)
	hub.Unsubscribe(c)
	assert.Zero(t, hub.ClientCount())

	_, ok := <-c.Events()
	assert.False(t, ok, "events channel is closed")

	hub.Broadcast("lineItemUpdated", ChangeEvent{})
}
