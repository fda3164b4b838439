package library

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifierExpires(t *testing.T) {
	n := NewNotifier(20*time.Millisecond, nil)
	n.Success("saved")

	msg, ok := n.Current()
	require.True(t, ok)
	assert.Equal(t, Message{Text: "saved", Kind: MessageSuccess}, msg)

	assert.Eventually(t, func() bool {
		_, ok := n.Current()
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestNotifierNewerMessageOutlivesOlderTimer(t *testing.T) {
	n := NewNotifier(200*time.Millisecond, nil)
	n.Error("first")
	time.Sleep(120 * time.Millisecond)
	n.Success("second")

	// The first timer would have fired by now.
	time.Sleep(100 * time.Millisecond)
	msg, ok := n.Current()
	require.True(t, ok)
	assert.Equal(t, "second", msg.Text)

	assert.Eventually(t, func() bool {
		_, ok := n.Current()
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestNotifierDismissAndCallbacks(t *testing.T) {
	var (
		mu     sync.Mutex
		events []bool
	)
	n := NewNotifier(time.Hour, func(_ Message, visible bool) {
		mu.Lock()
		events = append(events, visible)
		mu.Unlock()
	})
	n.Error("boom")
	n.Dismiss()
	n.Dismiss()

	_, ok := n.Current()
	assert.False(t, ok)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []bool{true, false}, events)
}

func TestMessageKindString(t *testing.T) {
	assert.Equal(t, "success", MessageSuccess.String())
	assert.Equal(t, "error", MessageError.String())
}
