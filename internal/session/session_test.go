package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestArena_RegisterAndLookup(t *testing.T) {
	a := NewArena()
	sink := NewSink()
	s := a.Register(7, Config{ModelID: "llama-3-chat"}, sink)
	require.Equal(t, uint64(7), s.ID)

	got, ok := a.Lookup(7)
	require.True(t, ok)
	require.Same(t, s, got)

	_, ok = a.Lookup(8)
	require.False(t, ok)
}

func TestArena_Release(t *testing.T) {
	a := NewArena()
	a.Register(1, Config{}, NewSink())
	a.Release(1)
	_, ok := a.Lookup(1)
	require.False(t, ok)
}

func TestSession_Cancel(t *testing.T) {
	s := &Session{ID: 1}
	require.False(t, s.Cancelled())
	s.Cancel()
	require.True(t, s.Cancelled())
}

func TestSink_BroadcastToMultipleSubscribers(t *testing.T) {
	sink := NewSink()
	chA, unsubA := sink.Subscribe(4)
	defer unsubA()
	chB, unsubB := sink.Subscribe(4)
	defer unsubB()

	sink.Broadcast("hello")

	select {
	case tok := <-chA:
		require.Equal(t, "hello", tok)
	case <-time.After(time.Second):
		t.Fatal("subscriber A did not receive token")
	}
	select {
	case tok := <-chB:
		require.Equal(t, "hello", tok)
	case <-time.After(time.Second):
		t.Fatal("subscriber B did not receive token")
	}
}

func TestSink_BroadcastIsLossyWhenFull(t *testing.T) {
	sink := NewSink()
	ch, unsub := sink.Subscribe(1)
	defer unsub()

	sink.Broadcast("a")
	sink.Broadcast("b") // dropped, buffer already holds "a"

	require.Equal(t, "a", <-ch)
}

func TestSink_CloseClosesSubscriberChannels(t *testing.T) {
	sink := NewSink()
	ch, _ := sink.Subscribe(1)
	sink.Close()

	_, ok := <-ch
	require.False(t, ok)
}
