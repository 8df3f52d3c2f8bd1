package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		require.True(t, ok, "subscription closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestHubDeliversOnlyToMatchingClient(t *testing.T) {
	hub := NewHub(nil)
	ctx := context.Background()

	mine, err := hub.Subscribe("client-a")
	require.NoError(t, err)
	other, err := hub.Subscribe("client-b")
	require.NoError(t, err)

	require.NoError(t, hub.Publish(ctx, Event{Kind: EventSignedIn, ClientID: "client-a"}))

	ev := receive(t, mine)
	assert.Equal(t, EventSignedIn, ev.Kind)
	assert.False(t, ev.At.IsZero())
	assert.Len(t, other.Events(), 0)
}

func TestHubPreservesOrder(t *testing.T) {
	hub := NewHub(nil)
	ctx := context.Background()
	sub, err := hub.Subscribe("c")
	require.NoError(t, err)

	kinds := []EventKind{EventSignedIn, EventTokenRefreshed, EventSignedOut}
	for _, k := range kinds {
		require.NoError(t, hub.Publish(ctx, Event{Kind: k, ClientID: "c"}))
	}

	for _, want := range kinds {
		assert.Equal(t, want, receive(t, sub).Kind)
	}
}

func TestHubDropsOldestWhenSubscriberLags(t *testing.T) {
	hub := NewHub(nil)
	ctx := context.Background()
	sub, err := hub.Subscribe("c")
	require.NoError(t, err)

	for i := 0; i < subscriptionBuffer+5; i++ {
		require.NoError(t, hub.Publish(ctx, Event{Kind: EventTokenRefreshed, ClientID: "c"}))
	}
	require.NoError(t, hub.Publish(ctx, Event{Kind: EventSignedOut, ClientID: "c"}))

	var last Event
	for len(sub.Events()) > 0 {
		last = <-sub.Events()
	}
	assert.Equal(t, EventSignedOut, last.Kind)
}

func TestUnsubscribeClosesChannelAndIsIdempotent(t *testing.T) {
	hub := NewHub(nil)
	sub, err := hub.Subscribe("c")
	require.NoError(t, err)
	assert.Equal(t, 1, hub.Subscribers("c"))

	sub.Unsubscribe()
	sub.Unsubscribe()

	_, ok := <-sub.Events()
	assert.False(t, ok)
	assert.Equal(t, 0, hub.Subscribers("c"))

	require.NoError(t, hub.Publish(context.Background(), Event{Kind: EventSignedIn, ClientID: "c"}))
}

func TestHubCloseEndsSubscriptions(t *testing.T) {
	hub := NewHub(nil)
	sub, err := hub.Subscribe("c")
	require.NoError(t, err)

	hub.Close()
	_, ok := <-sub.Events()
	assert.False(t, ok)

	sub.Unsubscribe()
	_, err = hub.Subscribe("c")
	assert.ErrorIs(t, err, ErrHubClosed)
}

func TestPublishRequiresClientID(t *testing.T) {
	hub := NewHub(nil)
	assert.Error(t, hub.Publish(context.Background(), Event{Kind: EventSignedIn}))
}

func TestHubOverRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	hub := NewHub(rdb)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	select {
	case <-hub.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("hub never subscribed")
	}

	sub, err := hub.Subscribe("client-1")
	require.NoError(t, err)

	sess := &Session{SessionID: "sid", UserID: "user-1", ClientID: "client-1"}
	require.NoError(t, hub.Publish(ctx, Event{Kind: EventSignedIn, ClientID: "client-1", Session: sess}))
	require.NoError(t, hub.Publish(ctx, Event{Kind: EventSignedOut, ClientID: "client-1"}))

	first := receive(t, sub)
	assert.Equal(t, EventSignedIn, first.Kind)
	require.NotNil(t, first.Session)
	assert.Equal(t, "user-1", first.Session.UserID)

	second := receive(t, sub)
	assert.Equal(t, EventSignedOut, second.Kind)
	assert.Nil(t, second.Session)
}

func TestHubKeepsRetryingUntilRedisIsUp(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.Close()

	hub := NewHub(rdb)
	hub.retryMin = 10 * time.Millisecond
	hub.retryMax = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	select {
	case <-hub.Ready():
		t.Fatal("hub reported ready while redis was down")
	case err := <-done:
		t.Fatalf("hub stopped while redis was down: %v", err)
	case <-time.After(300 * time.Millisecond):
	}

	require.NoError(t, mr.Restart())

	select {
	case <-hub.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("hub never subscribed after redis came back")
	}

	sub, err := hub.Subscribe("client-1")
	require.NoError(t, err)
	require.NoError(t, hub.Publish(ctx, Event{Kind: EventSignedOut, ClientID: "client-1"}))
	assert.Equal(t, EventSignedOut, receive(t, sub).Kind)
}

func TestHubRunStopsOnCancel(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.Close()

	hub := NewHub(rdb)
	hub.retryMin = 10 * time.Millisecond
	hub.retryMax = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
