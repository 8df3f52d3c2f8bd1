package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"portfolio-service/internal/logger"

	"github.com/redis/go-redis/v9"
)

const (
	EventsChannel = "session:events"

	subscriptionBuffer = 16

	subscribeRetryMin = 100 * time.Millisecond
	subscribeRetryMax = 5 * time.Second
)

var ErrHubClosed = errors.New("session: event hub closed")

type EventKind string

const (
	EventSignedIn       EventKind = "SIGNED_IN"
	EventSignedOut      EventKind = "SIGNED_OUT"
	EventTokenRefreshed EventKind = "TOKEN_REFRESHED"
)

// Event announces that the session bound to a client changed.
// Session is nil when the client no longer has a session.
type Event struct {
	Kind     EventKind `json:"kind"`
	ClientID string    `json:"client_id"`
	Session  *Session  `json:"session,omitempty"`
	At       time.Time `json:"at"`
}

// Hub fans session events out to the subscribers of each client.
//
// With a Redis client, Publish goes through the EventsChannel pub/sub
// channel and Run dispatches what Redis delivers, so every process sees
// every event in the order Redis accepted them. Without one, Publish
// dispatches in-process.
type Hub struct {
	rdb       *redis.Client
	ready     chan struct{}
	readyOnce sync.Once
	retryMin  time.Duration
	retryMax  time.Duration

	mu     sync.RWMutex
	subs   map[string]map[*Subscription]struct{}
	closed bool
}

func NewHub(rdb *redis.Client) *Hub {
	h := &Hub{
		rdb:      rdb,
		ready:    make(chan struct{}),
		retryMin: subscribeRetryMin,
		retryMax: subscribeRetryMax,
		subs:     make(map[string]map[*Subscription]struct{}),
	}
	if rdb == nil {
		close(h.ready)
	}
	return h
}

// Ready is closed once the hub receives published events.
func (h *Hub) Ready() <-chan struct{} {
	return h.ready
}

// Run consumes the Redis channel until ctx is cancelled. A failed or
// lost subscription is retried with capped exponential backoff, so the
// hub never stops listening while the process serves.
func (h *Hub) Run(ctx context.Context) error {
	if h.rdb == nil {
		<-ctx.Done()
		return nil
	}

	backoff := h.retryMin
	for {
		subscribed, err := h.listen(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if subscribed {
			backoff = h.retryMin
		}

		logger.Warn("session event subscription lost, retrying", map[string]any{
			"channel":  EventsChannel,
			"error":    err,
			"retry_in": backoff.String(),
		})

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, h.retryMax)
	}
}

// listen holds one subscription until it fails or ctx ends. It reports
// whether the subscription was established.
func (h *Hub) listen(ctx context.Context) (bool, error) {
	ps := h.rdb.Subscribe(ctx, EventsChannel)
	defer ps.Close()

	if _, err := ps.Receive(ctx); err != nil {
		return false, fmt.Errorf("session: subscribe %s: %w", EventsChannel, err)
	}
	h.readyOnce.Do(func() { close(h.ready) })

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return true, ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return true, fmt.Errorf("session: subscription to %s closed", EventsChannel)
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				logger.Warn("dropping malformed session event", map[string]any{
					"error": err,
				})
				continue
			}
			h.dispatch(ev)
		}
	}
}

func (h *Hub) Publish(ctx context.Context, ev Event) error {
	if ev.ClientID == "" {
		return fmt.Errorf("session: event without client_id")
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	if h.rdb == nil {
		h.dispatch(ev)
		return nil
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("session: failed to marshal event: %w", err)
	}
	return h.rdb.Publish(ctx, EventsChannel, data).Err()
}

// Subscribe registers a listener for clientID's events.
func (h *Hub) Subscribe(clientID string) (*Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}

	sub := &Subscription{
		hub:      h,
		clientID: clientID,
		ch:       make(chan Event, subscriptionBuffer),
	}
	set, ok := h.subs[clientID]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[clientID] = set
	}
	set[sub] = struct{}{}
	return sub, nil
}

// Subscribers returns the number of live subscriptions for clientID.
func (h *Hub) Subscribers(clientID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[clientID])
}

// Close ends every subscription. Further Subscribe calls fail.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for clientID, set := range h.subs {
		for sub := range set {
			close(sub.ch)
		}
		delete(h.subs, clientID)
	}
}

func (h *Hub) dispatch(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs[ev.ClientID] {
		sub.deliver(ev)
	}
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.subs[sub.clientID]
	if !ok {
		return
	}
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subs, sub.clientID)
	}
	close(sub.ch)
}

// Subscription is one listener's view of a client's session events.
type Subscription struct {
	hub      *Hub
	clientID string
	ch       chan Event
	once     sync.Once
}

// Events yields events in publish order. The channel is closed by
// Unsubscribe or when the hub closes.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Unsubscribe releases the subscription. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.hub.remove(s)
	})
}

// deliver never blocks the hub. When the buffer is full the oldest
// pending event is dropped, so the newest state always gets through.
// Callers hold the hub read lock, which keeps ch open.
func (s *Subscription) deliver(ev Event) {
	for {
		select {
		case s.ch <- ev:
			return
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}
