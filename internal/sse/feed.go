package sse

import (
	"context"
	"sync"

	"ms-boxoffice/internal/models"
)

const clientBuffer = 16

// Feed fans reservation events out to the browsers watching a session's
// seat map. Subscribers are keyed by "show/session".
type Feed struct {
	mu      sync.RWMutex
	clients map[string][]chan models.ReservationEvent
}

func NewFeed() *Feed {
	return &Feed{clients: make(map[string][]chan models.ReservationEvent)}
}

func FeedKey(showID, sessionID string) string {
	return models.ReservationEvent{ShowID: showID, SessionID: sessionID}.FeedKey()
}

// Subscribe registers a client until ctx is done; the channel is closed then.
func (f *Feed) Subscribe(ctx context.Context, key string) <-chan models.ReservationEvent {
	ch := make(chan models.ReservationEvent, clientBuffer)

	f.mu.Lock()
	f.clients[key] = append(f.clients[key], ch)
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.remove(key, ch)
	}()
	return ch
}

// Publish never blocks: a client whose buffer is full misses the event and
// picks up the state on its next seat map fetch.
func (f *Feed) Publish(_ context.Context, evt models.ReservationEvent) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for _, ch := range f.clients[evt.FeedKey()] {
		select {
		case ch <- evt:
		default:
		}
	}
	return nil
}

func (f *Feed) Subscribers(key string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.clients[key])
}

func (f *Feed) remove(key string, ch chan models.ReservationEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()

	clients := f.clients[key]
	for i, c := range clients {
		if c == ch {
			f.clients[key] = append(clients[:i], clients[i+1:]...)
			close(ch)
			break
		}
	}
	if len(f.clients[key]) == 0 {
		delete(f.clients, key)
	}
}
