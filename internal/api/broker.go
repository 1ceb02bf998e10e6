package api

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"drinksmenu/internal/model"
)

// Event types published on the menu change feed.
const (
	EventDrinkCreated = "drink.created"
	EventDrinkUpdated = "drink.updated"
	EventDrinkDeleted = "drink.deleted"
)

// DrinkEvent is one change to the menu. Drink is nil for deletions.
type DrinkEvent struct {
	ID      string            `json:"id"`
	Type    string            `json:"type"`
	DrinkID int64             `json:"drinkId"`
	Drink   *model.ShortDrink `json:"drink,omitempty"`
	TS      time.Time         `json:"ts"`
}

func newDrinkEvent(typ string, id int64, drink *model.ShortDrink) DrinkEvent {
	return DrinkEvent{ID: uuid.NewString(), Type: typ, DrinkID: id, Drink: drink, TS: time.Now().UTC()}
}

// EventBroker fans menu events out to live subscribers.
type EventBroker interface {
	Subscribe(ctx context.Context) (chan DrinkEvent, error)
	Unsubscribe(ch chan DrinkEvent)
	Publish(evt DrinkEvent)
	Close() error
}

const subscriberBuffer = 16

// Broker is the in-process EventBroker.
type Broker struct {
	mu     sync.Mutex
	subs   map[chan DrinkEvent]struct{}
	closed bool
}

func NewBroker() *Broker {
	return &Broker{subs: map[chan DrinkEvent]struct{}{}}
}

func (b *Broker) Subscribe(ctx context.Context) (chan DrinkEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ch := make(chan DrinkEvent, subscriberBuffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, nil
	}
	b.subs[ch] = struct{}{}
	return ch, nil
}

// Unsubscribe removes and closes ch. Unknown or already removed channels are ignored.
func (b *Broker) Unsubscribe(ch chan DrinkEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
}

// Publish never blocks; a subscriber with a full buffer misses the event.
func (b *Broker) Publish(evt DrinkEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

// Close ends every subscription.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		close(ch)
	}
	b.subs = map[chan DrinkEvent]struct{}{}
	b.closed = true
	return nil
}
