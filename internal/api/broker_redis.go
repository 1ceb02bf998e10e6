package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"drinksmenu/internal/metrics"
)

const redisEventChannel = "drinks:events"

// RedisBroker implements EventBroker over Redis Pub/Sub so every replica
// sees the changes made through the others.
type RedisBroker struct {
	rdb *redis.Client
	log *logrus.Entry

	mu   sync.Mutex
	subs map[chan DrinkEvent]*redis.PubSub
}

// NewRedisBroker connects to url (redis://...) and checks the server answers.
func NewRedisBroker(ctx context.Context, url string, logger *logrus.Entry) (*RedisBroker, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisBroker{rdb: rdb, log: logger, subs: map[chan DrinkEvent]*redis.PubSub{}}, nil
}

func (b *RedisBroker) Subscribe(ctx context.Context) (chan DrinkEvent, error) {
	ps := b.rdb.Subscribe(ctx, redisEventChannel)
	// wait for the subscription to be confirmed
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}
	ch := make(chan DrinkEvent, subscriberBuffer)
	b.mu.Lock()
	b.subs[ch] = ps
	b.mu.Unlock()

	go func() {
		defer close(ch)
		for msg := range ps.Channel() {
			var evt DrinkEvent
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
				b.log.WithError(err).Warn("drop undecodable drink event")
				continue
			}
			select {
			case ch <- evt:
			default:
			}
		}
	}()
	return ch, nil
}

// Unsubscribe closes the Pub/Sub connection behind ch; ch is closed once
// the relay goroutine drains.
func (b *RedisBroker) Unsubscribe(ch chan DrinkEvent) {
	b.mu.Lock()
	ps, ok := b.subs[ch]
	delete(b.subs, ch)
	b.mu.Unlock()
	if ok {
		_ = ps.Close()
	}
}

func (b *RedisBroker) Publish(evt DrinkEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	fields := logrus.Fields{"event_id": evt.ID, "type": evt.Type, "drink_id": evt.DrinkID}
	data, err := json.Marshal(evt)
	if err != nil {
		metrics.EventPublishFailures.Inc()
		b.log.WithFields(fields).WithError(err).Warn("encode drink event")
		return
	}
	if err := b.rdb.Publish(ctx, redisEventChannel, data).Err(); err != nil {
		metrics.EventPublishFailures.Inc()
		b.log.WithFields(fields).WithError(err).Warn("publish drink event")
	}
}

func (b *RedisBroker) Close() error {
	b.mu.Lock()
	var errs []error
	for ch, ps := range b.subs {
		errs = append(errs, ps.Close())
		delete(b.subs, ch)
	}
	b.mu.Unlock()
	errs = append(errs, b.rdb.Close())
	return errors.Join(errs...)
}
