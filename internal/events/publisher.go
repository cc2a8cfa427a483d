package events

import (
	"context"
	"log"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"

	"frontdesk/internal/metrics"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Publisher is the outbound boundary of the core. Implementations must not
// drop an event silently; one retry is acceptable, an error return lets the
// caller decide.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// Emit publishes a transition event after the state change has already
// committed. The change never rolls back over a lost event, so a failure is
// logged and counted rather than returned; the Redis outbox keeps catch-up
// readers whole when only the live broadcast failed.
func Emit(ctx context.Context, pub Publisher, evt Event) {
	if err := pub.Publish(ctx, evt); err != nil {
		metrics.EventPublishFailures.Inc()
		log.Printf("event publish failed kind=%s entity=%s: %v", evt.Kind, evt.EntityID, err)
	}
}

// InMemory fans events out over channels. Used in dev and tests; it also
// serves as the subscriber end for same-process dashboards.
type InMemory struct {
	mu   sync.Mutex
	seqs map[string]uint64
	subs map[string][]chan Event
	log  []Event
}

// NewInMemory creates an in-process publisher.
func NewInMemory() *InMemory {
	return &InMemory{
		seqs: make(map[string]uint64),
		subs: make(map[string][]chan Event),
	}
}

// Publish assigns the per-entity sequence and delivers to all subscribers of
// the event's channel. Delivery never blocks the caller past a full buffer;
// a slow subscriber gets the event again from the log.
func (p *InMemory) Publish(_ context.Context, evt Event) error {
	p.mu.Lock()
	p.seqs[evt.EntityID]++
	evt.Seq = p.seqs[evt.EntityID]
	p.log = append(p.log, evt)
	subs := append([]chan Event(nil), p.subs[evt.Channel]...)
	p.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- evt:
		default:
		}
	}
	return nil
}

// Subscribe returns a buffered channel of events for one channel name. A
// consumer that falls behind the buffer misses live deliveries and has to
// catch up from Log.
func (p *InMemory) Subscribe(channel string) <-chan Event {
	ch := make(chan Event, 64)
	p.mu.Lock()
	p.subs[channel] = append(p.subs[channel], ch)
	p.mu.Unlock()
	return ch
}

// Log returns a copy of everything published so far, in publish order.
func (p *InMemory) Log() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.log...)
}

// RedisPublisher broadcasts over Redis pub/sub and keeps a bounded outbox
// list per channel so a dashboard reconnecting can replay what it missed.
type RedisPublisher struct {
	client    *redis.Client
	keyPrefix string
	outboxLen int64
}

// NewRedisPublisher builds a publisher over an existing client.
func NewRedisPublisher(client *redis.Client, keyPrefix string) *RedisPublisher {
	if keyPrefix == "" {
		keyPrefix = "frontdesk"
	}
	return &RedisPublisher{client: client, keyPrefix: keyPrefix, outboxLen: 1024}
}

// Publish assigns the per-entity sequence via INCR, writes the outbox, then
// PUBLISHes. The outbox write comes first so a failed broadcast still leaves
// a record for catch-up readers; the broadcast itself gets one retry.
func (p *RedisPublisher) Publish(ctx context.Context, evt Event) error {
	seq, err := p.client.Incr(ctx, p.keyPrefix+":seq:"+evt.EntityID).Result()
	if err != nil {
		return err
	}
	evt.Seq = uint64(seq)

	body, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	outbox := p.keyPrefix + ":outbox:" + evt.Channel
	pipe := p.client.Pipeline()
	pipe.RPush(ctx, outbox, body)
	pipe.LTrim(ctx, outbox, -p.outboxLen, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	channel := p.keyPrefix + ":events:" + evt.Channel
	if err := p.client.Publish(ctx, channel, body).Err(); err != nil {
		if err = p.client.Publish(ctx, channel, body).Err(); err != nil {
			return err
		}
	}
	return nil
}

// Replay returns up to n of the most recent events on a channel, oldest
// first, for subscribers catching up after a reconnect.
func (p *RedisPublisher) Replay(ctx context.Context, channel string, n int64) ([]Event, error) {
	raw, err := p.client.LRange(ctx, p.keyPrefix+":outbox:"+channel, -n, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Event, 0, len(raw))
	for _, item := range raw {
		var evt Event
		if err := json.Unmarshal([]byte(item), &evt); err != nil {
			continue
		}
		out = append(out, evt)
	}
	return out, nil
}
