package realtime

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"boardsync/domain"
)

// Bridge fans events out across server replicas: Publish writes the
// envelope to a Redis channel and every replica's subscriber loop delivers
// it to its local hub. With the bridge in place the in-process hub only
// ever sees events through Deliver.
type Bridge struct {
	rc      *redis.Client
	channel string
	logger  *log.Logger
}

func NewBridge(rc *redis.Client, channel string, logger *log.Logger) *Bridge {
	return &Bridge{rc: rc, channel: channel, logger: logger}
}

// Publish implements domain.Publisher. Fire-and-forget: a Redis failure is
// logged and the event is lost, matching the no-retry delivery contract.
func (b *Bridge) Publish(boardID string, kind domain.EventKind, data any) {
	env, err := NewEnvelope(boardID, kind, data)
	if err != nil {
		b.logger.WithFields(log.Fields{"board": boardID, "event": kind}).Errorf("encode event: %v", err)
		return
	}
	payload, err := sonic.Marshal(env)
	if err != nil {
		b.logger.WithFields(log.Fields{"board": boardID, "event": kind}).Errorf("encode envelope: %v", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := b.rc.Publish(ctx, b.channel, payload).Err(); err != nil {
		b.logger.WithFields(log.Fields{"board": boardID, "event": kind}).Errorf("publish event: %v", err)
	}
}

// Run subscribes to the event channel and delivers incoming envelopes to
// the hub until ctx is cancelled, reconnecting if the subscription drops.
func (b *Bridge) Run(ctx context.Context, hub *Hub) {
	for {
		sub := b.rc.Subscribe(ctx, b.channel)
		ch := sub.Channel()
	recv:
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break recv
				}
				var env domain.Envelope
				if err := sonic.Unmarshal([]byte(msg.Payload), &env); err != nil {
					b.logger.Errorf("unable to parse event envelope: %v", err)
					continue
				}
				hub.Deliver(env)
			}
		}
		_ = sub.Close()
		if ctx.Err() != nil {
			return
		}
		b.logger.Error("event subscription closed, reconnecting")
		time.Sleep(time.Second)
	}
}
