package auth

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const redisChannelPrefix = "session:"

// RedisBroker publishes session events over Redis pub/sub so every server
// instance sees sign-ins and sign-outs. Channels are "session:<uid>".
type RedisBroker struct {
	rdb *redis.Client
	log logrus.FieldLogger
}

func NewRedisBroker(rdb *redis.Client, log logrus.FieldLogger) *RedisBroker {
	return &RedisBroker{rdb: rdb, log: log}
}

// ConnectRedis opens a client and pings it, retrying a few times.
func ConnectRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	var err error
	for i := 0; i < 5; i++ {
		if err = rdb.Ping(ctx).Err(); err == nil {
			return rdb, nil
		}
		time.Sleep(time.Second)
	}
	_ = rdb.Close()
	return nil, err
}

func channelFor(userID uint) string {
	return redisChannelPrefix + strconv.FormatUint(uint64(userID), 10)
}

func (b *RedisBroker) Publish(ctx context.Context, ev SessionEvent) error {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, channelFor(ev.UserID), payload).Err()
}

func (b *RedisBroker) Subscribe(ctx context.Context, userID uint) (<-chan SessionEvent, func()) {
	return b.forward(ctx, b.rdb.Subscribe(ctx, channelFor(userID)))
}

func (b *RedisBroker) SubscribeAll(ctx context.Context) (<-chan SessionEvent, func()) {
	return b.forward(ctx, b.rdb.PSubscribe(ctx, redisChannelPrefix+"*"))
}

func (b *RedisBroker) forward(ctx context.Context, sub *redis.PubSub) (<-chan SessionEvent, func()) {
	out := make(chan SessionEvent, subscriberBuffer)
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev SessionEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					b.log.WithError(err).WithField("channel", msg.Channel).Warn("dropping malformed session event")
					continue
				}
				select {
				case out <- ev:
				default:
				}
			}
		}
	}()
	return out, cancel
}

var (
	_ Broker = (*MemoryBroker)(nil)
	_ Broker = (*RedisBroker)(nil)
)
