package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/quotesync/quotesync/internal/logging"
)

// natsPublisher is the subset of *nats.Conn used here.
type natsPublisher interface {
	Publish(subject string, data []byte) error
}

// NATS publishes each event as JSON on a subject.
type NATS struct {
	Subject string
	pub     natsPublisher
	conn    *nats.Conn
}

// DialNATS connects to url and returns a publisher for subject.
func DialNATS(url, subject string) (*NATS, error) {
	nc, err := nats.Connect(url,
		nats.Name("quotesync"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logging.Get().Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logging.Get().Info().Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return &NATS{Subject: subject, pub: nc, conn: nc}, nil
}

func (n *NATS) Name() string { return "NATS" }
func (n *NATS) Send(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return n.pub.Publish(n.Subject, b)
}

// Close drains the connection so buffered publishes are flushed.
func (n *NATS) Close() error {
	if n.conn == nil {
		return nil
	}
	return n.conn.Drain()
}

// redisPublisher is the subset of *redis.Client used here.
type redisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Redis publishes each event as JSON on a pub/sub channel.
type Redis struct {
	Channel string
	pub     redisPublisher
	client  *redis.Client
}

// DialRedis connects to addr and verifies the connection with PING.
func DialRedis(ctx context.Context, addr, password string, db int, channel string) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}
	return &Redis{Channel: channel, pub: rdb, client: rdb}, nil
}

func (r *Redis) Name() string { return "Redis" }
func (r *Redis) Send(ctx context.Context, ev Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return r.pub.Publish(ctx, r.Channel, b).Err()
}

func (r *Redis) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}
