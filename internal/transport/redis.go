// SPDX-License-Identifier: MIT
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fftpassthrough/internal/log"

	"github.com/go-redis/redis/v8"
)

// DefaultRedisChannel is the pub/sub channel used when none is configured.
const DefaultRedisChannel = "fftpassthrough:monitor"

const defaultRedisTimeout = 250 * time.Millisecond

// RedisOptions configures a RedisTransport.
type RedisOptions struct {
	Addr     string        // "host:port"
	Password string        // empty for no AUTH
	DB       int           // logical database
	Channel  string        // pub/sub channel, DefaultRedisChannel when empty
	Timeout  time.Duration // per-publish deadline, 250ms when zero
}

// RedisTransport publishes every message as JSON on a Redis pub/sub channel.
// The client connects lazily, so a missing server surfaces as Send errors
// rather than a construction failure.
type RedisTransport struct {
	client  *redis.Client
	channel string
	timeout time.Duration
}

// NewRedisTransport creates the client. It does not contact the server.
func NewRedisTransport(opts RedisOptions) (*RedisTransport, error) {
	if opts.Addr == "" {
		return nil, errors.New("redis transport: address must be set")
	}
	if opts.Channel == "" {
		opts.Channel = DefaultRedisChannel
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultRedisTimeout
	}

	client := redis.NewClient(&redis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: opts.Timeout,
		MaxRetries:  -1, // A dropped message is replaced by the next tick.
	})
	log.Infof("Transport: Using RedisTransport (addr %s, channel %s)", opts.Addr, opts.Channel)

	return &RedisTransport{
		client:  client,
		channel: opts.Channel,
		timeout: opts.Timeout,
	}, nil
}

// Ping checks that the server is reachable.
func (rt *RedisTransport) Ping(ctx context.Context) error {
	if err := rt.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis transport: ping: %w", err)
	}
	return nil
}

// Channel returns the pub/sub channel messages are published on.
func (rt *RedisTransport) Channel() string { return rt.channel }

// Send publishes data as JSON.
func (rt *RedisTransport) Send(data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("redis transport: encode: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), rt.timeout)
	defer cancel()
	if err := rt.client.Publish(ctx, rt.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis transport: publish: %w", err)
	}
	return nil
}

// Close closes the client and its connection pool.
func (rt *RedisTransport) Close() error {
	return rt.client.Close()
}

var _ Transport = (*RedisTransport)(nil)
