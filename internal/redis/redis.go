package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const pingTimeout = 2 * time.Second

// Client is the connection shared by the session store and the event hub.
type Client struct {
	*goredis.Client
	addr string
}

type Options struct {
	Addr     string
	Password string
	DB       int
}

// New connects to Redis and fails unless it answers a PING.
func New(ctx context.Context, opts Options) (*Client, error) {
	c := &Client{
		Client: goredis.NewClient(&goredis.Options{
			Addr:     opts.Addr,
			Password: opts.Password,
			DB:       opts.DB,
		}),
		addr: opts.Addr,
	}

	if err := c.Healthy(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// Healthy pings the server within pingTimeout.
func (c *Client) Healthy(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := c.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping %s: %w", c.addr, err)
	}
	return nil
}
