package auth

import (
	"context"

	"portfolio-service/internal/session"
)

// Client is the session store as seen by one browser client: the view an
// auth context is mounted against.
type Client struct {
	service  *Service
	clientID string
}

func (c *Client) ClientID() string {
	return c.clientID
}

func (c *Client) GetSession(ctx context.Context) (*session.Session, error) {
	return c.service.CurrentSession(ctx, c.clientID)
}

func (c *Client) SignOut(ctx context.Context) error {
	return c.service.SignOut(ctx, c.clientID)
}

func (c *Client) OnSessionChange(ctx context.Context) (*session.Subscription, error) {
	return c.service.OnSessionChange(c.clientID)
}
