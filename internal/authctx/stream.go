package authctx

import (
	"io"
	"net/http"
	"time"

	"portfolio-service/internal/logger"
	"portfolio-service/internal/session"

	"github.com/gin-gonic/gin"
)

const heartbeatInterval = 25 * time.Second

// StatePayload is the data of the SSE events sent by Stream.
type StatePayload struct {
	State  string `json:"state"`
	UserID string `json:"user_id,omitempty"`
	Email  string `json:"email,omitempty"`
}

func payloadOf(v Value) StatePayload {
	if !v.Authenticated() {
		return StatePayload{State: StateAnonymous.String()}
	}
	return StatePayload{
		State:  StateAuthenticated.String(),
		UserID: v.User.ID,
		Email:  v.User.Email,
	}
}

// Stream keeps an auth context mounted for as long as a browser tab is
// open. It sends a "ready" event with the resolved state, then one
// "session" event for every applied session change, which tells the page
// to re-render its navigation.
func Stream(storeFor StoreFor, cookies session.CookieOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID, err := session.EnsureClientID(c.Writer, c.Request, cookies)
		if err != nil {
			logger.Error("failed to issue client id", map[string]any{
				"error": err,
			})
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}

		changes := make(chan Value, 1)
		ctx := c.Request.Context()

		p, err := Mount(ctx, storeFor(clientID), WithOnChange(func(v Value) {
			offer(changes, v)
		}))
		if err != nil {
			logger.Error("failed to mount auth context", map[string]any{
				"client_id": clientID,
				"error":     err,
			})
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		defer p.Unmount()

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		c.SSEvent("ready", payloadOf(p.Value()))
		c.Writer.Flush()

		heartbeat := time.NewTicker(heartbeatInterval)
		defer heartbeat.Stop()

		c.Stream(func(w io.Writer) bool {
			select {
			case <-ctx.Done():
				return false
			case v := <-changes:
				c.SSEvent("session", payloadOf(v))
				return true
			case <-heartbeat.C:
				c.SSEvent("ping", "")
				return true
			}
		})
	}
}

// offer keeps only the newest pending value.
func offer(ch chan Value, v Value) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
