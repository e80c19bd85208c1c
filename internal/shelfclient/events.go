package shelfclient

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Event is an invalidation notice: the named list changed on the server.
type Event struct {
	Topic string `json:"topic"`
}

// eventsURL maps the base URL onto the websocket scheme.
func (c *Client) eventsURL() string {
	u := c.BaseURL
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/v1/events"
}

// Subscribe streams invalidation events to fn until ctx is done or the
// connection drops. It returns nil when ctx ends the subscription.
func (c *Client) Subscribe(ctx context.Context, fn func(Event)) error {
	header := http.Header{}
	if c.Session != "" {
		header.Set("Authorization", "Bearer "+c.Session)
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, c.eventsURL(), header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return ErrUnauthorized
		}
		return fmt.Errorf("dial events: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		conn.Close()
	})
	defer stop()

	for {
		var ev Event
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read event: %w", err)
		}
		fn(ev)
	}
}
