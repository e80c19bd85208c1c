package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Invalidation topics. A client receiving one re-fetches that list.
const (
	TopicAuthors = "authors"
	TopicBooks   = "books"
)

// Event is the websocket payload published after a successful mutation.
type Event struct {
	Topic string `json:"topic"`
}

const (
	subscriberBuffer = 16
	wsWriteWait      = 10 * time.Second
	wsPongWait       = 60 * time.Second
	wsPingPeriod     = wsPongWait * 9 / 10
)

type subscriber struct {
	events chan Event
}

// Hub fans invalidation events out to each user's websocket subscribers.
type Hub struct {
	mu      sync.Mutex
	subs    map[string]map[*subscriber]struct{}
	metrics *Metrics
}

// NewHub creates an empty hub.
func NewHub(m *Metrics) *Hub {
	return &Hub{subs: make(map[string]map[*subscriber]struct{}), metrics: m}
}

func (h *Hub) subscribe(userID string) *subscriber {
	sub := &subscriber{events: make(chan Event, subscriberBuffer)}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[*subscriber]struct{})
	}
	h.subs[userID][sub] = struct{}{}
	h.metrics.AddSubscribers(1)
	return sub
}

func (h *Hub) unsubscribe(userID string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[userID][sub]; !ok {
		return
	}
	delete(h.subs[userID], sub)
	if len(h.subs[userID]) == 0 {
		delete(h.subs, userID)
	}
	h.metrics.AddSubscribers(-1)
}

// Publish delivers topic to every subscriber of userID. Slow subscribers
// whose buffer is full miss the event; the next one still triggers a
// re-fetch.
func (h *Hub) Publish(userID, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var delivered int64
	for sub := range h.subs[userID] {
		select {
		case sub.events <- Event{Topic: topic}:
			delivered++
		default:
		}
	}
	h.metrics.RecordEvents(delivered)
}

// Subscribers returns the number of live subscribers for userID.
func (h *Hub) Subscribers(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[userID])
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// handleEvents handles GET /v1/events by upgrading to a websocket and
// streaming the user's invalidation events until either side closes.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	uid := currentUserID(r)
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logFor(r.Context()).Warn("websocket upgrade", "err", err)
		return
	}
	defer conn.Close()

	sub := s.hub.subscribe(uid)
	defer s.hub.unsubscribe(uid, sub)

	// The read loop only services control frames; it ends when the client goes away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case <-s.done:
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(wsWriteWait))
			return
		case ev := <-sub.events:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				logFor(r.Context()).Debug("websocket write", "err", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}

// publish records a successful mutation and notifies the user's subscribers.
func (s *Server) publish(r *http.Request, topic string) {
	s.metrics.RecordMutation()
	s.hub.Publish(currentUserID(r), topic)
}
