package api

import (
	"net/http"
	"sync"
	"time"

	"AlphaRadar/internal/domain/models"
	"AlphaRadar/internal/service/metrics"
	applogger "AlphaRadar/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	feedBuffer     = 16
	feedPingPeriod = 45 * time.Second
	feedReadWait   = 90 * time.Second
	feedWriteWait  = 10 * time.Second
)

var feedUpgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

type feedClient struct {
	conn *websocket.Conn
	out  chan models.Snapshot
	done chan struct{}
	once sync.Once
}

func (c *feedClient) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// FeedHub pushes snapshots to websocket clients. A client that cannot keep
// up misses updates instead of blocking the scheduler.
type FeedHub struct {
	mu      sync.RWMutex
	clients map[*feedClient]struct{}
	current func() models.Snapshot
	log     *applogger.Logger
	closed  bool
}

// NewFeedHub creates a hub. current, if set, supplies the snapshot sent to
// a client right after it connects.
func NewFeedHub(current func() models.Snapshot, log *applogger.Logger) *FeedHub {
	if log == nil {
		log = applogger.Nop()
	}
	metrics.Register()
	return &FeedHub{
		clients: make(map[*feedClient]struct{}),
		current: current,
		log:     log,
	}
}

// SetCurrent sets the snapshot supplier used for newly connected clients.
func (h *FeedHub) SetCurrent(current func() models.Snapshot) {
	h.mu.Lock()
	h.current = current
	h.mu.Unlock()
}

// Broadcast queues snap for every connected client.
func (h *FeedHub) Broadcast(snap models.Snapshot) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.out <- snap:
		default:
		}
	}
}

// Clients returns the number of connected clients.
func (h *FeedHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Serve upgrades the request and streams snapshots until the client leaves.
func (h *FeedHub) Serve(c echo.Context) error {
	conn, err := feedUpgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.log.Debug("feed upgrade failed", applogger.Error(err))
		return nil
	}

	cl := &feedClient{conn: conn, out: make(chan models.Snapshot, feedBuffer), done: make(chan struct{})}
	if !h.add(cl) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(feedWriteWait))
		_ = conn.Close()
		return nil
	}
	defer h.remove(cl)

	h.mu.RLock()
	current := h.current
	h.mu.RUnlock()
	if current != nil {
		cl.out <- current()
	}
	go h.writeLoop(cl)

	// reader: only pongs and close frames are expected
	_ = conn.SetReadDeadline(time.Now().Add(feedReadWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(feedReadWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return nil
		}
	}
}

func (h *FeedHub) writeLoop(cl *feedClient) {
	ping := time.NewTicker(feedPingPeriod)
	defer ping.Stop()
	defer cl.close()

	for {
		select {
		case snap := <-cl.out:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if err := cl.conn.WriteJSON(snap); err != nil {
				return
			}
		case <-ping.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-cl.done:
			return
		}
	}
}

func (h *FeedHub) add(cl *feedClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[cl] = struct{}{}
	metrics.FeedClients.Inc()
	return true
}

func (h *FeedHub) remove(cl *feedClient) {
	h.mu.Lock()
	if _, ok := h.clients[cl]; ok {
		delete(h.clients, cl)
		metrics.FeedClients.Dec()
	}
	h.mu.Unlock()
	cl.close()
}

// Close disconnects every client and rejects new ones.
func (h *FeedHub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*feedClient, 0, len(h.clients))
	for cl := range h.clients {
		clients = append(clients, cl)
	}
	h.mu.Unlock()

	for _, cl := range clients {
		_ = cl.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(time.Second))
		cl.close()
	}
}
