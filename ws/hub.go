package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"golang.org/x/exp/slog"

	"stakechain-explorer/db"
)

// HeadSource is the subset of the blocks repository the hub polls
type HeadSource interface {
	LastHead(ctx context.Context) (*db.HeadSummary, error)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Hub pushes new chain heads to subscribed explorer clients. It polls
// the store head on a fixed interval so clients no longer have to
// re-poll the REST endpoints themselves.
type Hub struct {
	source   HeadSource
	interval time.Duration

	mu    sync.Mutex
	conns map[*websocket.Conn]bool
	last  int64

	done chan struct{}
}

func NewHub(source HeadSource, interval time.Duration) *Hub {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	return &Hub{
		source:   source,
		interval: interval,
		conns:    make(map[*websocket.Conn]bool),
		done:     make(chan struct{}),
	}
}

// Handle upgrades the request and subscribes the connection to head pushes
func (h *Hub) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade to websocket", "error", err)
		return
	}

	h.mu.Lock()
	h.conns[conn] = true
	h.mu.Unlock()
	slog.Info("live feed subscriber connected", "remote", conn.RemoteAddr())

	go h.read(conn)
}

// read drains the connection until the client goes away
func (h *Hub) read(conn *websocket.Conn) {
	defer h.drop(conn)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if e := new(websocket.CloseError); errors.As(err, &e) {
				if e.Code == websocket.CloseNormalClosure {
					return
				}
			}
			return
		}
	}
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
	_ = conn.Close()
}

// Run polls the head until GraceClose is called
func (h *Hub) Run() {
	t := time.NewTicker(h.interval)
	defer t.Stop()

	for {
		select {
		case <-h.done:
			return
		case <-t.C:
			h.poll()
		}
	}
}

// poll fetches the stored head and broadcasts it if it advanced
func (h *Hub) poll() {
	ctx, c := context.WithTimeout(context.Background(), h.interval)
	defer c()

	head, err := h.source.LastHead(ctx)
	if err != nil {
		slog.Error("failed to poll last head", "error", err)
		return
	}
	if head == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if head.Header.Number <= h.last {
		return
	}
	h.last = head.Header.Number

	for conn := range h.conns {
		if err := conn.WriteJSON(head); err != nil {
			slog.Error("failed to push head; dropping subscriber", "error", err)
			_ = conn.Close()
			delete(h.conns, conn)
		}
	}
}

// GraceClose stops the poller and closes all subscriber connections
// with a normal close message
func (h *Hub) GraceClose() error {
	slog.Info("closing live feed")
	close(h.done)

	h.mu.Lock()
	defer h.mu.Unlock()

	var firstErr error
	for conn := range h.conns {
		err := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		if err != nil && firstErr == nil {
			firstErr = errors.Wrap(err, "failed to write close message")
		}
		_ = conn.Close()
		delete(h.conns, conn)
	}

	return firstErr
}
