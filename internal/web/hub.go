package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wolfman30/appointment-insights/internal/dashboard"
	httpmiddleware "github.com/wolfman30/appointment-insights/internal/http/middleware"
	"github.com/wolfman30/appointment-insights/internal/notify"
	"github.com/wolfman30/appointment-insights/internal/observability/metrics"
	"github.com/wolfman30/appointment-insights/internal/settings"
	"github.com/wolfman30/appointment-insights/pkg/logging"
)

// Message types pushed to live clients.
const (
	MessageModel        = "model"
	MessageTheme        = "theme"
	MessageNotification = "notification"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
	sendBuffer     = 32
)

// ErrHubClosed is returned when a message is offered after Run returned.
var ErrHubClosed = errors.New("web: hub closed")

// Message is the envelope for every live update.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ThemeUpdate is the payload of a theme message.
type ThemeUpdate struct {
	Theme settings.Theme `json:"theme"`
	Class string         `json:"class"`
}

type envelope struct {
	kind    string
	payload []byte
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Hub fans live updates out to every connected page. The latest model and
// theme are replayed to clients as they connect.
type Hub struct {
	register   chan *client
	unregister chan *client
	broadcast  chan envelope
	done       chan struct{}

	upgrader websocket.Upgrader
	logger   *logging.Logger
	metrics  *metrics.DashboardMetrics
	count    atomic.Int64
}

func NewHub(logger *logging.Logger, m *metrics.DashboardMetrics, allowedOrigins []string) *Hub {
	if logger == nil {
		logger = logging.Default()
	}
	return &Hub{
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan envelope, 64),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     httpmiddleware.NewOriginPolicy(allowedOrigins).CheckRequest,
		},
		logger:  logger,
		metrics: m,
	}
}

// Run owns the client set until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	clients := make(map[*client]struct{})
	latest := make(map[string][]byte)

	defer func() {
		close(h.done)
		for c := range clients {
			close(c.send)
		}
		h.setCount(0)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			clients[c] = struct{}{}
			for _, kind := range []string{MessageTheme, MessageModel} {
				if payload, ok := latest[kind]; ok {
					c.send <- payload
				}
			}
			h.setCount(len(clients))
			h.logger.Debug("live client registered", "client_id", c.id, "clients", len(clients))
		case c := <-h.unregister:
			if _, ok := clients[c]; ok {
				delete(clients, c)
				close(c.send)
				h.setCount(len(clients))
				h.logger.Debug("live client unregistered", "client_id", c.id, "clients", len(clients))
			}
		case env := <-h.broadcast:
			if env.kind != MessageNotification {
				latest[env.kind] = env.payload
			}
			for c := range clients {
				select {
				case c.send <- env.payload:
				default:
					h.logger.Warn("dropping slow live client", "client_id", c.id)
					delete(clients, c)
					close(c.send)
				}
			}
			h.setCount(len(clients))
		}
	}
}

func (h *Hub) setCount(n int) {
	h.count.Store(int64(n))
	h.metrics.SetLiveClients(n)
}

// Clients returns the number of connected pages.
func (h *Hub) Clients() int {
	return int(h.count.Load())
}

// Broadcast queues a message for every connected client.
func (h *Hub) Broadcast(ctx context.Context, kind string, data any) error {
	payload, err := json.Marshal(Message{Type: kind, Data: data})
	if err != nil {
		return fmt.Errorf("web: marshal %s message: %w", kind, err)
	}
	select {
	case h.broadcast <- envelope{kind: kind, payload: payload}:
		return nil
	case <-h.done:
		return ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishModel is a dashboard observer.
func (h *Hub) PublishModel(model dashboard.Model) {
	if err := h.Broadcast(context.Background(), MessageModel, model); err != nil && !errors.Is(err, ErrHubClosed) {
		h.logger.Warn("failed to publish dashboard model", "error", err)
	}
}

// ApplyTheme pushes the active theme class to every page.
func (h *Hub) ApplyTheme(theme settings.Theme) {
	update := ThemeUpdate{Theme: theme, Class: settings.Settings{Theme: theme}.ThemeClass()}
	if err := h.Broadcast(context.Background(), MessageTheme, update); err != nil && !errors.Is(err, ErrHubClosed) {
		h.logger.Warn("failed to publish theme", "error", err)
	}
}

// Notify delivers a notification to open pages. Pages only surface it when
// the browser granted notification permission.
func (h *Hub) Notify(ctx context.Context, n notify.Notification) error {
	return h.Broadcast(ctx, MessageNotification, n)
}

// ServeWS upgrades the request and attaches the connection to the hub.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	c := &client{id: uuid.NewString(), conn: conn, send: make(chan []byte, sendBuffer)}

	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return
	}

	go h.writePump(c)
	go h.readPump(c)
}

// readPump discards client frames and detects disconnects.
func (h *Hub) readPump(c *client) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("live client read error", "client_id", c.id, "error", err)
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
