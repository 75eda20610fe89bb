package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/appointment-insights/internal/dashboard"
	"github.com/wolfman30/appointment-insights/internal/notify"
	"github.com/wolfman30/appointment-insights/internal/observability/metrics"
	"github.com/wolfman30/appointment-insights/internal/settings"
)

type rawMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func startHub(t *testing.T, hub *Hub) (*httptest.Server, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return srv, cancel
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) rawMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg rawMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestHub_ReplaysLatestModelAndBroadcasts(t *testing.T) {
	reg := prometheus.NewRegistry()
	hub := NewHub(nil, metrics.NewDashboardMetrics(reg), nil)
	srv, _ := startHub(t, hub)

	hub.PublishModel(dashboard.Model{Generation: 7})

	conn := dial(t, srv)
	msg := readMessage(t, conn)
	require.Equal(t, MessageModel, msg.Type)
	var model dashboard.Model
	require.NoError(t, json.Unmarshal(msg.Data, &model))
	assert.Equal(t, uint64(7), model.Generation)

	assert.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)
	count, err := testutil.GatherAndCount(reg, "appointments_dashboard_live_clients")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, hub.Notify(context.Background(), notify.Notification{
		Kind:  notify.KindNew,
		Title: "New Appointment Scheduled",
		Body:  `A new "Consult" appointment has been added.`,
	}))
	msg = readMessage(t, conn)
	require.Equal(t, MessageNotification, msg.Type)
	var n notify.Notification
	require.NoError(t, json.Unmarshal(msg.Data, &n))
	assert.Equal(t, "New Appointment Scheduled", n.Title)

	hub.ApplyTheme(settings.ThemeLight)
	msg = readMessage(t, conn)
	require.Equal(t, MessageTheme, msg.Type)
	var theme ThemeUpdate
	require.NoError(t, json.Unmarshal(msg.Data, &theme))
	assert.Equal(t, "light", theme.Class)
}

func TestHub_UnregistersOnDisconnect(t *testing.T) {
	hub := NewHub(nil, nil, nil)
	srv, _ := startHub(t, hub)

	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_ClosedAfterRun(t *testing.T) {
	hub := NewHub(nil, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	// Fill the buffer so the next send can only resolve through done.
	for i := 0; i < cap(hub.broadcast); i++ {
		hub.broadcast <- envelope{kind: MessageModel}
	}
	err := hub.Broadcast(context.Background(), MessageModel, dashboard.Model{})
	assert.ErrorIs(t, err, ErrHubClosed)
}

func TestHub_RejectsForeignOrigin(t *testing.T) {
	hub := NewHub(nil, nil, []string{"https://ops.example.com"})
	srv, _ := startHub(t, hub)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	header := http.Header{}
	header.Set("Origin", "https://evil.example")
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header.Set("Origin", "https://ops.example.com")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	_ = conn.Close()
}
