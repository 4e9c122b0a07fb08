package notify_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/DeafMist/fire-radar/internal/logger"
	"github.com/DeafMist/fire-radar/internal/models"
	"github.com/DeafMist/fire-radar/internal/notify"
)

func sampleRecord(id string) models.NewsRecord {
	return models.NewsRecord{
		ID:       id,
		Title:    "Feu de forêt à Batna",
		Source:   "APS",
		Date:     time.Date(2024, 8, 1, 10, 0, 0, 0, time.UTC),
		Content:  "Un incendie est en cours.",
		ImageURL: "https://cdn.aps.dz/a.jpg",
		Location: "Batna",
		Category: models.CategoryActive,
		URL:      "https://www.aps.dz/a",
	}
}

func TestMultiCallsSinksInOrder(t *testing.T) {
	var calls []string
	sink := func(name string) notify.Notifier {
		return notify.Func(func(_ context.Context, rec models.NewsRecord) {
			calls = append(calls, name+":"+rec.ID)
		})
	}

	m := notify.Multi{sink("ws"), nil, sink("kafka")}
	m.Notify(context.Background(), sampleRecord("a"))
	m.Notify(context.Background(), sampleRecord("b"))

	require.Equal(t, []string{"ws:a", "kafka:a", "ws:b", "kafka:b"}, calls)
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestHubBroadcastsNewAlert(t *testing.T) {
	hub := notify.NewHub(logger.Discard())
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()
	defer hub.Close()

	first := dial(t, srv)
	second := dial(t, srv)
	require.Eventually(t, func() bool { return hub.Clients() == 2 }, 2*time.Second, 10*time.Millisecond)

	rec := sampleRecord("rec-1")
	hub.Notify(context.Background(), rec)

	for _, conn := range []*websocket.Conn{first, second} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)

		var msg notify.Message
		require.NoError(t, json.Unmarshal(raw, &msg))
		require.Equal(t, "new alert", msg.Event)
		require.Equal(t, rec.ID, msg.Data.ID)
		require.Equal(t, rec.Location, msg.Data.Location)
		require.True(t, rec.Date.Equal(msg.Data.Date))
	}
}

func TestHubForgetsClosedClients(t *testing.T) {
	hub := notify.NewHub(logger.Discard())
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)

	// broadcasting with nobody connected is a no-op
	hub.Notify(context.Background(), sampleRecord("x"))
}

func TestHubDropsSlowClients(t *testing.T) {
	hub := notify.NewHub(logger.Discard(), notify.WithClientBuffer(1))
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()
	defer hub.Close()

	_ = dial(t, srv)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	// the client never reads; once its buffer and the socket fill up it gets dropped
	big := sampleRecord("big")
	big.Content = strings.Repeat("flammes ", 64*1024)
	require.Eventually(t, func() bool {
		hub.Notify(context.Background(), big)
		return hub.Clients() == 0
	}, 5*time.Second, 5*time.Millisecond)
}
