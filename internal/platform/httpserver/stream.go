package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"pentarchy/contexts/governance/proposal-voting/ports"
	contractsv1 "pentarchy/contracts/gen/events/v1"
	"pentarchy/internal/shared/events"

	"github.com/gorilla/websocket"
)

const (
	streamSendBuffer = 64
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = (streamPongWait * 9) / 10
)

type streamClient struct {
	conn       *websocket.Conn
	send       chan []byte
	proposalID string
}

// Hub fans vote and resolution events out to live stream clients. Delivery
// is best effort; a client that cannot keep up is disconnected.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*streamClient]struct{}
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[*streamClient]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Attach subscribes the hub to vote and resolution topics until ctx ends.
func (h *Hub) Attach(ctx context.Context, subscriber ports.EventSubscriber) error {
	for _, topic := range []string{contractsv1.EventTypeVote, contractsv1.EventTypeResolved} {
		if err := subscriber.Subscribe(ctx, topic, "governance-live-stream", h.Broadcast); err != nil {
			return err
		}
	}
	return nil
}

func (h *Hub) Broadcast(_ context.Context, envelope ports.EventEnvelope) error {
	message := events.FromEnvelope(envelope)
	payload, err := json.Marshal(message)
	if err != nil {
		return err
	}

	h.mu.RLock()
	var slow []*streamClient
	for client := range h.clients {
		if client.proposalID != "" && client.proposalID != message.ProposalID {
			continue
		}
		select {
		case client.send <- payload:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range slow {
		h.logger.Warn("dropping slow stream client",
			"event", "stream_client_dropped",
			"module", "internal/platform/httpserver",
			"layer", "platform",
			"proposal_filter", client.proposalID,
		)
		h.remove(client)
	}
	return nil
}

func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("stream upgrade failed",
			"event", "stream_upgrade_failed",
			"module", "internal/platform/httpserver",
			"layer", "platform",
			"error", err.Error(),
		)
		return
	}
	client := &streamClient{
		conn:       conn,
		send:       make(chan []byte, streamSendBuffer),
		proposalID: strings.TrimSpace(r.URL.Query().Get("proposal_id")),
	}
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()

	go h.writePump(client)
	go h.readPump(client)
}

// Clients reports the number of connected stream clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*streamClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.Unlock()
	for _, client := range clients {
		h.remove(client)
	}
}

func (h *Hub) remove(client *streamClient) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	close(client.send)
	h.mu.Unlock()
}

// readPump only services control frames; clients do not send data.
func (h *Hub) readPump(client *streamClient) {
	defer func() {
		h.remove(client)
		_ = client.conn.Close()
	}()
	client.conn.SetReadLimit(512)
	_ = client.conn.SetReadDeadline(time.Now().Add(streamPongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(client *streamClient) {
	ticker := time.NewTicker(streamPingPeriod)
	defer func() {
		ticker.Stop()
		_ = client.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-client.send:
			_ = client.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if !ok {
				_ = client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
