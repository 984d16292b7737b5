// Package feed streams newly registered complaints to connected dashboard
// clients over WebSocket. Complaints are announced on a Redis Pub/Sub
// channel so every service instance fans out the same stream.
package feed

import (
	"context"

	"qalatransit/backend/internal/storage"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Hub owns the set of connected feed clients and fans broadcast payloads
// out to them. All client-set mutation happens on the Run goroutine.
type Hub struct {
	clients map[*Client]bool

	RegisterCh   chan *Client
	UnregisterCh chan *Client
	BroadcastCh  chan []byte

	Redis  *redis.Client
	Logger *zap.Logger
}

func NewHub(rdb *redis.Client, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:      make(map[*Client]bool),
		RegisterCh:   make(chan *Client),
		UnregisterCh: make(chan *Client),
		BroadcastCh:  make(chan []byte, 64),
		Redis:        rdb,
		Logger:       logger,
	}
}

// startPubSubListener pumps complaint announcements from Redis into the
// broadcast channel.
func (h *Hub) startPubSubListener() {
	if h.Redis == nil {
		return
	}
	go func() {
		ctx := context.Background()
		pubsub := h.Redis.Subscribe(ctx, storage.FeedChannel)
		defer pubsub.Close()

		for msg := range pubsub.Channel() {
			h.BroadcastCh <- []byte(msg.Payload)
		}
	}()
}

// Run is the hub's main dispatch loop.
func (h *Hub) Run() {
	h.startPubSubListener()

	for {
		select {
		case client := <-h.RegisterCh:
			h.clients[client] = true
			h.Logger.Info("feed client connected", zap.Int("clients", len(h.clients)))

		case client := <-h.UnregisterCh:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
			}

		case payload := <-h.BroadcastCh:
			for client := range h.clients {
				select {
				case client.Send <- payload:
				default:
					// Slow client: drop it rather than block the feed.
					delete(h.clients, client)
					close(client.Send)
				}
			}
		}
	}
}
