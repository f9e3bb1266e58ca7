package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"ctfpilot-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// globalScope is the subscription key for clients watching every job.
const globalScope = "*"

type Hub struct {
	// Registered clients map: scope (job id or "*") -> list of clients
	clients map[string][]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Lock for safe map access
	mu sync.RWMutex

	// Redis connection for cross-instance communication
	rdb *redis.Client

	// Identifies this instance so relayed frames are not re-delivered
	// to the instance that published them.
	instanceID string

	// Dedicated Logger
	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[string][]*Client),
		rdb:        rdb,
		instanceID: uuid.NewString(),
		logger:     log,
	}
}

func (h *Hub) Run() {
	// Start Redis Subscriber if Redis is available
	if h.rdb != nil {
		go h.subscribeToRedis()
	}

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.Scope] = append(h.clients[client.Scope], client)
			h.mu.Unlock()
			h.logger.Info("Hub", "Client registered", map[string]interface{}{"scope": client.Scope})

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.Scope]; ok {
				for i, c := range clients {
					if c == client {
						h.clients[client.Scope] = append(clients[:i], clients[i+1:]...)
						close(client.Send)
						break
					}
				}
				if len(h.clients[client.Scope]) == 0 {
					delete(h.clients, client.Scope)
					h.logger.Info("Hub", "Scope drained", map[string]interface{}{"scope": client.Scope})
				}
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastJobUpdate sends a job_update frame to the job's subscribers and
// to every global subscriber.
func (h *Hub) BroadcastJobUpdate(jobID string, data map[string]interface{}) {
	message, _ := json.Marshal(map[string]interface{}{
		"type":   "job_update",
		"job_id": jobID,
		"data":   data,
	})

	h.deliver(jobID, message, true)
	h.publishToRedis(jobID, message, true)
}

// BroadcastJobProgress is a convenience wrapper for status/progress frames.
func (h *Hub) BroadcastJobProgress(jobID, status string, progress int, message string) {
	h.BroadcastJobUpdate(jobID, map[string]interface{}{
		"status":   status,
		"progress": progress,
		"message":  message,
	})
}

// BroadcastJobLog sends a job_log frame to the job's subscribers only.
func (h *Hub) BroadcastJobLog(jobID, entry, level string) {
	message, _ := json.Marshal(map[string]interface{}{
		"type":   "job_log",
		"job_id": jobID,
		"data": map[string]interface{}{
			"level":   level,
			"message": entry,
		},
	})

	h.deliver(jobID, message, false)
	h.publishToRedis(jobID, message, false)
}

// BroadcastJobComplete sends the terminal frame with candidates or the
// failure message.
func (h *Hub) BroadcastJobComplete(jobID, status string, flagCandidates []map[string]interface{}, errorMessage string) {
	progress := 0
	if status == "completed" {
		progress = 100
	}
	if flagCandidates == nil {
		flagCandidates = []map[string]interface{}{}
	}

	data := map[string]interface{}{
		"status":          status,
		"progress":        progress,
		"completed":       true,
		"flag_candidates": flagCandidates,
	}
	if errorMessage != "" {
		data["error_message"] = errorMessage
	}

	h.BroadcastJobUpdate(jobID, data)
}

// deliver pushes a frame to the local subscribers of a job, plus the
// global scope when includeGlobal is set.
func (h *Hub) deliver(jobID string, message []byte, includeGlobal bool) {
	h.mu.RLock()
	targets := make([]*Client, 0)
	targets = append(targets, h.clients[jobID]...)
	if includeGlobal {
		targets = append(targets, h.clients[globalScope]...)
	}
	h.mu.RUnlock()

	for _, client := range targets {
		select {
		case client.Send <- message:
		default:
			h.logger.Warn("Hub", "Client send buffer full, dropping client", map[string]interface{}{"scope": client.Scope})
			h.unregister <- client
		}
	}
}

func (h *Hub) publishToRedis(jobID string, message []byte, includeGlobal bool) {
	if h.rdb == nil {
		return
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"origin":         h.instanceID,
		"job_id":         jobID,
		"include_global": includeGlobal,
		"message":        json.RawMessage(message),
	})
	h.rdb.Publish(context.Background(), "job_events", payload)
}

// subscribeToRedis relays frames published by other instances to this
// instance's local clients. Every instance subscribes to the shared
// "job_events" channel and filters by its own subscriber map.
func (h *Hub) subscribeToRedis() {
	ctx := context.Background()
	pubsub := h.rdb.Subscribe(ctx, "job_events")
	defer pubsub.Close()

	ch := pubsub.Channel()

	for msg := range ch {
		var payload struct {
			Origin        string          `json:"origin"`
			JobID         string          `json:"job_id"`
			IncludeGlobal bool            `json:"include_global"`
			Message       json.RawMessage `json:"message"`
		}
		if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
			log.Printf("Redis msg parse error: %v", err)
			continue
		}

		// Local clients already got this frame when it was published.
		if payload.Origin == h.instanceID {
			continue
		}

		h.deliver(payload.JobID, payload.Message, payload.IncludeGlobal)
	}
}
