package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"ai-docreview-be/internal/entity"
	"ai-docreview-be/internal/pkg/logger"
	"ai-docreview-be/internal/repository/contract"
)

const progressPollInterval = 500 * time.Millisecond

// ProgressEvent is one frame of the live analysis feed.
type ProgressEvent struct {
	SessionId uuid.UUID              `json:"session_id"`
	Stage     string                 `json:"stage"`
	Progress  int                    `json:"progress"`
	Message   string                 `json:"message"`
	Error     string                 `json:"error,omitempty"`
	Data      *entity.AnalysisResult `json:"data,omitempty"`
}

// Hub fans analysis progress out to websocket watchers. One poller per
// watched session reads the store at a fixed interval and broadcasts to
// every local client; Redis pub/sub relays events across instances.
type Hub struct {
	// Registered clients map: SessionID -> watchers (multi-tab).
	clients map[uuid.UUID][]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Lock for safe map access
	mu sync.RWMutex

	// Session pollers currently running.
	polling   map[uuid.UUID]bool
	pollingMu sync.Mutex

	sessionRepo contract.SessionRepository

	// Redis connection for cross-instance fan-out, optional.
	rdb *redis.Client

	logger logger.ILogger
}

func NewHub(sessionRepo contract.SessionRepository, rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		clients:     make(map[uuid.UUID][]*Client),
		polling:     make(map[uuid.UUID]bool),
		sessionRepo: sessionRepo,
		rdb:         rdb,
		logger:      log,
	}
}

func (h *Hub) Run() {
	if h.rdb != nil {
		go h.subscribeToRedis()
	}

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.SessionID] = append(h.clients[client.SessionID], client)
			h.mu.Unlock()
			h.logger.Info("hub", "progress watcher registered", map[string]interface{}{"session_id": client.SessionID})
			h.ensurePoller(client.SessionID)

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.SessionID]; ok {
				for i, c := range clients {
					if c == client {
						h.clients[client.SessionID] = append(clients[:i], clients[i+1:]...)
						close(client.Send)
						break
					}
				}
				if len(h.clients[client.SessionID]) == 0 {
					delete(h.clients, client.SessionID)
					h.logger.Info("hub", "last progress watcher left", map[string]interface{}{"session_id": client.SessionID})
				}
			}
			h.mu.Unlock()
		}
	}
}

// Send delivers one progress event to every local watcher of the session
// and relays it to other instances via Redis.
func (h *Hub) Send(sessionId uuid.UUID, event ProgressEvent) {
	data, _ := json.Marshal(event)

	h.mu.RLock()
	clients, localFound := h.clients[sessionId]
	h.mu.RUnlock()

	if localFound {
		for _, client := range clients {
			select {
			case client.Send <- data:
			default:
				// The unregister handler owns closing Send; closing here
				// too would double-close when the client also unregisters.
				h.logger.Warn("hub", "watcher send buffer full, dropping connection", map[string]interface{}{"session_id": sessionId})
				h.unregister <- client
			}
		}
	}

	if h.rdb != nil {
		payload := map[string]interface{}{
			"target_session_id": sessionId.String(),
			"message":           json.RawMessage(data),
		}
		jsonPayload, _ := json.Marshal(payload)
		h.rdb.Publish(context.Background(), "progress_events", jsonPayload)
	}
}

// ensurePoller starts the store poller for a session if none is running.
// The poller exits once the session goes terminal or disappears.
func (h *Hub) ensurePoller(sessionId uuid.UUID) {
	h.pollingMu.Lock()
	if h.polling[sessionId] {
		h.pollingMu.Unlock()
		return
	}
	h.polling[sessionId] = true
	h.pollingMu.Unlock()

	go func() {
		ticker := time.NewTicker(progressPollInterval)
		defer ticker.Stop()

		var lastProgress = -1
		var lastStage string

		for range ticker.C {
			if !h.hasWatchers(sessionId) {
				if h.retirePoller(sessionId) {
					return
				}
				continue
			}

			session, err := h.sessionRepo.Get(context.Background(), sessionId)
			if err != nil {
				h.logger.Error("hub", "progress poll failed", map[string]interface{}{
					"session_id": sessionId.String(),
					"error":      err.Error(),
				})
				continue
			}
			if session == nil {
				h.Send(sessionId, ProgressEvent{
					SessionId: sessionId,
					Stage:     "error",
					Message:   "Session expired",
					Error:     "session expired or deleted",
				})
				h.closeWatchers(sessionId)
				if h.retirePoller(sessionId) {
					return
				}
				lastProgress, lastStage = -1, ""
				continue
			}

			if session.Progress != lastProgress || string(session.Status) != lastStage {
				lastProgress = session.Progress
				lastStage = string(session.Status)

				event := ProgressEvent{
					SessionId: session.Id,
					Stage:     string(session.Status),
					Progress:  session.Progress,
					Message:   session.Message,
					Error:     session.Error,
				}
				if session.Status == entity.SessionStatusComplete {
					event.Data = session.Result
				}
				h.Send(sessionId, event)
			}

			if session.Status.Terminal() {
				h.closeWatchers(sessionId)
				if h.retirePoller(sessionId) {
					return
				}
				lastProgress, lastStage = -1, ""
			}
		}
	}()
}

// retirePoller drops the session's poller liveness entry and reports true
// when no watchers remain. The recheck runs under pollingMu so a watcher
// registering during shutdown either finds the entry gone and starts a new
// poller, or is seen here and keeps this one alive.
func (h *Hub) retirePoller(sessionId uuid.UUID) bool {
	h.pollingMu.Lock()
	defer h.pollingMu.Unlock()
	if h.hasWatchers(sessionId) {
		return false
	}
	delete(h.polling, sessionId)
	return true
}

func (h *Hub) hasWatchers(sessionId uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[sessionId]) > 0
}

func (h *Hub) closeWatchers(sessionId uuid.UUID) {
	h.mu.Lock()
	for _, client := range h.clients[sessionId] {
		close(client.Send)
	}
	delete(h.clients, sessionId)
	h.mu.Unlock()
}

func (h *Hub) subscribeToRedis() {
	ctx := context.Background()
	pubsub := h.rdb.Subscribe(ctx, "progress_events")
	defer pubsub.Close()

	ch := pubsub.Channel()

	for msg := range ch {
		var payload struct {
			TargetSessionID string          `json:"target_session_id"`
			Message         json.RawMessage `json:"message"`
		}
		if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
			log.Printf("Redis msg parse error: %v", err)
			continue
		}

		sid, err := uuid.Parse(payload.TargetSessionID)
		if err != nil {
			continue
		}

		h.mu.RLock()
		clients, ok := h.clients[sid]
		h.mu.RUnlock()

		if ok {
			for _, client := range clients {
				select {
				case client.Send <- payload.Message:
				default:
					h.unregister <- client
				}
			}
		}
	}
}
