package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/pickperfect/api/internal/logger"
	"github.com/pickperfect/api/internal/model"
)

// Error code sent to subscribers of a failed job
const CodeAnalysisFailed = "ANALYSIS_FAILED"

// Client is one websocket subscriber of a job
type Client struct {
	JobID string
	Send  chan []byte
}

// Hub fans job status events out to websocket subscribers
type Hub struct {
	// Clients grouped by job ID
	clients map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage

	log *logger.Logger
	mu  sync.RWMutex
}

// BroadcastMessage is an encoded message for one job's subscribers
type BroadcastMessage struct {
	JobID   string
	Message []byte
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *BroadcastMessage, 256),
		log:        log,
	}
}

// Run starts the hub's main loop; it returns when done is closed
func (h *Hub) Run(done <-chan struct{}) {
	for {
		select {
		case <-done:
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.JobID] == nil {
				h.clients[client.JobID] = make(map[*Client]bool)
			}
			h.clients[client.JobID][client] = true
			h.mu.Unlock()
			h.log.WithField("job_id", client.JobID).Debug("Client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()
			// the connection's reader has stopped, so nothing sends on it anymore
			close(client.Send)
			h.log.WithField("job_id", client.JobID).Debug("Client unregistered")

		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients[msg.JobID] {
				select {
				case client.Send <- msg.Message:
				default:
					// slow consumer; Send is closed on unregister
					h.remove(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// remove must be called with mu held
func (h *Hub) remove(client *Client) {
	clients, ok := h.clients[client.JobID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	if len(clients) == 0 {
		delete(h.clients, client.JobID)
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Subscribers returns the number of clients watching jobID
func (h *Hub) Subscribers(jobID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[jobID])
}

// BroadcastStatus relays a status event: ANALYZED becomes a complete
// message, FAILED an error message, anything else a progress message.
func (h *Hub) BroadcastStatus(event model.StatusEvent) {
	if event.JobID == "" {
		return
	}

	var msg interface{}
	switch event.Status {
	case model.JobStatusAnalyzed:
		msg = model.WSCompleteMessage{
			Type:   model.WSMessageTypeComplete,
			JobID:  event.JobID,
			Result: event.Analysis,
		}
	case model.JobStatusFailed:
		msg = model.WSErrorMessage{
			Type:  model.WSMessageTypeError,
			JobID: event.JobID,
			Error: model.WSError{Code: CodeAnalysisFailed, Message: event.Error},
		}
	default:
		msg = model.WSProgressMessage{
			Type:       model.WSMessageTypeProgress,
			JobID:      event.JobID,
			StorageKey: event.StorageKey,
			Status:     event.Status,
		}
	}

	data, err := json.Marshal(msg)
	if err != nil {
		h.log.WithError(err).Error("Failed to marshal status message")
		return
	}
	h.broadcast <- &BroadcastMessage{JobID: event.JobID, Message: data}
}

// HandleConnection serves one websocket connection until it closes
func (h *Hub) HandleConnection(c *websocket.Conn, jobID string) {
	client := &Client{
		JobID: jobID,
		Send:  make(chan []byte, 256),
	}

	h.Register(client)
	defer h.Unregister(client)

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case message, ok := <-client.Send:
				if !ok {
					_ = c.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
					return
				}

			case <-ticker.C:
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.WithField("job_id", jobID).WithError(err).Warn("WebSocket error")
			}
			break
		}

		var msg model.WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		if msg.Type == model.WSMessageTypePing {
			pong, _ := json.Marshal(model.WSMessage{Type: model.WSMessageTypePong})
			select {
			case client.Send <- pong:
			default:
			}
		}
	}
}
