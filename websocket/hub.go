package websocket

import (
	"context"
	"saathi/models"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const broadcastBufferSize = 256

// Hub fans SOS updates out to the clients watching each event. Rooms are
// keyed by event id and exist only while they have clients.
type Hub struct {
	// Rooms by SOS event id
	rooms map[string]*Room

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Updates waiting to be delivered to a room
	broadcast chan roomMessage

	stats HubStats
	mutex sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
}

type roomMessage struct {
	EventID string
	Update  models.SOSUpdate
}

type HubStats struct {
	TotalConnections  int64     `json:"total_connections"`
	ActiveConnections int       `json:"active_connections"`
	ActiveRooms       int       `json:"active_rooms"`
	MessagesSent      int64     `json:"messages_sent"`
	MessagesDropped   int64     `json:"messages_dropped"`
	StartTime         time.Time `json:"start_time"`
}

func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	return &Hub{
		rooms:      make(map[string]*Room),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan roomMessage, broadcastBufferSize),
		stats: HubStats{
			StartTime: time.Now(),
		},
		ctx:    ctx,
		cancel: cancel,
	}
}

func (h *Hub) Run() {
	logrus.Info("WebSocket Hub starting...")

	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastToRoom(message)

		case <-h.ctx.Done():
			h.closeAll()
			logrus.Info("WebSocket Hub shutting down...")
			return
		}
	}
}

// PublishToEvent queues an update for the event room. It never blocks the
// caller; updates are dropped when the queue is full.
func (h *Hub) PublishToEvent(eventID string, update models.SOSUpdate) {
	select {
	case h.broadcast <- roomMessage{EventID: eventID, Update: update}:
	case <-h.ctx.Done():
	default:
		h.mutex.Lock()
		h.stats.MessagesDropped++
		h.mutex.Unlock()
		logrus.WithField("sos_id", eventID).Warn("WebSocket broadcast queue full, update dropped")
	}
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.ctx.Done():
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

func (h *Hub) Shutdown() {
	h.cancel()
}

func (h *Hub) RoomSize(eventID string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if room, ok := h.rooms[eventID]; ok {
		return room.Size()
	}
	return 0
}

func (h *Hub) GetStats() HubStats {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	stats := h.stats
	stats.ActiveRooms = len(h.rooms)
	return stats
}

func (h *Hub) registerClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	room, ok := h.rooms[client.eventID]
	if !ok {
		room = NewRoom(client.eventID)
		h.rooms[client.eventID] = room
	}
	room.AddClient(client)

	h.stats.ActiveConnections++
	h.stats.TotalConnections++

	logrus.WithFields(logrus.Fields{
		"sos_id":  client.eventID,
		"user_id": client.userID,
	}).Infof("Client registered (Total: %d)", h.stats.ActiveConnections)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	room, ok := h.rooms[client.eventID]
	if !ok || !room.RemoveClient(client) {
		return
	}

	close(client.send)
	h.stats.ActiveConnections--

	if room.IsEmpty() {
		delete(h.rooms, client.eventID)
	}
}

func (h *Hub) broadcastToRoom(message roomMessage) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	room, ok := h.rooms[message.EventID]
	if !ok {
		return
	}

	sent, slow := room.Broadcast(message.Update)
	h.stats.MessagesSent += int64(sent)

	// Slow clients are cut off rather than allowed to stall the room.
	for _, client := range slow {
		room.RemoveClient(client)
		close(client.send)
		h.stats.ActiveConnections--
		h.stats.MessagesDropped++
	}
	if room.IsEmpty() {
		delete(h.rooms, message.EventID)
	}
}

func (h *Hub) closeAll() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for eventID, room := range h.rooms {
		for _, client := range room.Clients() {
			room.RemoveClient(client)
			close(client.send)
		}
		delete(h.rooms, eventID)
	}
	h.stats.ActiveConnections = 0
}
