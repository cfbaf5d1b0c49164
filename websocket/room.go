package websocket

import (
	"saathi/models"
	"time"
)

// Room holds the clients watching one SOS event. It is only touched from
// the hub goroutine, under the hub mutex.
type Room struct {
	EventID   string
	clients   map[*Client]bool
	createdAt time.Time
}

func NewRoom(eventID string) *Room {
	return &Room{
		EventID:   eventID,
		clients:   make(map[*Client]bool),
		createdAt: time.Now(),
	}
}

func (r *Room) AddClient(client *Client) {
	if client == nil {
		return
	}
	r.clients[client] = true
}

// RemoveClient reports whether the client was in the room.
func (r *Room) RemoveClient(client *Client) bool {
	if !r.clients[client] {
		return false
	}
	delete(r.clients, client)
	return true
}

// Broadcast offers the update to every client without blocking. Clients
// whose buffer is full are returned as slow.
func (r *Room) Broadcast(update models.SOSUpdate) (sent int, slow []*Client) {
	for client := range r.clients {
		select {
		case client.send <- update:
			sent++
		default:
			slow = append(slow, client)
		}
	}
	return sent, slow
}

func (r *Room) Clients() []*Client {
	clients := make([]*Client, 0, len(r.clients))
	for client := range r.clients {
		clients = append(clients, client)
	}
	return clients
}

func (r *Room) Size() int {
	return len(r.clients)
}

func (r *Room) IsEmpty() bool {
	return len(r.clients) == 0
}
