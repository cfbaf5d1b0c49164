package websocket

import (
	"net/http"
	"saathi/models"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Clients only send control frames
	maxMessageSize = 512

	// Buffer size for client send channel
	sendBufferSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is one receive-only subscriber of an event room.
type Client struct {
	hub  *Hub
	conn *websocket.Conn

	eventID      string
	userID       string
	connectionID string
	connectedAt  time.Time

	// Buffered channel of outbound updates, closed by the hub
	send chan models.SOSUpdate
}

func NewClient(hub *Hub, conn *websocket.Conn, eventID, userID string) *Client {
	return &Client{
		hub:          hub,
		conn:         conn,
		eventID:      eventID,
		userID:       userID,
		connectionID: uuid.NewString(),
		connectedAt:  time.Now(),
		send:         make(chan models.SOSUpdate, sendBufferSize),
	}
}

// ServeEvent upgrades the request and attaches the connection to the
// event room. The upgrader writes the HTTP error on failure.
func ServeEvent(hub *Hub, w http.ResponseWriter, r *http.Request, eventID, userID string) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	client := NewClient(hub, conn, eventID, userID)
	hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
	return nil
}

// ReadPump drains control frames until the peer goes away. Inbound data
// messages are ignored.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithError(err).WithField("connection_id", c.connectionID).Warn("WebSocket read error")
			}
			return
		}
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case update, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(update); err != nil {
				logrus.WithError(err).WithField("connection_id", c.connectionID).Warn("WebSocket write error")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
