package api

import (
	"sync"

	"github.com/afyalink/telecare/pkg/internal/models"
	"github.com/gofiber/contrib/websocket"
	jsoniter "github.com/json-iterator/go"
)

// signalingGateway bridges one websocket client into a room's signaling
// channel: delivered messages are pushed down, inbound frames are
// published on the client's behalf.
func signalingGateway(c *websocket.Conn) {
	user := c.Locals("principal").(Principal)
	roomId := c.Params("room")

	var writeLock sync.Mutex
	push := func(payload any) {
		raw, _ := jsoniter.Marshal(payload)
		writeLock.Lock()
		defer writeLock.Unlock()
		_ = c.WriteMessage(websocket.TextMessage, raw)
	}

	// Push connection
	unsubscribe := src.Channel.Subscribe(roomId, user.ID, func(message models.SignalingMessage) {
		push(message)
	})
	defer unsubscribe()

	// Event loop
	for {
		_, packet, err := c.ReadMessage()
		if err != nil {
			break
		}

		var message models.SignalingMessage
		if err := jsoniter.Unmarshal(packet, &message); err != nil {
			push(map[string]any{
				"type":  "error",
				"error": "unable to unmarshal your message, requires json request",
			})
			continue
		}

		message.RoomID = roomId
		message.SenderID = user.ID

		if _, err := src.Channel.Publish(message); err != nil {
			push(map[string]any{
				"type":  "error",
				"error": err.Error(),
			})
		}
	}
}
