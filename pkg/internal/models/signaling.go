package models

import (
	"gorm.io/datatypes"
)

const (
	SignalingTypeOffer        = "offer"
	SignalingTypeAnswer       = "answer"
	SignalingTypeIceCandidate = "ice-candidate"
	SignalingTypeHangup       = "hangup"
)

// SignalingMessage is one negotiation step relayed through a call room.
// Rows are append-only; CreatedAt is the server-assigned ordering key.
// An empty RecipientID means the message is broadcast to the whole room.
type SignalingMessage struct {
	BaseModel

	RoomID      string            `json:"room_id" gorm:"index"`
	Type        string            `json:"type"`
	SenderID    string            `json:"sender_id"`
	RecipientID string            `json:"recipient_id"`
	Data        datatypes.JSONMap `json:"data"`
}

// Addressed reports whether the message should be delivered to the
// given participant. Senders never receive their own messages.
func (v SignalingMessage) Addressed(participantId string) bool {
	if v.SenderID == participantId {
		return false
	}
	return v.RecipientID == participantId || v.RecipientID == ""
}
