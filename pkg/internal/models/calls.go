package models

import "time"

// CallRecord is the durable history row of one call room session.
// A room has at most one ongoing record (ended_at IS NULL) at a time.
type CallRecord struct {
	BaseModel

	RoomID      string     `json:"room_id" gorm:"index"`
	FounderID   string     `json:"founder_id"`
	FounderName string     `json:"founder_name"`
	EndedAt     *time.Time `json:"ended_at"`
}
