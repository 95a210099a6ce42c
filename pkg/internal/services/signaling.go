package services

import (
	"fmt"
	"sync"

	"github.com/afyalink/telecare/pkg/internal/models"
	"github.com/rs/zerolog/log"
)

// MessageStore is the append-only document store backing the signaling
// channel. Messages are created once and never mutated.
type MessageStore interface {
	Append(message *models.SignalingMessage) error
	ListSince(roomId string, sinceId uint) ([]models.SignalingMessage, error)
}

// SignalingChannel relays session-negotiation messages between the
// participants of a call room. Every published message is persisted and
// then fanned out, in append order, to the live subscribers it is
// addressed to.
type SignalingChannel struct {
	store MessageStore

	mu          sync.Mutex
	nextId      uint64
	subscribers map[string]map[uint64]*channelSubscriber
}

type channelSubscriber struct {
	participantId string
	queue         chan models.SignalingMessage
}

func NewSignalingChannel(store MessageStore) *SignalingChannel {
	return &SignalingChannel{
		store:       store,
		subscribers: make(map[string]map[uint64]*channelSubscriber),
	}
}

// Publish appends one message to the room and delivers it to subscribers.
// The message is never delivered back to its sender.
func (v *SignalingChannel) Publish(message models.SignalingMessage) (models.SignalingMessage, error) {
	if len(message.RoomID) == 0 {
		return message, fmt.Errorf("unable to publish signaling message: missing room id")
	}

	if err := v.store.Append(&message); err != nil {
		return message, fmt.Errorf("unable to append signaling message: %v", err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	for _, sub := range v.subscribers[message.RoomID] {
		if !message.Addressed(sub.participantId) {
			continue
		}
		select {
		case sub.queue <- message:
		default:
			log.Warn().
				Str("room", message.RoomID).
				Str("participant", sub.participantId).
				Msg("Signaling subscriber queue is full, dropping message...")
		}
	}

	return message, nil
}

// Subscribe registers a listener for messages addressed to participantId
// in the given room. The returned disposer stops delivery; it is safe to
// call more than once.
func (v *SignalingChannel) Subscribe(roomId, participantId string, onMessage func(message models.SignalingMessage)) func() {
	sub := &channelSubscriber{
		participantId: participantId,
		queue:         make(chan models.SignalingMessage, 256),
	}

	v.mu.Lock()
	id := v.nextId
	v.nextId++
	if _, ok := v.subscribers[roomId]; !ok {
		v.subscribers[roomId] = make(map[uint64]*channelSubscriber)
	}
	v.subscribers[roomId][id] = sub
	v.mu.Unlock()

	go func() {
		for message := range sub.queue {
			onMessage(message)
		}
	}()

	return func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		if room, ok := v.subscribers[roomId]; ok {
			if _, ok := room[id]; ok {
				delete(room, id)
				close(sub.queue)
			}
			if len(room) == 0 {
				delete(v.subscribers, roomId)
			}
		}
	}
}

// History returns the room's messages in append order. The channel never
// deletes what it relays; cleanup is the sweeper's duty.
func (v *SignalingChannel) History(roomId string, sinceId uint) ([]models.SignalingMessage, error) {
	return v.store.ListSince(roomId, sinceId)
}
