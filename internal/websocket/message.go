package websocket

import (
	"encoding/json"
	"time"
)

type MessageType string

const (
	TypeNoteChanged MessageType = "note_changed"
	TypeNoteDeleted MessageType = "note_deleted"
)

type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type NoteChangedPayload struct {
	NoteID    string    `json:"note_id"`
	Title     string    `json:"title"`
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

type NoteDeletedPayload struct {
	NoteID  string `json:"note_id"`
	Version int64  `json:"version"`
}

func NewMessage(msgType MessageType, payload interface{}) (*Message, error) {
	var payloadBytes json.RawMessage
	if payload != nil {
		bytes, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		payloadBytes = bytes
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now(),
		Payload:   payloadBytes,
	}, nil
}
