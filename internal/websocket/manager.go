package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/OriginalByteMe/note-taking-backend/internal/domain"
)

// Manager fans note change events out to a user's connected sessions. It is
// notification only: clients re-fetch through the HTTP API, which serves
// fresh state because cache invalidation already ran.
type Manager struct {
	clients        map[string]*Client
	userIndex      map[string]map[string]bool
	clientsMutex   sync.RWMutex
	Register       chan *Client
	Unregister     chan *Client
	maxConnPerUser int
	writeWait      time.Duration
	pongWait       time.Duration
	pingPeriod     time.Duration
}

func NewManager(maxConnPerUser int, writeWait, pongWait, pingPeriod time.Duration) *Manager {
	return &Manager{
		clients:        make(map[string]*Client),
		userIndex:      make(map[string]map[string]bool),
		Register:       make(chan *Client),
		Unregister:     make(chan *Client),
		maxConnPerUser: maxConnPerUser,
		writeWait:      writeWait,
		pongWait:       pongWait,
		pingPeriod:     pingPeriod,
	}
}

func (m *Manager) Run() {
	for {
		select {
		case client := <-m.Register:
			m.registerClient(client)

		case client := <-m.Unregister:
			m.unregisterClient(client)
		}
	}
}

func (m *Manager) registerClient(client *Client) {
	m.clientsMutex.Lock()
	defer m.clientsMutex.Unlock()

	if m.userIndex[client.UserID] == nil {
		m.userIndex[client.UserID] = make(map[string]bool)
	}

	if len(m.userIndex[client.UserID]) >= m.maxConnPerUser {
		log.Printf("max connections reached for user %s", client.UserID)
		close(client.Send)
		return
	}

	m.clients[client.ID] = client
	m.userIndex[client.UserID][client.ID] = true

	log.Printf("client registered: %s (user: %s)", client.ID, client.UserID)
}

func (m *Manager) unregisterClient(client *Client) {
	m.clientsMutex.Lock()
	defer m.clientsMutex.Unlock()

	if _, ok := m.clients[client.ID]; ok {
		delete(m.clients, client.ID)
		delete(m.userIndex[client.UserID], client.ID)

		if len(m.userIndex[client.UserID]) == 0 {
			delete(m.userIndex, client.UserID)
		}

		close(client.Send)
		log.Printf("client unregistered: %s", client.ID)
	}
}

func (m *Manager) BroadcastToUser(userID string, message *Message) error {
	m.clientsMutex.RLock()
	defer m.clientsMutex.RUnlock()

	messageBytes, err := json.Marshal(message)
	if err != nil {
		return err
	}

	clientIDs, exists := m.userIndex[userID]
	if !exists {
		return nil
	}

	for clientID := range clientIDs {
		client := m.clients[clientID]
		select {
		case client.Send <- messageBytes:
		default:
			log.Printf("client %s send buffer full, dropping message", clientID)
		}
	}

	return nil
}

func (m *Manager) GetUserConnections(userID string) int {
	m.clientsMutex.RLock()
	defer m.clientsMutex.RUnlock()

	if clients, exists := m.userIndex[userID]; exists {
		return len(clients)
	}
	return 0
}

// NoteChanged implements the note service's event sink.
func (m *Manager) NoteChanged(note *domain.Note) {
	msg, err := NewMessage(TypeNoteChanged, NoteChangedPayload{
		NoteID:    note.ID,
		Title:     note.Title,
		Version:   note.Version,
		UpdatedAt: note.UpdatedAt,
	})
	if err != nil {
		log.Printf("failed to build note_changed message: %v", err)
		return
	}

	if err := m.BroadcastToUser(note.OwnerID, msg); err != nil {
		log.Printf("failed to broadcast note_changed: %v", err)
	}
}

func (m *Manager) NoteDeleted(ownerID, noteID string, version int64) {
	msg, err := NewMessage(TypeNoteDeleted, NoteDeletedPayload{
		NoteID:  noteID,
		Version: version,
	})
	if err != nil {
		log.Printf("failed to build note_deleted message: %v", err)
		return
	}

	if err := m.BroadcastToUser(ownerID, msg); err != nil {
		log.Printf("failed to broadcast note_deleted: %v", err)
	}
}
