package realtime

import (
	"encoding/json"
	"sync"

	log "github.com/sirupsen/logrus"
)

const clientBuffer = 10

// Message is the JSON shape of every event pushed to browsers.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

const (
	MessagePoolMemberJoined = "pool_member_joined"
	MessagePoolInvite       = "pool_invite"
	MessageScoresUpdated    = "scores_updated"
)

// Broker is the central hub for managing SSE client connections. A user may
// hold several connections at once (one per open tab).
type Broker struct {
	clients map[string]map[chan []byte]struct{}
	mu      sync.RWMutex
}

func NewBroker() *Broker {
	return &Broker{
		clients: make(map[string]map[chan []byte]struct{}),
	}
}

// AddClient registers a new connection for userID and returns the channel it
// should read from.
func (b *Broker) AddClient(userID string) chan []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan []byte, clientBuffer)
	conns, ok := b.clients[userID]
	if !ok {
		conns = make(map[chan []byte]struct{})
		b.clients[userID] = conns
	}
	conns[ch] = struct{}{}
	log.WithFields(log.Fields{"user_id": userID, "connections": len(conns)}).Debug("SSE client connected")
	return ch
}

// RemoveClient unregisters one connection and closes its channel.
func (b *Broker) RemoveClient(userID string, ch chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	conns, ok := b.clients[userID]
	if !ok {
		return
	}
	if _, ok := conns[ch]; !ok {
		return
	}
	delete(conns, ch)
	close(ch)
	if len(conns) == 0 {
		delete(b.clients, userID)
	}
	log.WithField("user_id", userID).Debug("SSE client disconnected")
}

// ConnectedUsers returns how many distinct users have an open stream.
func (b *Broker) ConnectedUsers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// NotifyUsers sends message to every connection of the given users. Users
// without an open stream are skipped.
func (b *Broker) NotifyUsers(userIDs []string, message Message) {
	data, err := json.Marshal(message)
	if err != nil {
		log.WithError(err).WithField("type", message.Type).Error("Could not marshal SSE message")
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, id := range userIDs {
		b.sendLocked(id, data)
	}
}

// NotifyUser sends message to every connection of userID.
func (b *Broker) NotifyUser(userID string, message Message) {
	b.NotifyUsers([]string{userID}, message)
}

// Broadcast sends message to every connected user.
func (b *Broker) Broadcast(message Message) {
	data, err := json.Marshal(message)
	if err != nil {
		log.WithError(err).WithField("type", message.Type).Error("Could not marshal SSE message")
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for id := range b.clients {
		b.sendLocked(id, data)
	}
}

// sendLocked must be called with b.mu held. Sends never block: a client
// whose buffer is full misses the message.
func (b *Broker) sendLocked(userID string, data []byte) {
	for ch := range b.clients[userID] {
		select {
		case ch <- data:
		default:
			log.WithField("user_id", userID).Warn("SSE channel is full, dropping message")
		}
	}
}
