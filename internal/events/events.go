// Package events publishes domain events on NATS so other processes (the
// admin CLI, the server, anything else on the bus) can react to them.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

const (
	SubjectPickSaved        = "bowlpickem.pick.saved"
	SubjectPoolMemberJoined = "bowlpickem.pool.member_joined"
	SubjectResultRecorded   = "bowlpickem.games.result_recorded"
)

// PickSaved is published after a pick is created or changed.
type PickSaved struct {
	UserID     string    `json:"userId"`
	GameID     string    `json:"gameId"`
	PickedTeam string    `json:"pickedTeam"`
	Created    bool      `json:"created"`
	At         time.Time `json:"at"`
}

// PoolMemberJoined is published after a user joins a pool they were not in.
type PoolMemberJoined struct {
	PoolID   string    `json:"poolId"`
	PoolName string    `json:"poolName"`
	UserID   string    `json:"userId"`
	At       time.Time `json:"at"`
}

// ResultRecorded is published after a game is finalized.
type ResultRecorded struct {
	GameID string    `json:"gameId"`
	Winner string    `json:"winner"`
	At     time.Time `json:"at"`
}

// Publisher sends a JSON-encoded payload on subject.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload interface{}) error
}

// Noop discards every event. It is used when no NATS server is configured.
type Noop struct{}

func (Noop) Publish(context.Context, string, interface{}) error { return nil }

// Connect dials the NATS server at url, authenticating with token when set.
func Connect(url, token, name string) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name(name),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}
	return nats.Connect(url, opts...)
}

// NATSPublisher publishes events on a NATS connection.
type NATSPublisher struct {
	conn *nats.Conn
}

func NewNATSPublisher(conn *nats.Conn) *NATSPublisher {
	return &NATSPublisher{conn: conn}
}

func (p *NATSPublisher) Publish(ctx context.Context, subject string, payload interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", subject, err)
	}
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// SubscribeResults calls handle for every ResultRecorded event on conn.
// Malformed messages are logged and skipped.
func SubscribeResults(conn *nats.Conn, handle func(ResultRecorded)) (*nats.Subscription, error) {
	return conn.Subscribe(SubjectResultRecorded, func(msg *nats.Msg) {
		var evt ResultRecorded
		if err := json.Unmarshal(msg.Data, &evt); err != nil {
			log.WithError(err).WithField("subject", msg.Subject).Warn("dropping malformed event")
			return
		}
		handle(evt)
	})
}
