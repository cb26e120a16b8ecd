// Package events describes account lifecycle notifications and publishes
// them on the message queue.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/alva-alumni/apiserver/types"
	"github.com/rs/zerolog"
)

const (
	ChannelRegistered = "alumni.registered"
	ChannelApproved   = "alumni.approved"
)

// AccountEvent is the JSON payload carried by every lifecycle message.
type AccountEvent struct {
	Type       string    `json:"type"`
	AlumniID   string    `json:"alumni_id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	Approved   bool      `json:"approved"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewAccountEvent builds the event of the given type for an account.
func NewAccountEvent(channel string, alumni types.Alumni) AccountEvent {
	return AccountEvent{
		Type:       channel,
		AlumniID:   alumni.ID,
		Email:      alumni.Email,
		Name:       alumni.Name,
		Approved:   alumni.IsApproved,
		OccurredAt: time.Now().UTC(),
	}
}

// Sender is the publishing half of the message queue.
type Sender interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// Publisher emits account events. A Publisher without a sender only logs.
type Publisher struct {
	sender Sender
	logger zerolog.Logger
}

func NewPublisher(sender Sender, logger zerolog.Logger) *Publisher {
	return &Publisher{sender: sender, logger: logger}
}

// Publish sends the event. Failures are logged and swallowed: the account
// change that triggered the event has already been committed.
func (p *Publisher) Publish(ctx context.Context, event AccountEvent) {
	if p == nil {
		return
	}
	log := p.logger.With().Str("event", event.Type).Str("alumni_id", event.AlumniID).Logger()
	if p.sender == nil {
		log.Debug().Msg("no message queue configured; event dropped")
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("encode event")
		return
	}
	id, err := p.sender.Publish(ctx, event.Type, data, map[string]string{
		"type":      event.Type,
		"alumni_id": event.AlumniID,
	})
	if err != nil {
		log.Error().Err(err).Msg("publish event")
		return
	}
	log.Debug().Str("message_id", id).Msg("event published")
}

// Decode parses a lifecycle message payload.
func Decode(data []byte) (AccountEvent, error) {
	var event AccountEvent
	err := json.Unmarshal(data, &event)
	return event, err
}
