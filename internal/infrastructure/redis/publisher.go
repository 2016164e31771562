package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"finlink/internal/domain/aggregation"
)

// streamMaxLen bounds the event stream; XADD trims approximately.
const streamMaxLen = 10000

type envelope struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

type credentialLinkedData struct {
	UserID         string `json:"userId"`
	CredentialID   string `json:"credentialId"`
	ItemID         string `json:"itemId,omitempty"`
	AccountsLinked int    `json:"accountsLinked"`
}

// Publisher appends domain events to a Redis stream.
type Publisher struct {
	client *redis.Client
	stream string
}

func NewPublisher(client *redis.Client, stream string) *Publisher {
	return &Publisher{client: client, stream: stream}
}

func (p *Publisher) Publish(ctx context.Context, e aggregation.Event) error {
	body, err := encodeEvent(e, time.Now().UTC())
	if err != nil {
		return err
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]any{
			"type":  e.Type,
			"event": body,
		},
	}
	if _, err := p.client.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

func encodeEvent(e aggregation.Event, at time.Time) ([]byte, error) {
	body, err := json.Marshal(envelope{
		Type:      e.Type,
		Timestamp: at,
		Data: credentialLinkedData{
			UserID:         e.UserID,
			CredentialID:   e.CredentialID,
			ItemID:         e.ItemID,
			AccountsLinked: e.AccountsLinked,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return body, nil
}
