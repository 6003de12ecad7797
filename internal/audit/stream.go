package audit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

type StreamPublisher struct {
	client     *redis.Client
	streamName string
	maxLen     int64
}

func NewStreamPublisher(client *redis.Client, streamName string) *StreamPublisher {
	return &StreamPublisher{
		client:     client,
		streamName: streamName,
		maxLen:     100000,
	}
}

func (p *StreamPublisher) Publish(ctx context.Context, event *Event) error {
	err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.streamName,
		MaxLen: p.maxLen,
		Approx: true,
		Values: event.Values(),
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish audit event: %w", err)
	}
	return nil
}

// Values flattens the event into stream fields. Empty optional fields are omitted.
func (e *Event) Values() map[string]interface{} {
	fields := map[string]interface{}{
		"event_id":    e.ID,
		"type":        string(e.Type),
		"occurred_at": e.OccurredAt.UnixMilli(),
	}

	if e.UserID != "" {
		fields["user_id"] = e.UserID
	}
	if e.Email != "" {
		fields["email"] = e.Email
	}
	if e.IP != "" {
		fields["ip"] = e.IP
	}
	if e.UserAgent != "" {
		fields["user_agent"] = e.UserAgent
	}

	return fields
}

// EventFromValues is the inverse of Values, used by stream consumers.
func EventFromValues(values map[string]interface{}) (*Event, error) {
	str := func(key string) string {
		v, _ := values[key].(string)
		return v
	}

	id, typ := str("event_id"), str("type")
	if id == "" || typ == "" {
		return nil, fmt.Errorf("audit event missing id or type")
	}

	millis, err := strconv.ParseInt(str("occurred_at"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid occurred_at: %w", err)
	}

	return &Event{
		ID:         id,
		Type:       EventType(typ),
		UserID:     str("user_id"),
		Email:      str("email"),
		IP:         str("ip"),
		UserAgent:  str("user_agent"),
		OccurredAt: time.UnixMilli(millis).UTC(),
	}, nil
}
