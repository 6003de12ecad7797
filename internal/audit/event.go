package audit

import (
	"context"
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

type EventType string

const (
	EventRegister      EventType = "register"
	EventLogin         EventType = "login"
	EventLoginFailed   EventType = "login_failed"
	EventLogout        EventType = "logout"
	EventRefresh       EventType = "refresh"
	EventRefreshDenied EventType = "refresh_denied"
	EventProfileUpdate EventType = "profile_update"
)

type Event struct {
	ID         string
	Type       EventType
	UserID     string
	Email      string
	IP         string
	UserAgent  string
	OccurredAt time.Time
}

// Publisher delivers audit events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, *Event) error { return nil }

type ClientInfo struct {
	IP        string
	UserAgent string
}

type clientKey struct{}

func WithClient(ctx context.Context, info ClientInfo) context.Context {
	return context.WithValue(ctx, clientKey{}, info)
}

func ClientFromContext(ctx context.Context) ClientInfo {
	info, _ := ctx.Value(clientKey{}).(ClientInfo)
	return info
}

// NewEvent stamps an event with a ULID and the client info carried by ctx.
func NewEvent(ctx context.Context, typ EventType, userID, email string) *Event {
	now := time.Now().UTC()
	client := ClientFromContext(ctx)

	return &Event{
		ID:         ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		Type:       typ,
		UserID:     userID,
		Email:      email,
		IP:         client.IP,
		UserAgent:  client.UserAgent,
		OccurredAt: now,
	}
}
