package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/Varun5711/talentlens/internal/audit"
	"github.com/Varun5711/talentlens/internal/config"
	"github.com/Varun5711/talentlens/internal/enrichment"
)

type Client struct {
	conn     driver.Conn
	database string
}

// NewClient connects to the default database; audit tables are always
// addressed with their database prefix so EnsureSchema can create it.
func NewClient(ctx context.Context, cfg config.ClickHouseConfig) (*Client, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: "default",
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout:      10 * time.Second,
		MaxOpenConns:     cfg.MaxConns,
		MaxIdleConns:     cfg.MaxConns / 2,
		ConnMaxLifetime:  time.Hour,
		ConnOpenStrategy: clickhouse.ConnOpenInOrder,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}

	return &Client{conn: conn, database: cfg.Database}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

func (c *Client) table() string {
	return c.database + ".auth_events"
}

// EnsureSchema creates the audit database and table if missing. Run it
// under the schema lock when several workers start together.
func (c *Client) EnsureSchema(ctx context.Context) error {
	if err := c.conn.Exec(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", c.database)); err != nil {
		return fmt.Errorf("failed to create database %s: %w", c.database, err)
	}

	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		event_id        String,
		event_type      LowCardinality(String),
		user_id         String,
		email           String,
		occurred_at     DateTime64(3, 'UTC'),
		ip_address      String,
		network         LowCardinality(String),
		user_agent      String,
		browser         LowCardinality(String),
		browser_version String,
		os              LowCardinality(String),
		os_version      String,
		device_type     LowCardinality(String),
		is_bot          UInt8
	)
	ENGINE = ReplacingMergeTree
	PARTITION BY toYYYYMM(occurred_at)
	ORDER BY (event_type, occurred_at, event_id)
	TTL toDateTime(occurred_at) + INTERVAL 180 DAY`, c.table())

	if err := c.conn.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create auth_events table: %w", err)
	}
	return nil
}

// AuthEvent is one row of auth_events: the stream event plus enrichment.
type AuthEvent struct {
	EventID    string
	EventType  string
	UserID     string
	Email      string
	OccurredAt time.Time

	IPAddress string
	Network   string

	UserAgent      string
	Browser        string
	BrowserVersion string
	OS             string
	OSVersion      string
	DeviceType     string
	IsBot          uint8
}

func NewAuthEvent(e *audit.Event) AuthEvent {
	ua := enrichment.ParseUserAgent(e.UserAgent)

	row := AuthEvent{
		EventID:        e.ID,
		EventType:      string(e.Type),
		UserID:         e.UserID,
		Email:          e.Email,
		OccurredAt:     e.OccurredAt,
		IPAddress:      e.IP,
		Network:        enrichment.ClassifyIP(e.IP),
		UserAgent:      e.UserAgent,
		Browser:        ua.Browser,
		BrowserVersion: ua.BrowserVersion,
		OS:             ua.OS,
		OSVersion:      ua.OSVersion,
		DeviceType:     ua.DeviceType,
	}
	if ua.IsBot {
		row.IsBot = 1
	}
	return row
}

// WriteEvents enriches and inserts a batch of stream events.
func (c *Client) WriteEvents(ctx context.Context, events []*audit.Event) error {
	rows := make([]AuthEvent, 0, len(events))
	for _, e := range events {
		rows = append(rows, NewAuthEvent(e))
	}
	return c.InsertAuthEvents(ctx, rows)
}

func (c *Client) InsertAuthEvents(ctx context.Context, events []AuthEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := c.conn.PrepareBatch(ctx, fmt.Sprintf(`INSERT INTO %s (
		event_id, event_type, user_id, email, occurred_at,
		ip_address, network,
		user_agent, browser, browser_version, os, os_version, device_type, is_bot
	)`, c.table()))
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, e := range events {
		err := batch.Append(
			e.EventID,
			e.EventType,
			e.UserID,
			e.Email,
			e.OccurredAt,
			e.IPAddress,
			e.Network,
			e.UserAgent,
			e.Browser,
			e.BrowserVersion,
			e.OS,
			e.OSVersion,
			e.DeviceType,
			e.IsBot,
		)
		if err != nil {
			batch.Abort()
			return fmt.Errorf("failed to append event %s: %w", e.EventID, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}
