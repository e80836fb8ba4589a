package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/amirphl/backoffice/models"
	"github.com/nats-io/nats.go"
)

// AuditPublisher fans persisted access logs out to other consumers
type AuditPublisher interface {
	Publish(ctx context.Context, entry *models.AccessLog) error
	Close()
}

// NATSPublisherConfig configures NATSAuditPublisher
type NATSPublisherConfig struct {
	URL           string
	Subject       string
	Name          string
	MaxReconnects int
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// DefaultNATSPublisherConfig returns defaults for the access log subject
func DefaultNATSPublisherConfig(url, subject string) NATSPublisherConfig {
	return NATSPublisherConfig{
		URL:           url,
		Subject:       subject,
		Name:          "backoffice-audit",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
	}
}

// NATSAuditPublisher publishes access logs as JSON to a NATS subject
type NATSAuditPublisher struct {
	conn    *nats.Conn
	subject string
}

func NewNATSAuditPublisher(cfg NATSPublisherConfig) (*NATSAuditPublisher, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			slog.Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSAuditPublisher{conn: conn, subject: cfg.Subject}, nil
}

func (p *NATSAuditPublisher) Publish(ctx context.Context, entry *models.AccessLog) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal access log: %w", err)
	}
	msg := &nats.Msg{Subject: p.subject, Data: data, Header: nats.Header{}}
	msg.Header.Set("action", entry.Action)
	msg.Header.Set("resource_type", entry.ResourceType)
	return p.conn.PublishMsg(msg)
}

// Close drains pending messages and closes the connection
func (p *NATSAuditPublisher) Close() {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}
