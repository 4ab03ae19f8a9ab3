// internal/bids/auditor.go
package bids

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/jason-s-yu/hiddencargo/internal/clients"
	"github.com/jason-s-yu/hiddencargo/internal/models"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
)

// HTTPAuditor reports to the remote bid service.
type HTTPAuditor struct {
	client *clients.BaseClient
}

func NewHTTPAuditor(baseURL, apiKey string) *HTTPAuditor {
	return &HTTPAuditor{client: clients.NewBaseClient(baseURL, apiKey)}
}

func (a *HTTPAuditor) Record(ctx context.Context, rec models.AuditRecord) error {
	switch rec.Kind {
	case models.AuditRoundStarted:
		return a.client.Post(ctx, "/bids/start", map[string]string{
			"container":    rec.ContainerID,
			"initialValue": strconv.Itoa(rec.InitialValue),
			"realValue":    strconv.Itoa(rec.RealValue),
		}, nil)
	case models.AuditBidPlaced:
		return a.client.Post(ctx, "/bids/offer", map[string]string{
			"container": rec.ContainerID,
			"owner":     rec.Nickname,
			"amount":    strconv.Itoa(rec.Amount),
		}, nil)
	case models.AuditRoundClosed:
		return a.client.Post(ctx, "/bids/close/"+url.PathEscape(rec.ContainerID), nil, nil)
	}
	return fmt.Errorf("unknown audit kind %q", rec.Kind)
}

// RedisAuditor appends records as JSON to a Redis list for an offline consumer.
type RedisAuditor struct {
	rdb   *redis.Client
	queue string
}

func NewRedisAuditor(rdb *redis.Client, queue string) *RedisAuditor {
	return &RedisAuditor{rdb: rdb, queue: queue}
}

func (a *RedisAuditor) Record(ctx context.Context, rec models.AuditRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal AuditRecord: %w", err)
	}
	if err := a.rdb.RPush(ctx, a.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w: %w", a.queue, models.ErrExternalServiceUnavailable, err)
	}
	return nil
}

// NATSAuditor publishes records on <subject>.<kind>.
type NATSAuditor struct {
	nc      *nats.Conn
	subject string
}

func NewNATSAuditor(nc *nats.Conn, subject string) *NATSAuditor {
	return &NATSAuditor{nc: nc, subject: subject}
}

// Subject returns the subject a record of kind is published on.
func (a *NATSAuditor) Subject(kind models.AuditKind) string {
	return a.subject + "." + string(kind)
}

func (a *NATSAuditor) Record(ctx context.Context, rec models.AuditRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal AuditRecord: %w", err)
	}
	if err := a.nc.Publish(a.Subject(rec.Kind), data); err != nil {
		return fmt.Errorf("nats publish: %w: %w", models.ErrExternalServiceUnavailable, err)
	}
	return nil
}

// NoopAuditor drops every record.
type NoopAuditor struct{}

func (NoopAuditor) Record(context.Context, models.AuditRecord) error { return nil }
