package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"ivisionary/pkg/domain"
	"ivisionary/pkg/store"
)

// Sink forwards a recorded entry to an external destination.
type Sink interface {
	Publish(ctx context.Context, entry domain.AuditEntry) error
}

// NoopSink drops entries.
type NoopSink struct{}

func (NoopSink) Publish(context.Context, domain.AuditEntry) error { return nil }

// MultiSink publishes to every sink and joins their errors.
type MultiSink []Sink

func (m MultiSink) Publish(ctx context.Context, entry domain.AuditEntry) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// HTTPSink POSTs each entry as JSON.
type HTTPSink struct {
	url        string
	httpClient *http.Client
}

func NewHTTPSink(url string) *HTTPSink {
	return &HTTPSink{
		url:        strings.TrimSpace(url),
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

func (s *HTTPSink) Publish(ctx context.Context, entry domain.AuditEntry) error {
	body, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("audit http sink: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode >= 300 {
		return fmt.Errorf("audit http sink: status %d", resp.StatusCode)
	}
	return nil
}

// RedisStreamSink appends entries to a capped Redis stream.
type RedisStreamSink struct {
	client redis.UniversalClient
	stream string
	maxLen int64
}

func NewRedisStreamSink(client redis.UniversalClient, stream string) *RedisStreamSink {
	stream = strings.TrimSpace(stream)
	if stream == "" {
		stream = "ivisionary:audit"
	}
	return &RedisStreamSink{client: client, stream: stream, maxLen: 10000}
}

func (s *RedisStreamSink) Publish(ctx context.Context, entry domain.AuditEntry) error {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return err
	}
	return s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: map[string]any{
			"id":         entry.ID,
			"timestamp":  entry.Timestamp.Format(time.RFC3339Nano),
			"action":     entry.Action,
			"details":    string(details),
			"ip_address": entry.IPAddress,
			"status":     string(entry.Status),
		},
	}).Err()
}

// AMQPSink publishes persistent JSON messages to a durable queue.
type AMQPSink struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
}

// NewAMQPSink dials url and declares queue.
func NewAMQPSink(url, queue string) (*AMQPSink, error) {
	queue = strings.TrimSpace(queue)
	if queue == "" {
		queue = "ivisionary.audit"
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("amqp declare queue: %w", err)
	}
	return &AMQPSink{conn: conn, channel: ch, queue: queue}, nil
}

func (s *AMQPSink) Publish(ctx context.Context, entry domain.AuditEntry) error {
	body, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return s.channel.PublishWithContext(ctx, "", s.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    entry.ID,
		Timestamp:    entry.Timestamp,
		Type:         entry.Action,
		Body:         body,
	})
}

func (s *AMQPSink) Close() error {
	if s == nil {
		return nil
	}
	return errors.Join(s.channel.Close(), s.conn.Close())
}

// ArchiveSink persists entries through the relational store.
type ArchiveSink struct {
	archive store.AuditArchive
}

func NewArchiveSink(archive store.AuditArchive) *ArchiveSink {
	return &ArchiveSink{archive: archive}
}

func (s *ArchiveSink) Publish(ctx context.Context, entry domain.AuditEntry) error {
	return s.archive.AppendAuditEntry(ctx, entry)
}
