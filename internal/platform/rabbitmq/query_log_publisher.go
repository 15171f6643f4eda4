package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"finrag/internal/model"
)

// QueryLogPublisher sends search log records to the queue drained by
// cmd/querylog-worker. The channel is opened lazily and reopened after a
// failed publish.
type QueryLogPublisher struct {
	conn      *amqp.Connection
	queueName string

	mu sync.Mutex
	ch *amqp.Channel
}

func NewQueryLogPublisher(conn *amqp.Connection, queueName string) *QueryLogPublisher {
	return &QueryLogPublisher{
		conn:      conn,
		queueName: queueName,
	}
}

func (p *QueryLogPublisher) Record(ctx context.Context, entry *model.SearchQueryLog) error {
	payload, err := json.Marshal(QueryLogMessage{
		Query:          entry.Query,
		SearchType:     entry.SearchType,
		EmbeddingModel: entry.EmbeddingModel,
		Embedding:      vectorOf(entry),
		ResultsCount:   entry.ResultsCount,
		ResponseTimeMs: entry.ResponseTimeMs,
		Degraded:       entry.Degraded,
		CreatedAt:      entry.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal query log failed: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil || p.ch.IsClosed() {
		ch, err := p.conn.Channel()
		if err != nil {
			return fmt.Errorf("open rabbitmq channel failed: %w", err)
		}
		if err := DeclareQueue(ch, p.queueName); err != nil {
			_ = ch.Close()
			return err
		}
		p.ch = ch
	}

	if err := p.ch.PublishWithContext(
		ctx,
		"",
		p.queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         payload,
			DeliveryMode: amqp.Persistent,
		},
	); err != nil {
		_ = p.ch.Close()
		p.ch = nil
		return fmt.Errorf("publish query log failed: %w", err)
	}
	return nil
}

func (p *QueryLogPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil {
		return nil
	}
	err := p.ch.Close()
	p.ch = nil
	return err
}

func vectorOf(entry *model.SearchQueryLog) []float32 {
	if entry.Embedding == nil {
		return nil
	}
	return entry.Embedding.Slice()
}
