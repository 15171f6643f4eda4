package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"finrag/internal/model"
	"finrag/internal/platform/rabbitmq"
)

// QueryLogStore persists decoded search log records.
type QueryLogStore interface {
	Record(ctx context.Context, entry *model.SearchQueryLog) error
}

var errMalformed = errors.New("malformed query log message")

// QueryLogWorker drains the search log queue into the store.
type QueryLogWorker struct {
	conn      *amqp.Connection
	store     QueryLogStore
	queueName string
	prefetch  int
	logger    *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewQueryLogWorker(conn *amqp.Connection, store QueryLogStore, queueName string, prefetch int, logger *zap.Logger) *QueryLogWorker {
	if prefetch <= 0 {
		prefetch = 32
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryLogWorker{
		conn:      conn,
		store:     store,
		queueName: queueName,
		prefetch:  prefetch,
		logger:    logger,
	}
}

func (w *QueryLogWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}
	if err := rabbitmq.DeclareQueue(ch, w.queueName); err != nil {
		_ = ch.Close()
		cancel()
		return err
	}
	if err := ch.Qos(w.prefetch, 0, false); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("set worker qos failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					w.logger.Warn("query log deliveries closed")
					return
				}
				w.deliver(workerCtx, d)
			}
		}
	}()

	w.logger.Info("query log worker started", zap.String("queue", w.queueName))
	return nil
}

func (w *QueryLogWorker) deliver(ctx context.Context, d amqp.Delivery) {
	err := w.handle(ctx, d.Body)
	switch {
	case err == nil:
		_ = d.Ack(false)
	case errors.Is(err, errMalformed):
		w.logger.Warn("dropping query log message", zap.Error(err))
		_ = d.Nack(false, false)
	default:
		// One redelivery for store failures, then drop.
		w.logger.Warn("persist query log failed",
			zap.Bool("redelivered", d.Redelivered),
			zap.Error(err))
		_ = d.Nack(false, !d.Redelivered)
	}
}

func (w *QueryLogWorker) handle(ctx context.Context, body []byte) error {
	var msg rabbitmq.QueryLogMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	if msg.Query == "" || msg.SearchType == "" {
		return fmt.Errorf("%w: query and searchType are required", errMalformed)
	}
	return w.store.Record(ctx, msg.ToModel())
}

func (w *QueryLogWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
