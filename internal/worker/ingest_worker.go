package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"gopherai-study/internal/app"
	"gopherai-study/internal/model"
	"gopherai-study/internal/platform/rabbitmq"
)

// Ingester files one document into a session.
type Ingester interface {
	Ingest(ctx context.Context, input app.IngestInput) (*app.IngestResult, error)
}

type disposition int

const (
	ack disposition = iota
	drop
	requeue
)

// IngestWorker consumes queued ingestion jobs. A job is acked when it is
// stored or can never succeed, and requeued when storage was unavailable.
type IngestWorker struct {
	conn      *amqp.Connection
	ingester  Ingester
	queueName string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewIngestWorker(conn *amqp.Connection, ingester Ingester, queueName string) *IngestWorker {
	return &IngestWorker{
		conn:      conn,
		ingester:  ingester,
		queueName: queueName,
	}
}

func (w *IngestWorker) Start(ctx context.Context) error {
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
	if _, err := rabbitmq.DeclareQueue(ch, w.queueName); err != nil {
		_ = ch.Close()
		cancel()
		return err
	}
	// ingestion calls the model; take one job at a time per worker
	if err := ch.Qos(1, 0, false); err != nil {
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
					return
				}
				switch w.handle(workerCtx, d.Body) {
				case ack:
					_ = d.Ack(false)
				case drop:
					_ = d.Nack(false, false)
				case requeue:
					_ = d.Nack(false, true)
				}
			}
		}
	}()

	return nil
}

func (w *IngestWorker) handle(ctx context.Context, body []byte) disposition {
	logger := logutil.GetLogger(ctx)

	var job model.IngestJob
	if err := json.Unmarshal(body, &job); err != nil {
		logger.Error("decode ingest job failed", zap.Error(err))
		return drop
	}
	logger = logger.With(zap.String("session_id", job.SessionID), zap.String("filename", job.Filename))

	_, err := w.ingester.Ingest(ctx, app.IngestInput{
		SessionID:   job.SessionID,
		Filename:    job.Filename,
		ContentType: job.ContentType,
		UserID:      job.UserID,
		Chunks:      job.Chunks,
	})
	switch {
	case err == nil:
		logger.Info("ingest job done")
		return ack
	case errors.Is(err, app.ErrInvalidInput):
		logger.Warn("ingest job rejected", zap.Error(err))
		return ack
	case errors.Is(err, app.ErrStorageUnavailable):
		logger.Warn("ingest job requeued", zap.Error(err))
		return requeue
	default:
		logger.Error("ingest job failed", zap.Error(err))
		return drop
	}
}

func (w *IngestWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
