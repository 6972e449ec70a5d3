package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"coursetutor/internal/app"
	"coursetutor/internal/model"
)

// Ingestor is the part of the ingestion service the worker drives.
type Ingestor interface {
	IngestCourse(ctx context.Context, courseID uint) (*app.CourseReport, error)
	IngestSource(ctx context.Context, sourceType model.SourceType, id uint) (*app.IngestResult, error)
}

// IngestWorker consumes ingest jobs. A job that failed is logged and
// acknowledged so a poison message cannot loop. A job interrupted by Close is
// requeued.
type IngestWorker struct {
	conn      *amqp.Connection
	ingestor  Ingestor
	queueName string
	prefetch  int
	logger    *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewIngestWorker(conn *amqp.Connection, ingestor Ingestor, queueName string, prefetch int, logger *zap.Logger) *IngestWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestWorker{
		conn:      conn,
		ingestor:  ingestor,
		queueName: queueName,
		prefetch:  max(1, prefetch),
		logger:    logger.Named("ingest_worker"),
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

	_, err = ch.QueueDeclare(
		w.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("declare worker queue failed: %w", err)
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

	for range w.prefetch {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.consume(workerCtx, deliveries)
		}()
	}
	go func() {
		w.wg.Wait()
		_ = ch.Close()
	}()

	return nil
}

func (w *IngestWorker) consume(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			err := w.Handle(ctx, d.Body)
			if ctx.Err() != nil {
				w.logger.Info("ingest job interrupted, requeueing", zap.ByteString("body", d.Body))
				_ = d.Nack(false, true)
				return
			}
			if err != nil {
				w.logger.Error("ingest job failed", zap.Error(err), zap.ByteString("body", d.Body))
			}
			_ = d.Ack(false)
		}
	}
}

// Handle decodes and runs one job.
func (w *IngestWorker) Handle(ctx context.Context, body []byte) error {
	var job model.IngestJob
	if err := json.Unmarshal(body, &job); err != nil {
		return fmt.Errorf("decode ingest job failed: %w", err)
	}
	if err := job.Validate(); err != nil {
		return err
	}
	log := w.logger.With(zap.String("kind", string(job.Kind)))

	switch job.Kind {
	case model.JobIndexCourse:
		report, err := w.ingestor.IngestCourse(ctx, job.CourseID)
		if err != nil {
			return err
		}
		if failed := report.Count(app.IngestFailed); failed > 0 {
			log.Warn("course indexed with failures", zap.Uint("course_id", job.CourseID), zap.Int("failed", failed))
		}
		return nil
	case model.JobIndexSource:
		_, err := w.ingestor.IngestSource(ctx, job.SourceType, job.SourceID)
		if errors.Is(err, app.ErrSourceNotFound) {
			log.Info("source vanished before indexing", zap.Uint("source_id", job.SourceID))
			return nil
		}
		return err
	}
	return model.ErrInvalidJob
}

func (w *IngestWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
