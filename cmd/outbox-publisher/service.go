package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/sellerhub-backend/pkg/config"
	"github.com/angelmondragon/sellerhub-backend/pkg/db/models"
	"github.com/angelmondragon/sellerhub-backend/pkg/enums"
	"github.com/angelmondragon/sellerhub-backend/pkg/logger"
	"github.com/angelmondragon/sellerhub-backend/pkg/outbox/registry"
)

const (
	fallbackBatchSize      = 50
	fallbackPublishTimeout = 15 * time.Second
	fallbackMaxAttempts    = 10
	backoffCeiling         = 10 * time.Second
	maxJitter              = 250 * time.Millisecond

	resultPublished  = "published"
	resultRetry      = "retry"
	resultDeadLetter = "dead_letter"
	resultDeferred   = "deferred"
)

type transactor interface {
	Ping(ctx context.Context) error
	WithTx(ctx context.Context, fn func(*gorm.DB) error) error
}

type topicSource interface {
	Ping(ctx context.Context) error
	Publisher(topic string) *gcppubsub.Publisher
}

// outboxRepository claims pending rows and records what happened to them.
type outboxRepository interface {
	FetchUnpublishedForPublish(db *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(db *gorm.DB, id uuid.UUID) error
	MarkFailedTx(db *gorm.DB, id uuid.UUID, cause error) error
	MarkTerminalTx(db *gorm.DB, id uuid.UUID, cause error, attempts int) error
}

type dlqRepository interface {
	InsertTx(db *gorm.DB, entry models.OutboxDLQ) error
}

type registryResolver interface {
	Resolve(row models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type outboxRecorder interface {
	ObserveBatch(elapsed time.Duration)
	IncResult(eventType, result string)
}

type publisherFactory func(string) publisher

// publisher is the slice of *pubsub.Publisher the dispatcher relies on.
// A failed publish pauses its ordering key until ResumePublish is called.
type publisher interface {
	Publish(ctx context.Context, msg *gcppubsub.Message) publishResult
	ResumePublish(orderingKey string)
}

type publishResult interface {
	Get(ctx context.Context) (serverID string, err error)
}

type ServiceParams struct {
	Config           *config.Config
	Logger           *logger.Logger
	DB               transactor
	PubSub           topicSource
	Repository       outboxRepository
	Registry         registryResolver
	PublisherFactory publisherFactory
	DLQRepository    dlqRepository
	Metrics          outboxRecorder
}

// Service drains outbox rows onto Pub/Sub. Rows sharing an aggregate are
// published with the same ordering key, and a failure holds back the rest of
// that aggregate's rows until the next batch.
type Service struct {
	log        *logger.Logger
	tx         transactor
	source     topicSource
	rows       outboxRepository
	resolver   registryResolver
	dlq        dlqRepository
	publishers publisherFactory
	metrics    outboxRecorder

	batchSize      int
	maxAttempts    int
	pollInterval   time.Duration
	publishTimeout time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Config == nil:
		return nil, errors.New("config is required")
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.PubSub == nil:
		return nil, errors.New("pubsub client is required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository is required")
	case params.Registry == nil:
		return nil, errors.New("event registry is required")
	case params.DLQRepository == nil:
		return nil, errors.New("dlq repository is required")
	}

	publishers := params.PublisherFactory
	if publishers == nil {
		publishers = orderedPublisherFactory(params.PubSub)
	}

	cfg := params.Config.Outbox
	return &Service{
		log:            params.Logger,
		tx:             params.DB,
		source:         params.PubSub,
		rows:           params.Repository,
		resolver:       params.Registry,
		dlq:            params.DLQRepository,
		publishers:     publishers,
		metrics:        params.Metrics,
		batchSize:      positiveOr(cfg.BatchSize, fallbackBatchSize),
		maxAttempts:    positiveOr(cfg.MaxAttempts, fallbackMaxAttempts),
		pollInterval:   cfg.PollInterval(),
		publishTimeout: positiveOr(cfg.PublishTimeout, fallbackPublishTimeout),
	}, nil
}

func positiveOr[T int | time.Duration](v, fallback T) T {
	if v <= 0 {
		return fallback
	}
	return v
}

func (s *Service) checkDependencies(ctx context.Context) error {
	for _, dep := range []struct {
		name string
		ping func(context.Context) error
	}{
		{"database", s.tx.Ping},
		{"pubsub", s.source.Ping},
	} {
		if err := dep.ping(ctx); err != nil {
			s.log.Error(ctx, dep.name+" unreachable at startup", err)
			return fmt.Errorf("%s ping failed: %w", dep.name, err)
		}
	}
	return nil
}

// Run polls the outbox until ctx is canceled. Busy batches loop immediately;
// failing batches back off exponentially up to backoffCeiling.
func (s *Service) Run(ctx context.Context) error {
	if err := s.checkDependencies(ctx); err != nil {
		return err
	}

	wait := s.pollInterval
	for ctx.Err() == nil {
		busy, err := s.processBatch(ctx)
		var pause time.Duration
		switch {
		case err != nil:
			s.log.Error(ctx, "outbox.batch_failed", err)
			wait = nextBackoff(wait, s.pollInterval, backoffCeiling)
			pause = wait
		case busy:
			wait = s.pollInterval
			continue
		default:
			wait = s.pollInterval
			pause = wait
		}
		if err := sleepCtx(ctx, jittered(pause)); err != nil {
			break
		}
	}
	s.log.Info(ctx, "outbox.publisher_stopped")
	return ctx.Err()
}

// outcome is the fate of one row within a batch.
type outcome int

const (
	outcomePublished outcome = iota
	outcomeRetry
	outcomeDeadLetter
	outcomeDeferred
)

func (s *Service) processBatch(ctx context.Context) (bool, error) {
	start := time.Now()
	processed := false
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		pending, err := s.rows.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil || len(pending) == 0 {
			return err
		}
		processed = true

		blocked := make(map[string]struct{})
		for _, event := range pending {
			key := event.OrderingKey()
			if _, held := blocked[key]; held {
				s.record(event.EventType, resultDeferred)
				continue
			}
			result, err := s.dispatch(ctx, tx, event, key)
			if err != nil {
				return err
			}
			if result == outcomeRetry {
				blocked[key] = struct{}{}
			}
		}
		return nil
	})
	if processed && s.metrics != nil {
		s.metrics.ObserveBatch(time.Since(start))
	}
	return processed, err
}

// dispatch publishes one row and records its outcome on the row. The returned
// error is reserved for bookkeeping failures that must abort the batch.
func (s *Service) dispatch(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, key string) (outcome, error) {
	resolved, err := s.resolver.Resolve(event)
	if err != nil {
		return outcomeDeadLetter, s.deadLetter(ctx, tx, event, enums.OutboxDLQReasonNonRetryable, err, s.logFields(event, nil))
	}

	fields := s.logFields(event, resolved)
	fields["ordering_key"] = key

	pubErr := s.publish(ctx, event, resolved, key)
	if pubErr == nil {
		if err := s.rows.MarkPublishedTx(tx, event.ID); err != nil {
			return outcomePublished, fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		s.record(event.EventType, resultPublished)
		s.log.Info(s.log.WithFields(ctx, fields), "outbox.published")
		return outcomePublished, nil
	}

	if registry.IsNonRetryable(pubErr) {
		return outcomeDeadLetter, s.deadLetter(ctx, tx, event, enums.OutboxDLQReasonNonRetryable, pubErr, fields)
	}

	attempt := event.AttemptCount + 1
	fields["attempt"] = attempt
	if attempt >= s.maxAttempts {
		exhausted := fmt.Errorf("gave up after %d attempts: %w", attempt, pubErr)
		return outcomeDeadLetter, s.deadLetter(ctx, tx, event, enums.OutboxDLQReasonMaxAttempts, exhausted, fields)
	}

	fields["error"] = pubErr.Error()
	s.log.Warn(s.log.WithFields(ctx, fields), "outbox.publish_failed")
	if err := s.rows.MarkFailedTx(tx, event.ID, pubErr); err != nil {
		return outcomeRetry, fmt.Errorf("mark failure %s: %w", event.ID, err)
	}
	s.record(event.EventType, resultRetry)
	return outcomeRetry, nil
}

func (s *Service) deadLetter(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error, fields map[string]any) error {
	msg := cause.Error()
	fields["dlq_reason"] = reason
	fields["error"] = msg
	s.log.Warn(s.log.WithFields(ctx, fields), "outbox.dead_lettered")

	if err := s.dlq.InsertTx(tx, models.OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &msg,
		AttemptCount:  event.AttemptCount,
		FailedAt:      time.Now().UTC(),
	}); err != nil {
		return fmt.Errorf("write dead letter for %s: %w", event.ID, err)
	}
	if err := s.rows.MarkTerminalTx(tx, event.ID, cause, s.maxAttempts); err != nil {
		return fmt.Errorf("close out %s: %w", event.ID, err)
	}
	s.record(event.EventType, resultDeadLetter)
	return nil
}

func (s *Service) record(eventType enums.OutboxEventType, result string) {
	if s.metrics != nil {
		s.metrics.IncResult(string(eventType), result)
	}
}

func (s *Service) publish(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent, key string) error {
	topic := resolved.Descriptor.Topic
	pub := s.publishers(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("no publisher for topic %q", topic))
	}

	attrs := map[string]string{
		"event_id":       resolved.Envelope.EventID,
		"event_type":     string(event.EventType),
		"aggregate_type": string(event.AggregateType),
		"aggregate_id":   event.AggregateID.String(),
		"created_at":     event.CreatedAt.Format(time.RFC3339Nano),
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.publishTimeout)
	defer cancel()
	res := pub.Publish(sendCtx, &gcppubsub.Message{Data: event.Payload, OrderingKey: key, Attributes: attrs})
	if res == nil {
		return registry.NewNonRetryableError(fmt.Errorf("topic %q returned no publish result", topic))
	}
	if _, err := res.Get(sendCtx); err != nil {
		pub.ResumePublish(key)
		return err
	}
	return nil
}

// logFields describes a row for logging. resolved may be nil when the row
// could not be decoded.
func (s *Service) logFields(event models.OutboxEvent, resolved *registry.ResolvedEvent) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     string(event.EventType),
		"aggregate_type": string(event.AggregateType),
		"aggregate_id":   event.AggregateID.String(),
		"prior_attempts": event.AttemptCount,
	}
	if resolved != nil {
		fields["topic"] = resolved.Descriptor.Topic
		fields["event_id"] = resolved.Envelope.EventID
		fields["occurred_at"] = resolved.Envelope.OccurredAt.Format(time.RFC3339Nano)
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return fields
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func nextBackoff(current, base, ceiling time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	return min(current*2, ceiling)
}

func jittered(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + rand.N(maxJitter)
}

// orderedPublisherFactory caches one ordering-enabled publisher per topic.
func orderedPublisherFactory(client topicSource) publisherFactory {
	publishers := make(map[string]publisher)
	return func(topic string) publisher {
		if pub, ok := publishers[topic]; ok {
			return pub
		}
		p := client.Publisher(topic)
		if p == nil {
			return nil
		}
		p.EnableMessageOrdering = true
		pub := orderedPublisher{Publisher: p}
		publishers[topic] = pub
		return pub
	}
}

// orderedPublisher adapts *pubsub.Publisher, whose Publish returns a
// concrete result type, to the publisher interface.
type orderedPublisher struct {
	*gcppubsub.Publisher
}

func (p orderedPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return p.Publisher.Publish(ctx, msg)
}
