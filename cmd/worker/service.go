package main

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/sellerhub-backend/pkg/logger"
	"github.com/angelmondragon/sellerhub-backend/pkg/outbox/registry"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type messageSource interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

type eventDecoder interface {
	DecodeMessage(eventType string, body []byte) (*registry.ResolvedEvent, error)
}

type eventProcessor interface {
	Process(ctx context.Context, event *registry.ResolvedEvent) error
}

type ServiceParams struct {
	Logger       *logger.Logger
	Dependencies map[string]pinger
	Source       messageSource
	Decoder      eventDecoder
	Processor    eventProcessor
}

type Service struct {
	logg      *logger.Logger
	deps      map[string]pinger
	source    messageSource
	decoder   eventDecoder
	processor eventProcessor
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Source == nil {
		return nil, errors.New("subscription is required")
	}
	if params.Decoder == nil {
		return nil, errors.New("event decoder is required")
	}
	if params.Processor == nil {
		return nil, errors.New("event processor is required")
	}
	return &Service{
		logg:      params.Logger,
		deps:      params.Dependencies,
		source:    params.Source,
		decoder:   params.Decoder,
		processor: params.Processor,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	for name, dep := range s.deps {
		if dep == nil {
			continue
		}
		if err := dep.Ping(ctx); err != nil {
			s.logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
	}
	s.logg.Info(ctx, "all worker dependencies are ready")
	return nil
}

// Run receives domain events until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}
	return s.source.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if s.handle(ctx, msg.ID, msg.Attributes["event_type"], msg.Data) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// handle reports whether the message should be acknowledged. Only retryable
// processing failures are redelivered.
func (s *Service) handle(ctx context.Context, messageID, eventType string, data []byte) bool {
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"message_id": messageID,
		"event_type": eventType,
	})

	event, err := s.decoder.DecodeMessage(eventType, data)
	if err != nil {
		s.logg.Warn(logCtx, fmt.Sprintf("dropping undecodable message: %v", err))
		return true
	}

	if err := s.processor.Process(logCtx, event); err != nil {
		if registry.IsNonRetryable(err) {
			s.logg.Error(logCtx, "event rejected", err)
			return true
		}
		s.logg.Error(logCtx, "event processing failed, will retry", err)
		return false
	}
	return true
}
