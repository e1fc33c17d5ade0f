// Package worker consumes enriched events from Pub/Sub, shreds them, and
// loads the resulting documents into the warehouse.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/harrowlabs/shredder/internal/shred"
	"github.com/harrowlabs/shredder/pkg/logger"
	"github.com/harrowlabs/shredder/pkg/metrics"
)

const shredderConsumerName = "shredder"

// Shredder decomposes one canonical event into documents or errors.
type Shredder interface {
	Shred(ctx context.Context, event shred.CanonicalEvent) shred.Result
}

// DocumentWriter loads the shredded documents of one event.
type DocumentWriter interface {
	Write(ctx context.Context, docs []shred.Document) error
}

// FailureSink publishes failed events with their accumulated errors.
type FailureSink interface {
	PublishFailure(ctx context.Context, event shred.CanonicalEvent, raw []byte, errs []shred.ErrorMessage) error
}

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer, eventID string) (bool, error)
	Release(ctx context.Context, consumer, eventID string) error
}

// Service consumes enriched events while honoring Redis idempotency. Every
// message either ends in the warehouse or on the failed-events topic; a nack
// is reserved for transient faults where redelivery can succeed.
type Service struct {
	subscription *gcppubsub.Subscriber
	shredder     Shredder
	writer       DocumentWriter
	failures     FailureSink
	manager      idempotencyChecker
	metrics      *metrics.PipelineMetrics
	logg         *logger.Logger
}

// NewService creates a new shredder worker service.
func NewService(
	subscription *gcppubsub.Subscriber,
	shredder Shredder,
	writer DocumentWriter,
	failures FailureSink,
	manager idempotencyChecker,
	pipelineMetrics *metrics.PipelineMetrics,
	logg *logger.Logger,
) (*Service, error) {
	if subscription == nil {
		return nil, errors.New("enriched events subscription is required")
	}
	if shredder == nil {
		return nil, errors.New("shredder is required")
	}
	if writer == nil {
		return nil, errors.New("document writer is required")
	}
	if failures == nil {
		return nil, errors.New("failure sink is required")
	}
	if manager == nil {
		return nil, errors.New("idempotency manager is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}

	return &Service{
		subscription: subscription,
		shredder:     shredder,
		writer:       writer,
		failures:     failures,
		manager:      manager,
		metrics:      pipelineMetrics,
		logg:         logg,
	}, nil
}

type processResult struct {
	nack bool
}

// Run starts consuming enriched events until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return s.subscription.Receive(ctx, func(innerCtx context.Context, msg *gcppubsub.Message) {
		if s.process(innerCtx, msg).nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

func (s *Service) process(ctx context.Context, msg *gcppubsub.Message) processResult {
	logCtx := s.logg.WithField(ctx, "message_id", msg.ID)

	var event shred.CanonicalEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "malformed event envelope")
		s.metrics.IncFailed("envelope")
		return s.publishBadRow(logCtx, event, msg.Data, []shred.ErrorMessage{
			{Field: "event", Message: "could not decode event envelope: " + err.Error()},
		})
	}

	if strings.TrimSpace(event.EventID) == "" {
		s.logg.Warn(logCtx, "event id missing")
		s.metrics.IncFailed("missing_event_id")
		return s.publishBadRow(logCtx, event, msg.Data, []shred.ErrorMessage{
			{Field: "event_id", Message: "event id is required"},
		})
	}
	logCtx = s.logg.WithEventID(logCtx, event.EventID)

	already, err := s.manager.CheckAndMarkProcessed(logCtx, shredderConsumerName, event.EventID)
	if err != nil {
		s.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		s.logg.Info(logCtx, "event already processed")
		return processResult{}
	}

	start := time.Now()
	result := s.shredder.Shred(logCtx, event)
	s.metrics.ObserveShred(time.Since(start))

	if result.Failed() {
		s.metrics.IncFailed("validation")
		res := s.publishBadRow(logCtx, event, msg.Data, result.Errors())
		if res.nack {
			_ = s.manager.Release(logCtx, shredderConsumerName, event.EventID)
		}
		return res
	}

	docs := result.Documents()
	if err := s.writer.Write(logCtx, docs); err != nil {
		s.logg.Error(logCtx, "warehouse write failed", err)
		_ = s.manager.Release(logCtx, shredderConsumerName, event.EventID)
		return processResult{nack: true}
	}

	s.metrics.IncShredded()
	s.metrics.AddDocuments(len(docs))
	s.logg.Info(s.logg.WithField(logCtx, "documents", len(docs)), "event shredded")
	return processResult{}
}

// publishBadRow routes a failed event to the failed-events topic. The message
// is only acked once the bad row is durably published; otherwise it is nacked
// so no event is silently lost.
func (s *Service) publishBadRow(ctx context.Context, event shred.CanonicalEvent, raw []byte, errs []shred.ErrorMessage) processResult {
	if err := s.failures.PublishFailure(ctx, event, raw, errs); err != nil {
		s.logg.Error(ctx, "bad row publish failed", err)
		return processResult{nack: true}
	}
	return processResult{}
}
