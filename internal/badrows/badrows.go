// Package badrows routes events that failed shredding to the failed-events
// topic, keeping the original payload and every accumulated error together.
package badrows

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/harrowlabs/shredder/internal/shred"
	"github.com/harrowlabs/shredder/pkg/logger"
)

// BadRow is the document published for one failed event. Payload carries the
// raw message bytes so the event can be replayed after the defect is fixed.
type BadRow struct {
	FailureID  string               `json:"failure_id"`
	RootID     string               `json:"root_id,omitempty"`
	RootTstamp string               `json:"root_tstamp,omitempty"`
	Errors     []shred.ErrorMessage `json:"errors"`
	Payload    json.RawMessage      `json:"payload"`
	FailedAt   time.Time            `json:"failed_at"`
}

// Sink abstracts the transport bad rows are published to.
type Sink interface {
	Publish(ctx context.Context, data []byte, attrs map[string]string) error
}

// PubSubSink publishes bad rows to a Pub/Sub topic and waits for the server ack.
type PubSubSink struct {
	publisher *pubsub.Publisher
}

// NewPubSubSink wraps a publisher handle for the failed-events topic.
func NewPubSubSink(publisher *pubsub.Publisher) (*PubSubSink, error) {
	if publisher == nil {
		return nil, errors.New("bad rows publisher is required")
	}
	return &PubSubSink{publisher: publisher}, nil
}

// Publish sends one bad row and blocks until the publish is acknowledged.
func (s *PubSubSink) Publish(ctx context.Context, data []byte, attrs map[string]string) error {
	result := s.publisher.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish bad row: %w", err)
	}
	return nil
}

// Publisher assembles bad rows from failed events and hands them to a sink.
type Publisher struct {
	sink Sink
	logg *logger.Logger
	now  func() time.Time
}

// NewPublisher builds a bad rows publisher.
func NewPublisher(sink Sink, logg *logger.Logger) (*Publisher, error) {
	if sink == nil {
		return nil, errors.New("bad rows sink is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Publisher{
		sink: sink,
		logg: logg,
		now:  time.Now,
	}, nil
}

// PublishFailure publishes one failed event with its accumulated errors and
// the raw payload it arrived as.
func (p *Publisher) PublishFailure(ctx context.Context, event shred.CanonicalEvent, raw []byte, errs []shred.ErrorMessage) error {
	if len(errs) == 0 {
		return errors.New("a bad row needs at least one error")
	}

	row := BadRow{
		FailureID:  uuid.NewString(),
		RootID:     event.EventID,
		RootTstamp: event.CollectorTstamp,
		Errors:     errs,
		Payload:    json.RawMessage(raw),
		FailedAt:   p.now().UTC(),
	}
	if !json.Valid(row.Payload) {
		// Preserve undecodable payloads as a JSON string instead of dropping them.
		encoded, err := json.Marshal(string(raw))
		if err != nil {
			return fmt.Errorf("encode raw payload: %w", err)
		}
		row.Payload = encoded
	}

	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("encode bad row: %w", err)
	}

	attrs := map[string]string{
		"failure_id":  row.FailureID,
		"error_count": fmt.Sprintf("%d", len(errs)),
	}
	if event.EventID != "" {
		attrs["event_id"] = event.EventID
	}

	if err := p.sink.Publish(ctx, data, attrs); err != nil {
		return err
	}

	logCtx := p.logg.WithFields(ctx, map[string]any{
		"failure_id":  row.FailureID,
		"event_id":    event.EventID,
		"error_count": len(errs),
	})
	p.logg.Info(logCtx, "bad row published")
	return nil
}
