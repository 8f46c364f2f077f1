package validator

import (
	"context"
	"fmt"
	"log"

	"github.com/dyluth/vigil/internal/tracing"
	"github.com/dyluth/vigil/pkg/console"
)

// AlertSink sends one alert to the operator console. *console.Client implements it.
type AlertSink interface {
	PublishAlert(ctx context.Context, r *console.ValidationRequest) (int64, error)
}

// Publisher turns accepted requests into outbound alerts.
type Publisher struct {
	sink         AlertSink
	instanceName string
}

// NewPublisher creates a publisher writing to sink.
func NewPublisher(sink AlertSink, instanceName string) *Publisher {
	return &Publisher{sink: sink, instanceName: instanceName}
}

// Publish emits exactly one alert for r. It does not wait for any reply.
// Transmission errors are wrapped in ErrPublishFailure.
func (p *Publisher) Publish(ctx context.Context, r *console.ValidationRequest) (err error) {
	ctx, span := tracing.StartSpan(ctx, "validator.publish", tracing.KindProducer)
	defer func() { tracing.EndSpan(span, err) }()

	receivers, err := p.sink.PublishAlert(ctx, r)
	if err != nil {
		log.Printf("[ERROR] Failed to publish alert for victim %s: %v", r.ID, err)
		return fmt.Errorf("%w: %v", ErrPublishFailure, err)
	}

	if receivers == 0 {
		log.Printf("[WARN] Alert for victim %s published but no operator console is listening", r.ID)
	}

	logEvent(p.instanceName, "publisher", "alert_published", map[string]interface{}{
		"victim_id":  r.ID,
		"request_id": r.RequestID,
		"receivers":  receivers,
	})
	return nil
}
