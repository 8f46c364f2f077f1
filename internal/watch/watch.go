package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dyluth/vigil/pkg/console"
)

// OutputFormat selects how events are rendered.
type OutputFormat string

const (
	OutputFormatDefault OutputFormat = "default"
	OutputFormatJSON    OutputFormat = "json"
)

// Source opens both sides of the console exchange. *console.Client implements it.
type Source interface {
	SubscribeAlerts(ctx context.Context) (*console.AlertSubscription, error)
	SubscribeDecisions(ctx context.Context) (*console.DecisionSubscription, error)
}

// Event is one line of JSON output.
type Event struct {
	Event     string      `json:"event"`
	Timestamp string      `json:"timestamp"`
	Data      interface{} `json:"data"`
}

type formatter interface {
	FormatAlert(r *console.ValidationRequest) error
	FormatDecision(payload string) error
	FormatError(err error) error
}

func newFormatter(format OutputFormat, w io.Writer, tokens console.Tokens) (formatter, error) {
	switch format {
	case OutputFormatDefault, "":
		return &defaultFormatter{writer: w, tokens: tokens}, nil
	case OutputFormatJSON:
		return &jsonFormatter{writer: w, tokens: tokens}, nil
	default:
		return nil, fmt.Errorf("unknown output format: %s", format)
	}
}

// StreamActivity prints alerts going to the operator and the replies coming
// back until ctx is cancelled.
func StreamActivity(ctx context.Context, src Source, tokens console.Tokens, format OutputFormat, w io.Writer) error {
	f, err := newFormatter(format, w, tokens)
	if err != nil {
		return err
	}

	alerts, err := src.SubscribeAlerts(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to alerts: %w", err)
	}
	defer alerts.Close()

	decisions, err := src.SubscribeDecisions(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to decisions: %w", err)
	}
	defer decisions.Close()

	alertCh := alerts.Alerts()
	errCh := alerts.Errors()
	decisionCh := decisions.Messages()

	for {
		select {
		case <-ctx.Done():
			return nil

		case r, ok := <-alertCh:
			if !ok {
				return nil
			}
			if err := f.FormatAlert(r); err != nil {
				return err
			}

		case decodeErr, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err := f.FormatError(decodeErr); err != nil {
				return err
			}

		case payload, ok := <-decisionCh:
			if !ok {
				return nil
			}
			if err := f.FormatDecision(payload); err != nil {
				return err
			}
		}
	}
}

type defaultFormatter struct {
	writer io.Writer
	tokens console.Tokens
}

func (f *defaultFormatter) FormatAlert(r *console.ValidationRequest) error {
	line := fmt.Sprintf("🚨 Victim alert: id=%s at (%.2f, %.2f) p=%.2f sensors=%s",
		r.ID, r.X, r.Y, r.Probability, strings.Join(r.Sensors, ","))
	if r.RequestID != "" {
		line += fmt.Sprintf(" request=%s", r.RequestID)
	}
	return f.writeLine(line)
}

func (f *defaultFormatter) FormatDecision(payload string) error {
	d, err := console.ParseDecision(payload, f.tokens)
	if err != nil {
		return f.writeLine(fmt.Sprintf("❓ Unrecognized console message: %q", payload))
	}

	line := "❌ Operator rejected"
	if d.Valid {
		line = "✅ Operator confirmed"
	}
	if d.RequestID != "" {
		line += fmt.Sprintf(" request=%s", d.RequestID)
	}
	return f.writeLine(line)
}

func (f *defaultFormatter) FormatError(err error) error {
	return f.writeLine(fmt.Sprintf("⚠️  Malformed alert: %v", err))
}

func (f *defaultFormatter) writeLine(line string) error {
	_, err := fmt.Fprintf(f.writer, "[%s] %s\n", time.Now().Format("15:04:05"), line)
	return err
}

type jsonFormatter struct {
	writer io.Writer
	tokens console.Tokens
}

func (f *jsonFormatter) FormatAlert(r *console.ValidationRequest) error {
	return f.write("alert", r)
}

func (f *jsonFormatter) FormatDecision(payload string) error {
	d, err := console.ParseDecision(payload, f.tokens)
	if err != nil {
		return f.write("unrecognized", map[string]string{"payload": payload})
	}
	return f.write("decision", d)
}

func (f *jsonFormatter) FormatError(err error) error {
	return f.write("malformed_alert", map[string]string{"error": err.Error()})
}

func (f *jsonFormatter) write(event string, data interface{}) error {
	line, err := json.Marshal(Event{
		Event:     event,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Data:      data,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event to JSON: %w", err)
	}

	_, err = fmt.Fprintf(f.writer, "%s\n", line)
	return err
}
