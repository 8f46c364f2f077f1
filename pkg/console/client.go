package console

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Client provides instance-scoped Redis Pub/Sub operations for the operator
// console exchange. All channels are namespaced with the instance name.
// The client is safe for concurrent use.
type Client struct {
	rdb          *redis.Client
	instanceName string
}

// NewClient creates a console client for the specified instance.
//
// Parameters:
//   - redisOpts: Redis connection options (address, password, DB, etc.)
//   - instanceName: bridge instance identifier (must not be empty)
//
// Returns an error if instanceName is empty.
func NewClient(redisOpts *redis.Options, instanceName string) (*Client, error) {
	if instanceName == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}

	return &Client{
		rdb:          redis.NewClient(redisOpts),
		instanceName: instanceName,
	}, nil
}

// InstanceName returns the namespace this client publishes and listens in.
func (c *Client) InstanceName() string {
	return c.instanceName
}

// Close closes the Redis connection. Implements io.Closer.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity. Used by health checks and at startup.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// PublishAlert broadcasts one alert frame on the alerts channel.
// Returns the number of subscribers that received it; zero means no console
// is currently listening, which is not an error for a broadcast.
func (c *Client) PublishAlert(ctx context.Context, r *ValidationRequest) (int64, error) {
	frame, err := EncodeAlert(r)
	if err != nil {
		return 0, err
	}

	channel := AlertsChannel(c.instanceName)
	receivers, err := c.rdb.Publish(ctx, channel, frame).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to publish alert: %w", err)
	}

	return receivers, nil
}

// PublishDecision sends a decision the way the operator console does.
// Used by the vigil CLI and by tests standing in for the console.
func (c *Client) PublishDecision(ctx context.Context, d Decision, tokens Tokens) (int64, error) {
	channel := DecisionsChannel(c.instanceName)
	receivers, err := c.rdb.Publish(ctx, channel, EncodeDecision(d, tokens)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to publish decision: %w", err)
	}
	return receivers, nil
}

// PublishRaw sends an arbitrary payload on the decisions channel.
func (c *Client) PublishRaw(ctx context.Context, payload string) error {
	channel := DecisionsChannel(c.instanceName)
	if err := c.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish payload: %w", err)
	}
	return nil
}

// DecisionSubscription delivers raw inbound decision payloads.
// Decoding is left to the caller so unrecognised payloads can be reported.
// Caller must call Close() when done.
type DecisionSubscription struct {
	messages <-chan string
	cancel   func()
	done     <-chan struct{}
	once     sync.Once
}

// Messages returns the channel of raw payloads.
// The channel is closed when the subscription is closed or the context is cancelled.
func (s *DecisionSubscription) Messages() <-chan string {
	return s.messages
}

// Close stops the subscription and waits until the underlying Redis
// subscription has been released. Safe to call multiple times.
func (s *DecisionSubscription) Close() error {
	s.once.Do(s.cancel)
	<-s.done
	return nil
}

// SubscribeDecisions subscribes to operator decisions for this instance.
// The subscription is confirmed by Redis before returning, so a decision
// published after this call returns is never missed.
func (c *Client) SubscribeDecisions(ctx context.Context) (*DecisionSubscription, error) {
	channel := DecisionsChannel(c.instanceName)
	pubsub := c.rdb.Subscribe(ctx, channel)

	// Wait for the subscribe confirmation so startup failures surface here
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	messagesChan := make(chan string, 10)
	done := make(chan struct{})
	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(done)
		defer close(messagesChan)
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case messagesChan <- msg.Payload:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &DecisionSubscription{
		messages: messagesChan,
		cancel:   cancelFunc,
		done:     done,
	}, nil
}

// AlertSubscription delivers decoded alerts to console-side consumers.
// Caller must call Close() when done.
type AlertSubscription struct {
	alerts <-chan *ValidationRequest
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Alerts returns the channel of decoded alerts.
func (s *AlertSubscription) Alerts() <-chan *ValidationRequest {
	return s.alerts
}

// Errors returns the channel of decode errors. Malformed frames are skipped.
func (s *AlertSubscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription. Safe to call multiple times.
func (s *AlertSubscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribeAlerts subscribes to the alerts broadcast for this instance.
func (c *Client) SubscribeAlerts(ctx context.Context) (*AlertSubscription, error) {
	channel := AlertsChannel(c.instanceName)
	pubsub := c.rdb.Subscribe(ctx, channel)

	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	alertsChan := make(chan *ValidationRequest, 10)
	errorsChan := make(chan error, 10)
	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(alertsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				alert, err := DecodeAlert(msg.Payload)
				if err != nil {
					select {
					case errorsChan <- err:
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case alertsChan <- alert:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &AlertSubscription{
		alerts: alertsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}
