package hermes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	// SubjectSubmitted carries transcriptions submitted for async processing.
	SubjectSubmitted = "jarvis.transcription.submitted"
	// SubjectProcessed reports the outcome of every processed request.
	SubjectProcessed = "jarvis.transcription.processed"
)

// SubmittedEvent is the async counterpart of the HTTP process request.
type SubmittedEvent struct {
	RequestID                string `json:"request_id,omitempty"`
	UserID                   string `json:"user_id"`
	Text                     string `json:"text,omitempty"`
	Source                   string `json:"source,omitempty"`
	ReprocessTranscriptionID string `json:"reprocess_transcription_id,omitempty"`
}

// ProcessedEvent is published once per request, successful or not.
type ProcessedEvent struct {
	RequestID        string   `json:"request_id,omitempty"`
	UserID           string   `json:"user_id"`
	Status           string   `json:"status"` // ok | partial | failed
	GroupID          string   `json:"group_id,omitempty"`
	TranscriptionIDs []string `json:"transcription_ids,omitempty"`
	Brains           []string `json:"brains,omitempty"`
	FailedSegments   int      `json:"failed_segments,omitempty"`
	Error            string   `json:"error,omitempty"`
}

type Client struct {
	conn   *nats.Conn
	subs   []*nats.Subscription
	logger *slog.Logger
}

func NewClient(ctx context.Context, url, token string, logger *slog.Logger) (*Client, error) {
	opts := []nats.Option{
		nats.Name("jarvis"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &Client{conn: nc, logger: logger}, nil
}

func (c *Client) Publish(subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return c.conn.Publish(subject, payload)
}

func (c *Client) Subscribe(subject string, handler func(subject string, data []byte)) error {
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	c.subs = append(c.subs, sub)
	c.logger.Info("subscribed", "subject", subject)
	return nil
}

// DrainSubscriptions stops delivery on every subscription once messages
// already received have been handed to their handlers. The connection stays
// open for publishing.
func (c *Client) DrainSubscriptions(ctx context.Context) error {
	for _, sub := range c.subs {
		if err := sub.Drain(); err != nil {
			return fmt.Errorf("drain %s: %w", sub.Subject, err)
		}
	}

	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
	for _, sub := range c.subs {
		for sub.IsValid() {
			select {
			case <-ctx.Done():
				return fmt.Errorf("drain %s: %w", sub.Subject, ctx.Err())
			case <-tick.C:
			}
		}
	}
	c.subs = nil
	return nil
}

func (c *Client) Close() {
	for _, sub := range c.subs {
		_ = sub.Unsubscribe()
	}
	c.conn.Close()
}
