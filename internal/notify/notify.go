// Package notify delivers the post-processing summary to the user.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// SubjectNotify is used when no HTTP notification endpoint is configured.
const SubjectNotify = "jarvis.notify"

type Message struct {
	UserID  uuid.UUID `json:"user_id"`
	Message string    `json:"message"`
}

// Poster sends notifications to an HTTP collaborator.
type Poster struct {
	url    string
	token  string
	client *http.Client
	logger *slog.Logger
}

func NewPoster(url, token string, logger *slog.Logger) *Poster {
	return &Poster{
		url:    url,
		token:  token,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

// Notify posts {user_id, message}. The response body is not interpreted.
func (p *Poster) Notify(ctx context.Context, userID uuid.UUID, message string) error {
	body, err := json.Marshal(Message{UserID: userID, Message: message})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify post: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("notify post: status %d", resp.StatusCode)
	}
	p.logger.Info("sent notification", "user_id", userID)
	return nil
}

type Publisher interface {
	Publish(subject string, data any) error
}

// Bus publishes notifications on the message bus.
type Bus struct {
	pub Publisher
}

func NewBus(pub Publisher) *Bus {
	return &Bus{pub: pub}
}

func (b *Bus) Notify(_ context.Context, userID uuid.UUID, message string) error {
	if err := b.pub.Publish(SubjectNotify, Message{UserID: userID, Message: message}); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}
