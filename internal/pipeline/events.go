package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/jarvis/internal/hermes"
)

// submitTimeout bounds one async request, including all model retries.
const submitTimeout = 30 * time.Minute

// HandleSubmitted is the NATS handler for jarvis.transcription.submitted.
// Outcomes, including rejected events, are reported on
// jarvis.transcription.processed.
func (p *Pipeline) HandleSubmitted(subject string, data []byte) {
	if !p.track() {
		p.logger.Warn("submitted event dropped during shutdown", "subject", subject)
		return
	}
	defer p.wg.Done()

	var evt hermes.SubmittedEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		p.logger.Error("failed to parse submitted event", "subject", subject, "error", err)
		return
	}

	userID, err := uuid.Parse(evt.UserID)
	if err != nil {
		p.logger.Error("invalid user id", "user_id", evt.UserID, "error", err)
		p.publish(Request{RequestID: evt.RequestID}, nil, err)
		return
	}

	req := Request{
		RequestID: evt.RequestID,
		UserID:    userID,
		Text:      evt.Text,
		Source:    evt.Source,
	}
	if evt.ReprocessTranscriptionID != "" {
		id, err := uuid.Parse(evt.ReprocessTranscriptionID)
		if err != nil {
			p.logger.Error("invalid reprocess id", "reprocess_transcription_id", evt.ReprocessTranscriptionID, "error", err)
			p.publish(req, nil, err)
			return
		}
		req.ReprocessID = &id
	}

	ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
	defer cancel()

	if _, err := p.Process(ctx, req); err != nil {
		p.logger.Error("async processing failed",
			"request_id", evt.RequestID,
			"user_id", userID,
			"error", err,
		)
	}
}
