package pipeline

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/jarvis/internal/extractor"
	"github.com/MikeSquared-Agency/jarvis/internal/hermes"
)

func TestHandleSubmitted(t *testing.T) {
	h := newHarness(nil, staticExtraction(extractor.BrainPersonal, "Ana"))
	userID := uuid.New()

	data, _ := json.Marshal(hermes.SubmittedEvent{
		RequestID: "req-42",
		UserID:    userID.String(),
		Text:      "Ana: llámame cuando llegues",
		Source:    "whatsapp",
	})
	h.pipeline.HandleSubmitted(hermes.SubjectSubmitted, data)
	h.pipeline.Wait()

	if len(h.persister.inputs) != 1 || h.persister.inputs[0].Source != "whatsapp" {
		t.Fatalf("expected one persisted whatsapp transcription, got %+v", h.persister.inputs)
	}
	if len(h.publisher.events) != 1 {
		t.Fatalf("expected one processed event, got %d", len(h.publisher.events))
	}
	evt := h.publisher.events[0]
	if evt.RequestID != "req-42" || evt.UserID != userID.String() || evt.Status != "ok" {
		t.Errorf("unexpected event %+v", evt)
	}
	if len(evt.TranscriptionIDs) != 1 || evt.Brains[0] != "personal" {
		t.Errorf("expected transcription id and brain in event, got %+v", evt)
	}
}

func TestHandleSubmitted_InvalidUser(t *testing.T) {
	h := newHarness(nil, staticExtraction(extractor.BrainPersonal, "Ana"))
	data, _ := json.Marshal(hermes.SubmittedEvent{RequestID: "req-1", UserID: "nope", Text: "long enough text"})

	h.pipeline.HandleSubmitted(hermes.SubjectSubmitted, data)

	if len(h.extractor.calls) != 0 {
		t.Error("expected no processing for invalid user id")
	}
	if len(h.publisher.events) != 1 || h.publisher.events[0].Status != "failed" || h.publisher.events[0].RequestID != "req-1" {
		t.Errorf("expected failed event, got %+v", h.publisher.events)
	}
}

func TestHandleSubmitted_BadPayload(t *testing.T) {
	h := newHarness(nil, staticExtraction(extractor.BrainPersonal, "Ana"))
	h.pipeline.HandleSubmitted(hermes.SubjectSubmitted, []byte("{not json"))
	if len(h.publisher.events) != 0 || len(h.extractor.calls) != 0 {
		t.Error("expected malformed payloads to be dropped")
	}
}

func TestWait_BlocksOnInFlightEvent(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	extract := staticExtraction(extractor.BrainPersonal, "Ana")
	h := newHarness(nil, func(text string) (*extractor.ExtractedData, error) {
		close(started)
		<-release
		return extract(text)
	})
	data, _ := json.Marshal(hermes.SubmittedEvent{
		RequestID: "req-7",
		UserID:    uuid.New().String(),
		Text:      "Ana: llámame cuando llegues",
	})

	handled := make(chan struct{})
	go func() {
		h.pipeline.HandleSubmitted(hermes.SubjectSubmitted, data)
		close(handled)
	}()
	<-started

	waited := make(chan struct{})
	go func() {
		h.pipeline.Wait()
		close(waited)
	}()

	select {
	case <-waited:
		t.Fatal("Wait returned while an event was still being processed")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-waited:
	case <-time.After(5 * time.Second):
		t.Fatal("Wait did not return after the event finished")
	}
	<-handled
	if len(h.persister.inputs) != 1 || len(h.publisher.events) != 1 {
		t.Fatalf("expected the in-flight event to complete, got %d inputs %d events",
			len(h.persister.inputs), len(h.publisher.events))
	}

	// Events arriving after Wait are not processed.
	h.pipeline.HandleSubmitted(hermes.SubjectSubmitted, data)
	if len(h.extractor.calls) != 1 {
		t.Errorf("expected late event to be dropped, got %d extractions", len(h.extractor.calls))
	}
}
