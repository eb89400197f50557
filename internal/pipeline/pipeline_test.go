package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/jarvis/internal/extractor"
	"github.com/MikeSquared-Agency/jarvis/internal/hermes"
	"github.com/MikeSquared-Agency/jarvis/internal/persist"
	"github.com/MikeSquared-Agency/jarvis/internal/segmenter"
	"github.com/MikeSquared-Agency/jarvis/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func words(prefix string, n int) string {
	w := make([]string, n)
	for i := range w {
		w[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return strings.Join(w, " ")
}

// --- fakes ---

type fakeStore struct {
	mu             sync.Mutex
	profiles       map[uuid.UUID]*store.Profile
	profileErr     error
	transcriptions map[uuid.UUID]*store.Transcription
	deleted        []uuid.UUID
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		profiles:       make(map[uuid.UUID]*store.Profile),
		transcriptions: make(map[uuid.UUID]*store.Transcription),
	}
}

func (f *fakeStore) GetProfile(_ context.Context, userID uuid.UUID) (*store.Profile, error) {
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	if p, ok := f.profiles[userID]; ok {
		return p, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) GetTranscription(_ context.Context, userID, id uuid.UUID) (*store.Transcription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.transcriptions[id]
	if !ok || t.UserID != userID {
		return nil, store.ErrNotFound
	}
	return t, nil
}

func (f *fakeStore) DeleteTranscriptionCascade(_ context.Context, userID, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.transcriptions[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.transcriptions, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeStore) ListGroup(_ context.Context, userID, groupID uuid.UUID) ([]store.Transcription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.Transcription
	for _, t := range f.transcriptions {
		if t.UserID == userID && t.GroupID != nil && *t.GroupID == groupID {
			out = append(out, *t)
		}
	}
	return out, nil
}

type extractCall struct {
	text     string
	hint     *extractor.Hint
	identity *extractor.Identity
}

type fakeExtractor struct {
	mu    sync.Mutex
	calls []extractCall
	fn    func(text string) (*extractor.ExtractedData, error)
}

func (f *fakeExtractor) Extract(_ context.Context, text string, hint *extractor.Hint, id *extractor.Identity) (*extractor.ExtractedData, error) {
	f.mu.Lock()
	f.calls = append(f.calls, extractCall{text: text, hint: hint, identity: id})
	f.mu.Unlock()
	return f.fn(text)
}

// fakePersister records inputs and stores transcriptions in the fake store.
type fakePersister struct {
	mu     sync.Mutex
	store  *fakeStore
	inputs []persist.Input
	err    error
}

func (f *fakePersister) Persist(_ context.Context, in persist.Input) (*persist.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	f.inputs = append(f.inputs, in)
	f.mu.Unlock()

	tr := &store.Transcription{
		ID:        uuid.New(),
		UserID:    in.UserID,
		Source:    in.Source,
		RawText:   in.RawText,
		Brain:     in.Data.Brain,
		Title:     in.Data.Title,
		GroupID:   in.GroupID,
		IsAmbient: in.Data.IsAmbient,
	}
	f.store.mu.Lock()
	f.store.transcriptions[tr.ID] = tr
	f.store.mu.Unlock()
	return &persist.Result{Transcription: tr, Extracted: in.Data}, nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (f *fakeNotifier) Notify(_ context.Context, _ uuid.UUID, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, message)
	return f.err
}

type fakePublisher struct {
	mu     sync.Mutex
	events []hermes.ProcessedEvent
}

func (f *fakePublisher) Publish(subject string, data any) error {
	if subject != hermes.SubjectProcessed {
		return fmt.Errorf("unexpected subject %s", subject)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, data.(hermes.ProcessedEvent))
	return nil
}

type fakeSegmenter struct {
	segments []segmenter.Segment
}

func (f *fakeSegmenter) Segment(context.Context, string) ([]segmenter.Segment, error) {
	return f.segments, nil
}

type scriptedLLM struct {
	fn func(user string) (string, error)
}

func (s *scriptedLLM) Complete(_ context.Context, _, user string) (string, error) {
	return s.fn(user)
}

type harness struct {
	store     *fakeStore
	extractor *fakeExtractor
	persister *fakePersister
	notifier  *fakeNotifier
	publisher *fakePublisher
	pipeline  *Pipeline
}

func newHarness(seg Segmenter, extract func(string) (*extractor.ExtractedData, error)) *harness {
	h := &harness{
		store:     newFakeStore(),
		extractor: &fakeExtractor{fn: extract},
		notifier:  &fakeNotifier{},
		publisher: &fakePublisher{},
	}
	h.persister = &fakePersister{store: h.store}
	if seg == nil {
		seg = segmenter.New(&scriptedLLM{fn: func(string) (string, error) {
			return "", errors.New("segmentation model must not be called")
		}}, discardLogger(), 1)
	}
	h.pipeline = New(h.store, seg, h.extractor, h.persister, h.notifier, h.publisher,
		Config{ProtectedNames: []string{"bosco"}, Concurrency: 1}, discardLogger())
	return h
}

func staticExtraction(brain string, speakers ...string) func(string) (*extractor.ExtractedData, error) {
	return func(text string) (*extractor.ExtractedData, error) {
		return &extractor.ExtractedData{
			Brain:    brain,
			Title:    "Charla",
			Summary:  "Resumen",
			Speakers: speakers,
			People:   []extractor.Person{},
		}, nil
	}
}

// --- scenarios ---

func TestProcess_ShortConversation(t *testing.T) {
	h := newHarness(nil, staticExtraction(extractor.BrainProfessional, "Ana", "Luis"))
	userID := uuid.New()
	text := "Ana: " + words("hola", 25) + "\nLuis: " + words("vale", 23)

	resp, err := h.pipeline.Process(context.Background(), Request{UserID: userID, Text: text})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h.pipeline.Wait()

	if resp.Segmented || resp.Transcription == nil {
		t.Fatalf("expected single-segment response, got %+v", resp)
	}
	if resp.Transcription.Brain != extractor.BrainProfessional {
		t.Errorf("expected model brain kept, got %q", resp.Transcription.Brain)
	}
	if len(resp.Extracted.Speakers) < 1 {
		t.Error("expected at least one speaker")
	}
	if len(h.persister.inputs) != 1 {
		t.Fatalf("expected one persisted transcription, got %d", len(h.persister.inputs))
	}
	in := h.persister.inputs[0]
	if in.RawText != text || in.Source != DefaultSource || in.GroupID != nil {
		t.Errorf("unexpected persist input: source=%q group=%v", in.Source, in.GroupID)
	}
	if h.extractor.calls[0].hint != nil || h.extractor.calls[0].identity != nil {
		t.Error("expected no hint and no identity for a single unknown-user segment")
	}
	if len(h.notifier.messages) != 1 || !strings.Contains(h.notifier.messages[0], "Charla [professional]") {
		t.Errorf("unexpected notifications %q", h.notifier.messages)
	}
	if len(h.publisher.events) != 1 || h.publisher.events[0].Status != "ok" {
		t.Errorf("unexpected events %+v", h.publisher.events)
	}
}

func TestProcess_ProtectedNameForcesBrain(t *testing.T) {
	h := newHarness(nil, func(string) (*extractor.ExtractedData, error) {
		return &extractor.ExtractedData{
			Brain:    extractor.BrainProfessional,
			Title:    "Reunión de presupuesto",
			Summary:  "Hablan del presupuesto; luego hay que recoger a Bosco",
			Speakers: []string{"Marta"},
		}, nil
	})

	resp, err := h.pipeline.Process(context.Background(), Request{UserID: uuid.New(), Text: "Marta: presupuesto y luego recoger a Bosco del cole"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Transcription.Brain != extractor.BrainBosco {
		t.Errorf("expected bosco brain, got %q", resp.Transcription.Brain)
	}
	if got := h.persister.inputs[0].ProtectedNames; len(got) != 1 || got[0] != "bosco" {
		t.Errorf("expected protected names forwarded to persistence, got %v", got)
	}
}

func TestProcess_Reprocess(t *testing.T) {
	h := newHarness(nil, staticExtraction(extractor.BrainPersonal, "Ana"))
	userID := uuid.New()
	old := &store.Transcription{ID: uuid.New(), UserID: userID, Source: "plaud", RawText: "Ana: mañana vamos al médico a las diez"}
	h.store.transcriptions[old.ID] = old

	resp, err := h.pipeline.Reprocess(context.Background(), userID, old.ID, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(h.store.deleted) != 1 || h.store.deleted[0] != old.ID {
		t.Errorf("expected old transcription deleted first, got %v", h.store.deleted)
	}
	if resp.Transcription.ID == old.ID {
		t.Error("expected a fresh transcription id")
	}
	if resp.Transcription.RawText != old.RawText || resp.Transcription.Source != "plaud" {
		t.Errorf("expected raw text and source carried over, got %+v", resp.Transcription)
	}
}

func TestProcess_ReprocessNotFound(t *testing.T) {
	h := newHarness(nil, staticExtraction(extractor.BrainPersonal, "Ana"))
	missing := uuid.New()
	_, err := h.pipeline.Process(context.Background(), Request{UserID: uuid.New(), ReprocessID: &missing})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if len(h.publisher.events) != 1 || h.publisher.events[0].Status != "failed" {
		t.Errorf("expected failed event, got %+v", h.publisher.events)
	}
}

func TestProcess_BlockFailureDoesNotAbort(t *testing.T) {
	block1 := words("uno", 6000)
	block2 := words("dos", 1000)
	llm := &scriptedLLM{fn: func(user string) (string, error) {
		if strings.Contains(user, "uno0 uno1") {
			return "", errors.New("upstream 503")
		}
		return `{"segments": [
			{"segment_id": 1, "title": "Primera", "participants": ["Ana"], "start_words": "dos0 dos1", "end_words": "dos498 dos499"},
			{"segment_id": 2, "title": "Segunda", "participants": ["Luis"], "start_words": "dos500 dos501", "end_words": ""}
		]}`, nil
	}}
	seg := segmenter.New(llm, discardLogger(), 1)
	h := newHarness(seg, staticExtraction(extractor.BrainPersonal, "Ana"))

	resp, err := h.pipeline.Process(context.Background(), Request{UserID: uuid.New(), Text: block1 + " " + block2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.Segmented || resp.GroupID == nil {
		t.Fatalf("expected segmented response, got %+v", resp)
	}
	if len(resp.Segments) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(resp.Segments))
	}
	if resp.Segments[0].Title != "Bloque 1" || resp.Segments[0].ContextClue != segmenter.ClueBlockError {
		t.Errorf("expected degraded first block, got %+v", resp.Segments[0])
	}
	for i, s := range resp.Segments {
		if s.SegmentID != i+1 {
			t.Errorf("segment %d has id %d", i, s.SegmentID)
		}
		if s.Transcription.GroupID == nil || *s.Transcription.GroupID != *resp.GroupID {
			t.Errorf("segment %d not tagged with the group id", i)
		}
	}

	calls := h.extractor.calls
	if calls[1].hint == nil || calls[1].hint.Title != "Primera" || calls[1].hint.Participants[0] != "Ana" {
		t.Errorf("expected segment hint, got %+v", calls[1].hint)
	}
	if got := h.persister.inputs[2].Participants; len(got) != 1 || got[0] != "Luis" {
		t.Errorf("expected segment participants forwarded, got %v", got)
	}

	group, err := h.pipeline.Group(context.Background(), h.persister.inputs[0].UserID, *resp.GroupID)
	if err != nil || len(group) != 3 {
		t.Errorf("expected 3 grouped transcriptions, got %d (%v)", len(group), err)
	}
}

func TestProcess_SegmentFailureIsolated(t *testing.T) {
	seg := &fakeSegmenter{segments: []segmenter.Segment{
		{ID: 1, Title: "A", Text: "segment one text is here"},
		{ID: 2, Title: "B", Text: "segment two text is here"},
		{ID: 3, Title: "C", Text: "segment three text is here"},
	}}
	h := newHarness(seg, func(text string) (*extractor.ExtractedData, error) {
		if strings.Contains(text, "two") {
			return nil, errors.New("parse extraction: bad json")
		}
		return &extractor.ExtractedData{Brain: "personal", Title: text, Speakers: []string{"X"},
			Suggestions: []extractor.Suggestion{{Type: "task", Content: "c"}}}, nil
	})

	resp, err := h.pipeline.Process(context.Background(), Request{UserID: uuid.New(), Text: "irrelevant but long enough"})
	if err != nil {
		t.Fatalf("expected partial success, got %v", err)
	}
	h.pipeline.Wait()

	if len(resp.Segments) != 2 || len(resp.Errors) != 1 {
		t.Fatalf("expected 2 ok / 1 failed, got %d / %d", len(resp.Segments), len(resp.Errors))
	}
	if resp.Errors[0].SegmentID != 2 || !strings.Contains(resp.Errors[0].Error, "bad json") {
		t.Errorf("unexpected error entry %+v", resp.Errors[0])
	}
	if resp.Segments[0].SegmentID != 1 || resp.Segments[1].SegmentID != 3 {
		t.Error("expected segment order preserved")
	}
	if h.publisher.events[0].Status != "partial" || h.publisher.events[0].FailedSegments != 1 {
		t.Errorf("unexpected event %+v", h.publisher.events[0])
	}
	msg := h.notifier.messages[0]
	if !strings.Contains(msg, "2 new suggestions") || !strings.Contains(msg, "1 segments failed") {
		t.Errorf("unexpected notification %q", msg)
	}
}

func TestProcess_AllSegmentsFail(t *testing.T) {
	seg := &fakeSegmenter{segments: []segmenter.Segment{
		{ID: 1, Text: "first segment text"},
		{ID: 2, Text: "second segment text"},
	}}
	h := newHarness(seg, func(string) (*extractor.ExtractedData, error) {
		return nil, errors.New("quota")
	})

	_, err := h.pipeline.Process(context.Background(), Request{UserID: uuid.New(), Text: "long enough text here"})
	if err == nil || !strings.Contains(err.Error(), "all 2 segments failed") {
		t.Fatalf("expected aggregate failure, got %v", err)
	}
	h.pipeline.Wait()
	if len(h.notifier.messages) != 0 {
		t.Error("expected no notification for a failed request")
	}
}

func TestProcess_SingleSegmentErrorPropagates(t *testing.T) {
	boom := errors.New("persist down")
	h := newHarness(nil, staticExtraction(extractor.BrainPersonal, "Ana"))
	h.persister.err = boom

	_, err := h.pipeline.Process(context.Background(), Request{UserID: uuid.New(), Text: "Ana: hola qué tal estás"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected persist error, got %v", err)
	}
}

func TestProcess_TextTooShort(t *testing.T) {
	h := newHarness(nil, staticExtraction(extractor.BrainPersonal, "Ana"))
	_, err := h.pipeline.Process(context.Background(), Request{UserID: uuid.New(), Text: "  h o l a \n a "})
	if !errors.Is(err, ErrTextTooShort) {
		t.Fatalf("expected ErrTextTooShort, got %v", err)
	}
	if len(h.extractor.calls) != 0 {
		t.Error("expected no extraction for rejected input")
	}
}

func TestProcess_IdentityFiltersSelf(t *testing.T) {
	h := newHarness(nil, func(string) (*extractor.ExtractedData, error) {
		return &extractor.ExtractedData{
			Brain:    extractor.BrainPersonal,
			Speakers: []string{"Carlos", "Marta"},
			People:   []extractor.Person{{Name: "carlos"}, {Name: "Charlie"}, {Name: "Marta"}},
		}, nil
	})
	userID := uuid.New()
	h.store.profiles[userID] = &store.Profile{UserID: userID, Name: "Carlos", Aliases: []string{"Charlie"}}

	if _, err := h.pipeline.Process(context.Background(), Request{UserID: userID, Text: "Marta: Carlos, ¿vienes?"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	id := h.extractor.calls[0].identity
	if id == nil || id.UserName != "Carlos" || id.Aliases[0] != "Charlie" {
		t.Errorf("expected identity passed to extractor, got %+v", id)
	}
	people := h.persister.inputs[0].Data.People
	if len(people) != 1 || people[0].Name != "Marta" {
		t.Errorf("expected self removed before persistence, got %+v", people)
	}
}

func TestProcess_ProfileErrorIsNotFatal(t *testing.T) {
	h := newHarness(nil, staticExtraction(extractor.BrainPersonal, "Ana"))
	h.store.profileErr = errors.New("db timeout")

	if _, err := h.pipeline.Process(context.Background(), Request{UserID: uuid.New(), Text: "Ana: nos vemos mañana"}); err != nil {
		t.Fatalf("expected profile failure to be tolerated, got %v", err)
	}
	if h.extractor.calls[0].identity != nil {
		t.Error("expected empty identity")
	}
}

func TestProcess_NotificationFailureIgnored(t *testing.T) {
	h := newHarness(nil, staticExtraction(extractor.BrainPersonal, "Ana"))
	h.notifier.err = errors.New("notify down")

	if _, err := h.pipeline.Process(context.Background(), Request{UserID: uuid.New(), Text: "Ana: nos vemos mañana"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h.pipeline.Wait()
	if len(h.notifier.messages) != 1 {
		t.Errorf("expected one notification attempt, got %d", len(h.notifier.messages))
	}
}

func TestProcess_QuietSkipsNotification(t *testing.T) {
	h := newHarness(nil, staticExtraction(extractor.BrainPersonal, "Ana"))

	resp, err := h.pipeline.Process(context.Background(), Request{UserID: uuid.New(), Text: "Ana: nos vemos mañana", Quiet: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h.pipeline.Wait()
	if len(h.notifier.messages) != 0 {
		t.Errorf("expected no notification, got %d", len(h.notifier.messages))
	}
	if len(h.publisher.events) != 1 {
		t.Errorf("expected processed event to still be published, got %d", len(h.publisher.events))
	}
	if got := resp.Transcriptions(); len(got) != 1 || got[0] == nil {
		t.Errorf("expected one transcription, got %v", got)
	}
}

func TestProcess_ConcurrentSegmentsKeepOrder(t *testing.T) {
	segs := make([]segmenter.Segment, 6)
	for i := range segs {
		segs[i] = segmenter.Segment{ID: i + 1, Title: fmt.Sprintf("S%d", i+1), Text: fmt.Sprintf("segment number %d text", i+1)}
	}
	h := newHarness(&fakeSegmenter{segments: segs}, func(text string) (*extractor.ExtractedData, error) {
		return &extractor.ExtractedData{Brain: "personal", Title: text}, nil
	})
	h.pipeline.concurrency = 3

	resp, err := h.pipeline.Process(context.Background(), Request{UserID: uuid.New(), Text: "long enough text here"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, s := range resp.Segments {
		if s.SegmentID != i+1 || s.Extracted.Title != segs[i].Text {
			t.Errorf("position %d holds segment %d (%q)", i, s.SegmentID, s.Extracted.Title)
		}
	}
}

func TestGroup_Empty(t *testing.T) {
	h := newHarness(nil, staticExtraction(extractor.BrainPersonal))
	if _, err := h.pipeline.Group(context.Background(), uuid.New(), uuid.New()); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
