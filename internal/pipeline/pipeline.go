// Package pipeline runs one process-transcription request end to end:
// identity load, segmentation, per-segment extraction and persistence,
// aggregation and notification.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/MikeSquared-Agency/jarvis/internal/extractor"
	"github.com/MikeSquared-Agency/jarvis/internal/hermes"
	"github.com/MikeSquared-Agency/jarvis/internal/identity"
	"github.com/MikeSquared-Agency/jarvis/internal/notify"
	"github.com/MikeSquared-Agency/jarvis/internal/persist"
	"github.com/MikeSquared-Agency/jarvis/internal/segmenter"
	"github.com/MikeSquared-Agency/jarvis/internal/store"
)

const (
	// MinTextChars is the minimum number of non-space characters accepted.
	MinTextChars  = 10
	DefaultSource = "manual"

	notifyTimeout = 15 * time.Second
)

var (
	ErrTextTooShort     = errors.New("text too short")
	ErrNothingToProcess = errors.New("no segments to process")
)

type Segmenter interface {
	Segment(ctx context.Context, text string) ([]segmenter.Segment, error)
}

type Extractor interface {
	Extract(ctx context.Context, text string, hint *extractor.Hint, id *extractor.Identity) (*extractor.ExtractedData, error)
}

type Persister interface {
	Persist(ctx context.Context, in persist.Input) (*persist.Result, error)
}

// Store is the read and reprocess surface of *store.Store.
type Store interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*store.Profile, error)
	GetTranscription(ctx context.Context, userID, id uuid.UUID) (*store.Transcription, error)
	DeleteTranscriptionCascade(ctx context.Context, userID, id uuid.UUID) error
	ListGroup(ctx context.Context, userID, groupID uuid.UUID) ([]store.Transcription, error)
}

type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, message string) error
}

type Publisher interface {
	Publish(subject string, data any) error
}

type Request struct {
	RequestID   string
	UserID      uuid.UUID
	Text        string
	Source      string
	ReprocessID *uuid.UUID
	// Quiet suppresses the per-request user notification.
	Quiet bool
}

type SegmentResult struct {
	SegmentID     int                      `json:"segment_id"`
	Title         string                   `json:"title"`
	Participants  []string                 `json:"participants"`
	ContextClue   string                   `json:"context_clue"`
	Transcription *store.Transcription     `json:"transcription"`
	Extracted     *extractor.ExtractedData `json:"extracted"`
	Failed        []string                 `json:"failed_categories,omitempty"`
}

type SegmentError struct {
	SegmentID int    `json:"segment_id"`
	Title     string `json:"title"`
	Error     string `json:"error"`
}

// Response is {transcription, extracted} for a single segment and
// {segmented, group_id, segments, errors} otherwise.
type Response struct {
	Transcription *store.Transcription     `json:"transcription,omitempty"`
	Extracted     *extractor.ExtractedData `json:"extracted,omitempty"`
	Failed        []string                 `json:"failed_categories,omitempty"`

	Segmented bool            `json:"segmented,omitempty"`
	GroupID   *uuid.UUID      `json:"group_id,omitempty"`
	Segments  []SegmentResult `json:"segments,omitempty"`
	Errors    []SegmentError  `json:"errors,omitempty"`
}

type Pipeline struct {
	store          Store
	segmenter      Segmenter
	extractor      Extractor
	persister      Persister
	notifier       Notifier
	publisher      Publisher
	protectedNames []string
	concurrency    int
	logger         *slog.Logger

	// wg tracks submitted-event handlers and fire-and-forget notifications.
	wg       sync.WaitGroup
	mu       sync.Mutex
	draining bool
}

type Config struct {
	ProtectedNames []string
	Concurrency    int
}

// New wires a pipeline. notifier and publisher may be nil.
func New(st Store, seg Segmenter, ext Extractor, per Persister, notifier Notifier, publisher Publisher, cfg Config, logger *slog.Logger) *Pipeline {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Pipeline{
		store:          st,
		segmenter:      seg,
		extractor:      ext,
		persister:      per,
		notifier:       notifier,
		publisher:      publisher,
		protectedNames: cfg.ProtectedNames,
		concurrency:    cfg.Concurrency,
		logger:         logger,
	}
}

// Reprocess deletes a transcription and its derived rows, then runs the
// normal flow over its raw text.
func (p *Pipeline) Reprocess(ctx context.Context, userID, transcriptionID uuid.UUID, source string) (*Response, error) {
	return p.Process(ctx, Request{UserID: userID, Source: source, ReprocessID: &transcriptionID})
}

// Group lists the transcriptions created by one segmented request.
func (p *Pipeline) Group(ctx context.Context, userID, groupID uuid.UUID) ([]store.Transcription, error) {
	rows, err := p.store.ListGroup(ctx, userID, groupID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("group %s: %w", groupID, store.ErrNotFound)
	}
	return rows, nil
}

// Process runs one request. Every outcome is published as a processed
// event; only successful requests notify the user.
func (p *Pipeline) Process(ctx context.Context, req Request) (*Response, error) {
	resp, err := p.process(ctx, req)
	if err == nil && !req.Quiet {
		p.notifyAsync(req.UserID, resp)
	}
	p.publish(req, resp, err)
	return resp, err
}

func (p *Pipeline) process(ctx context.Context, req Request) (*Response, error) {
	text, source, err := p.resolveInput(ctx, req)
	if err != nil {
		return nil, err
	}

	ictx := p.loadIdentity(ctx, req.UserID)

	segments, err := p.segmenter.Segment(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("segment: %w", err)
	}
	if len(segments) == 0 {
		return nil, ErrNothingToProcess
	}

	p.logger.Info("processing transcription",
		"user_id", req.UserID,
		"segments", len(segments),
		"words", segmenter.WordCount(text),
		"reprocess", req.ReprocessID != nil,
	)

	if len(segments) == 1 {
		return p.processSingle(ctx, req.UserID, source, segments[0], ictx)
	}
	return p.processSegments(ctx, req.UserID, source, segments, ictx)
}

func (p *Pipeline) resolveInput(ctx context.Context, req Request) (string, string, error) {
	source := req.Source
	if req.ReprocessID == nil {
		if err := ValidateText(req.Text); err != nil {
			return "", "", err
		}
		if source == "" {
			source = DefaultSource
		}
		return req.Text, source, nil
	}

	prev, err := p.store.GetTranscription(ctx, req.UserID, *req.ReprocessID)
	if err != nil {
		return "", "", fmt.Errorf("load transcription for reprocess: %w", err)
	}
	if err := p.store.DeleteTranscriptionCascade(ctx, req.UserID, prev.ID); err != nil {
		return "", "", fmt.Errorf("delete for reprocess: %w", err)
	}
	p.logger.Info("reprocessing transcription",
		"user_id", req.UserID,
		"transcription_id", prev.ID,
	)
	if source == "" {
		source = prev.Source
	}
	if source == "" {
		source = DefaultSource
	}
	return prev.RawText, source, nil
}

// loadIdentity never fails: a missing or unreadable profile yields an empty
// identity.
func (p *Pipeline) loadIdentity(ctx context.Context, userID uuid.UUID) *identity.Context {
	profile, err := p.store.GetProfile(ctx, userID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			p.logger.Warn("failed to load user profile", "user_id", userID, "error", err)
		}
		return identity.NewContext(nil, p.protectedNames)
	}
	return identity.NewContext(&extractor.Identity{
		UserName: profile.Name,
		Aliases:  profile.Aliases,
	}, p.protectedNames)
}

func (p *Pipeline) processSingle(ctx context.Context, userID uuid.UUID, source string, seg segmenter.Segment, ictx *identity.Context) (*Response, error) {
	res, err := p.processSegment(ctx, userID, source, seg, nil, nil, ictx)
	if err != nil {
		return nil, err
	}
	return &Response{
		Transcription: res.Transcription,
		Extracted:     res.Extracted,
		Failed:        res.Failed,
	}, nil
}

// processSegments runs every segment under the concurrency limit. One
// segment's failure is recorded and does not stop the others; the request
// fails only when no segment succeeds.
func (p *Pipeline) processSegments(ctx context.Context, userID uuid.UUID, source string, segments []segmenter.Segment, ictx *identity.Context) (*Response, error) {
	groupID := uuid.New()
	results := make([]*persist.Result, len(segments))
	errs := make([]error, len(segments))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, seg := range segments {
		g.Go(func() error {
			hint := &extractor.Hint{Title: seg.Title, Participants: seg.Participants}
			results[i], errs[i] = p.processSegment(gctx, userID, source, seg, hint, &groupID, ictx)
			if errs[i] != nil {
				p.logger.Error("segment failed",
					"user_id", userID,
					"group_id", groupID,
					"segment_id", seg.ID,
					"error", errs[i],
				)
			}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp := &Response{Segmented: true, GroupID: &groupID}
	for i, seg := range segments {
		if errs[i] != nil {
			resp.Errors = append(resp.Errors, SegmentError{SegmentID: seg.ID, Title: seg.Title, Error: errs[i].Error()})
			continue
		}
		resp.Segments = append(resp.Segments, SegmentResult{
			SegmentID:     seg.ID,
			Title:         seg.Title,
			Participants:  seg.Participants,
			ContextClue:   seg.ContextClue,
			Transcription: results[i].Transcription,
			Extracted:     results[i].Extracted,
			Failed:        results[i].Failed,
		})
	}
	if len(resp.Segments) == 0 {
		return nil, fmt.Errorf("all %d segments failed: %w", len(segments), errors.Join(errs...))
	}
	return resp, nil
}

func (p *Pipeline) processSegment(ctx context.Context, userID uuid.UUID, source string, seg segmenter.Segment, hint *extractor.Hint, groupID *uuid.UUID, ictx *identity.Context) (*persist.Result, error) {
	data, err := p.extractor.Extract(ctx, seg.Text, hint, ictx.Self)
	if err != nil {
		return nil, fmt.Errorf("extract segment %d: %w", seg.ID, err)
	}
	identity.FilterSelf(data, ictx.SelfNames)
	if identity.ForceBrain(data, ictx.ProtectedNames) {
		p.logger.Info("brain overridden by protected name", "segment_id", seg.ID)
	}

	res, err := p.persister.Persist(ctx, persist.Input{
		UserID:         userID,
		Source:         source,
		RawText:        seg.Text,
		Data:           data,
		GroupID:        groupID,
		Participants:   seg.Participants,
		ProtectedNames: ictx.ProtectedNames,
	})
	if err != nil {
		return nil, fmt.Errorf("persist segment %d: %w", seg.ID, err)
	}
	return res, nil
}

// notifyAsync sends the summary without blocking the caller. The send
// outlives the request context.
func (p *Pipeline) notifyAsync(userID uuid.UUID, resp *Response) {
	if p.notifier == nil {
		return
	}
	message := notify.FormatSummary(summaryItems(resp), len(resp.Errors))

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := p.notifier.Notify(ctx, userID, message); err != nil {
			p.logger.Warn("notification failed", "user_id", userID, "error", err)
		}
	}()
}

// Wait stops accepting submitted events and blocks until in-flight events
// and notifications finish.
func (p *Pipeline) Wait() {
	p.mu.Lock()
	p.draining = true
	p.mu.Unlock()
	p.wg.Wait()
}

// track registers an in-flight submitted event. It reports false once Wait
// has been called.
func (p *Pipeline) track() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.draining {
		return false
	}
	p.wg.Add(1)
	return true
}

func (p *Pipeline) publish(req Request, resp *Response, procErr error) {
	if p.publisher == nil {
		return
	}
	evt := processedEvent(req.UserID, req.RequestID, resp, procErr)
	if err := p.publisher.Publish(hermes.SubjectProcessed, evt); err != nil {
		p.logger.Warn("failed to publish processed event", "user_id", req.UserID, "error", err)
	}
}

func processedEvent(userID uuid.UUID, requestID string, resp *Response, procErr error) hermes.ProcessedEvent {
	evt := hermes.ProcessedEvent{RequestID: requestID, UserID: userID.String()}
	if procErr != nil {
		evt.Status = "failed"
		evt.Error = procErr.Error()
		return evt
	}
	evt.Status = "ok"
	if len(resp.Errors) > 0 {
		evt.Status = "partial"
		evt.FailedSegments = len(resp.Errors)
	}
	if resp.GroupID != nil {
		evt.GroupID = resp.GroupID.String()
	}
	for _, t := range resp.Transcriptions() {
		evt.TranscriptionIDs = append(evt.TranscriptionIDs, t.ID.String())
		evt.Brains = append(evt.Brains, t.Brain)
	}
	return evt
}

// Transcriptions lists the rows written for the request, in segment order.
func (r *Response) Transcriptions() []*store.Transcription {
	if !r.Segmented {
		return []*store.Transcription{r.Transcription}
	}
	out := make([]*store.Transcription, 0, len(r.Segments))
	for _, s := range r.Segments {
		out = append(out, s.Transcription)
	}
	return out
}

func summaryItems(resp *Response) []notify.Item {
	var items []notify.Item
	add := func(t *store.Transcription, data *extractor.ExtractedData) {
		items = append(items, notify.Item{
			Title:     t.Title,
			Brain:     t.Brain,
			Ambient:   t.IsAmbient,
			Suggested: len(data.Suggestions),
		})
	}
	if !resp.Segmented {
		add(resp.Transcription, resp.Extracted)
		return items
	}
	for _, s := range resp.Segments {
		add(s.Transcription, s.Extracted)
	}
	return items
}

func countNonSpace(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}

// ValidateText reports ErrTextTooShort for text below MinTextChars.
func ValidateText(text string) error {
	if countNonSpace(text) < MinTextChars {
		return ErrTextTooShort
	}
	return nil
}
