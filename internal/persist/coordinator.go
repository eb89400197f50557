// Package persist fans one extraction result out into the relational store.
package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/jarvis/internal/extractor"
	"github.com/MikeSquared-Agency/jarvis/internal/identity"
	"github.com/MikeSquared-Agency/jarvis/internal/store"
)

// Repository is the subset of *store.Store the coordinator writes through.
type Repository interface {
	InsertTranscription(ctx context.Context, t *store.Transcription) error
	InsertCommitments(ctx context.Context, rows []store.Commitment) error
	InsertFollowUps(ctx context.Context, rows []store.FollowUp) error
	InsertSuggestions(ctx context.Context, rows []store.Suggestion) error
	InsertTasks(ctx context.Context, rows []store.Task) error
	InsertEmbeddings(ctx context.Context, rows []store.Embedding) error
	InsertInteractions(ctx context.Context, rows []store.Interaction) error
	WithUserLock(ctx context.Context, userID uuid.UUID, fn func(store.Entities) error) error
}

type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

const (
	MaturitySeed      = "seed"
	MaturityExploring = "exploring"

	// exploringThreshold is the mention count at which a seed idea is promoted.
	exploringThreshold = 3
)

type Input struct {
	UserID         uuid.UUID
	Source         string
	RawText        string
	Data           *extractor.ExtractedData
	GroupID        *uuid.UUID
	Participants   []string
	ProtectedNames []string
}

type Result struct {
	Transcription *store.Transcription     `json:"transcription"`
	Extracted     *extractor.ExtractedData `json:"extracted"`
	Failed        []string                 `json:"failed_categories,omitempty"`
}

type Coordinator struct {
	repo     Repository
	embedder Embedder
	logger   *slog.Logger
	now      func() time.Time
}

// New builds a coordinator. embedder may be nil, which disables embeddings.
func New(repo Repository, embedder Embedder, logger *slog.Logger) *Coordinator {
	return &Coordinator{repo: repo, embedder: embedder, logger: logger, now: time.Now}
}

// Persist writes the transcription row and then each entity category
// independently. Only the transcription insert is fatal; category failures
// are logged and listed in Result.Failed.
func (c *Coordinator) Persist(ctx context.Context, in Input) (*Result, error) {
	data := in.Data
	if data == nil {
		return nil, errors.New("persist: nil extraction")
	}
	identity.SanitizeBrain(data)
	identity.ForceBrain(data, in.ProtectedNames)

	entities, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal extraction: %w", err)
	}

	tr := &store.Transcription{
		UserID:    in.UserID,
		Source:    in.Source,
		RawText:   in.RawText,
		Brain:     data.Brain,
		Title:     data.Title,
		Summary:   data.Summary,
		Sentiment: data.Sentiment,
		Entities:  entities,
		GroupID:   in.GroupID,
		IsAmbient: data.IsAmbient,
	}
	if err := c.repo.InsertTranscription(ctx, tr); err != nil {
		return nil, err
	}

	res := &Result{Transcription: tr, Extracted: data}
	if data.IsAmbient {
		c.logger.Info("ambient content, skipping entity persistence",
			"transcription_id", tr.ID,
			"ambient_type", data.AmbientType,
		)
		return res, nil
	}

	w := &write{Coordinator: c, in: in, tr: tr, today: c.now()}
	var matched []store.Contact

	steps := []struct {
		name string
		run  func(context.Context) error
	}{
		{"commitments", w.commitments},
		{"contacts", func(ctx context.Context) (err error) {
			matched, err = w.contacts(ctx)
			return err
		}},
		{"follow_ups", w.followUps},
		{"suggestions", w.suggestions},
		{"ideas", w.ideas},
		{"tasks", w.tasks},
		{"embeddings", w.embeddings},
		{"interactions", func(ctx context.Context) error { return w.interactions(ctx, matched) }},
	}
	for _, step := range steps {
		if err := step.run(ctx); err != nil {
			c.logger.Error("persist category failed",
				"category", step.name,
				"transcription_id", tr.ID,
				"error", err,
			)
			res.Failed = append(res.Failed, step.name)
		}
	}
	return res, nil
}

// write holds the per-call state shared by the category writers.
type write struct {
	*Coordinator
	in    Input
	tr    *store.Transcription
	today time.Time
}

func (w *write) commitments(ctx context.Context) error {
	src := w.in.Data.Commitments
	if len(src) == 0 {
		return nil
	}
	rows := make([]store.Commitment, 0, len(src))
	for _, cm := range src {
		kind := "third_party"
		if strings.EqualFold(cm.Type, "own") {
			kind = "own"
		}
		rows = append(rows, store.Commitment{
			UserID:          w.in.UserID,
			TranscriptionID: w.tr.ID,
			Description:     cm.Description,
			Type:            kind,
			PersonName:      cm.PersonName,
			Deadline:        parseDate(cm.Deadline),
		})
	}
	return w.repo.InsertCommitments(ctx, rows)
}

// contacts upserts every mentioned person and returns the contacts that
// already existed before this transcription.
func (w *write) contacts(ctx context.Context) ([]store.Contact, error) {
	people := uniquePeople(w.in.Data.People)
	if len(people) == 0 {
		return nil, nil
	}

	var matched []store.Contact
	err := w.repo.WithUserLock(ctx, w.in.UserID, func(e store.Entities) error {
		matched = matched[:0]
		for _, p := range people {
			existing, err := e.FindContactByNameCI(ctx, w.in.UserID, p.Name)
			switch {
			case errors.Is(err, store.ErrNotFound):
				if err := e.InsertContact(ctx, &store.Contact{
					UserID:           w.in.UserID,
					Name:             p.Name,
					Relationship:     p.Relationship,
					Company:          p.Company,
					Role:             p.Role,
					Context:          p.Context,
					InteractionCount: 1,
					LastContact:      w.today,
					Brain:            w.in.Data.Brain,
				}); err != nil {
					return err
				}
			case err != nil:
				return fmt.Errorf("find contact %q: %w", p.Name, err)
			default:
				existing.InteractionCount++
				existing.LastContact = w.today
				refresh(&existing.Context, p.Context)
				refresh(&existing.Company, p.Company)
				refresh(&existing.Role, p.Role)
				refresh(&existing.Relationship, p.Relationship)
				if err := e.UpdateContact(ctx, existing); err != nil {
					return err
				}
				matched = append(matched, *existing)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return matched, nil
}

func (w *write) followUps(ctx context.Context) error {
	src := w.in.Data.FollowUps
	if len(src) == 0 {
		return nil
	}
	rows := make([]store.FollowUp, 0, len(src))
	for _, f := range src {
		rows = append(rows, store.FollowUp{
			UserID:          w.in.UserID,
			TranscriptionID: w.tr.ID,
			Topic:           f.Topic,
			Reason:          f.Reason,
			Date:            parseDate(f.Date),
		})
	}
	return w.repo.InsertFollowUps(ctx, rows)
}

func (w *write) suggestions(ctx context.Context) error {
	src := w.in.Data.Suggestions
	if len(src) == 0 {
		return nil
	}
	rows := make([]store.Suggestion, 0, len(src))
	for _, s := range src {
		rows = append(rows, store.Suggestion{
			UserID:          w.in.UserID,
			TranscriptionID: w.tr.ID,
			Type:            s.Type,
			Content:         s.Content,
		})
	}
	return w.repo.InsertSuggestions(ctx, rows)
}

func (w *write) ideas(ctx context.Context) error {
	src := w.in.Data.Ideas
	if len(src) == 0 {
		return nil
	}
	return w.repo.WithUserLock(ctx, w.in.UserID, func(e store.Entities) error {
		for _, idea := range src {
			name := strings.TrimSpace(idea.Name)
			if name == "" {
				continue
			}
			note := store.IdeaNote{
				Text:   firstNonEmpty(idea.Description, name),
				Date:   w.today.Format(time.DateOnly),
				Source: w.in.Source,
			}

			existing, err := e.FindIdeaByNameCI(ctx, w.in.UserID, name)
			switch {
			case errors.Is(err, store.ErrNotFound):
				if err := e.InsertIdea(ctx, &store.Idea{
					UserID:                w.in.UserID,
					Name:                  name,
					Description:           idea.Description,
					Category:              idea.Category,
					MentionCount:          1,
					Notes:                 []store.IdeaNote{note},
					MaturityState:         MaturitySeed,
					SourceTranscriptionID: w.tr.ID,
				}); err != nil {
					return err
				}
			case err != nil:
				return fmt.Errorf("find idea %q: %w", name, err)
			default:
				existing.MentionCount++
				existing.Notes = append(existing.Notes, note)
				existing.MaturityState = Maturity(existing.MaturityState, existing.MentionCount)
				if err := e.UpdateIdea(ctx, existing); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// Maturity promotes a seed idea to exploring once it reaches the mention
// threshold. Other states are left alone.
func Maturity(current string, mentions int) string {
	if (current == "" || current == MaturitySeed) && mentions >= exploringThreshold {
		return MaturityExploring
	}
	if current == "" {
		return MaturitySeed
	}
	return current
}

func (w *write) tasks(ctx context.Context) error {
	src := w.in.Data.Tasks
	if len(src) == 0 {
		return nil
	}
	rows := make([]store.Task, 0, len(src))
	for _, t := range src {
		rows = append(rows, store.Task{
			UserID:   w.in.UserID,
			Title:    t.Title,
			Priority: TaskPriority(t.Priority),
			Type:     TaskType(w.in.Data.Brain),
			DueDate:  parseDate(t.DueDate),
			Source:   w.in.Source,
		})
	}
	return w.repo.InsertTasks(ctx, rows)
}

// TaskPriority maps extraction priorities onto the task system's P1..P3.
func TaskPriority(p string) string {
	switch strings.ToLower(p) {
	case "high":
		return "P1"
	case "low":
		return "P3"
	default:
		return "P2"
	}
}

// TaskType maps a brain onto the coarser task type.
func TaskType(brain string) string {
	if brain == extractor.BrainProfessional {
		return "work"
	}
	return "life"
}

func (w *write) embeddings(ctx context.Context) error {
	if w.embedder == nil {
		return nil
	}
	data := w.in.Data
	var texts []string
	lead := leadText(data.Title, data.Summary)
	if lead != "" {
		texts = append(texts, lead)
	}
	texts = append(texts, ChunkText(w.in.RawText, MaxChunkChars)...)
	if len(texts) == 0 {
		return nil
	}

	vectors, err := w.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(texts) {
		return fmt.Errorf("expected %d vectors, got %d", len(texts), len(vectors))
	}

	people := EmbeddingPeople(w.in.Participants, data.Speakers)
	rows := make([]store.Embedding, 0, len(texts))
	for i, text := range texts {
		kind := "chunk"
		if i == 0 && lead != "" {
			kind = "lead"
		}
		meta := map[string]any{
			"kind":        kind,
			"chunk_index": i,
			"source":      w.in.Source,
			"title":       data.Title,
		}
		if w.in.GroupID != nil {
			meta["group_id"] = w.in.GroupID.String()
		}
		rows = append(rows, store.Embedding{
			UserID:          w.in.UserID,
			TranscriptionID: w.tr.ID,
			Content:         text,
			Vector:          vectors[i],
			People:          people,
			Brain:           data.Brain,
			Date:            w.today,
			Metadata:        meta,
		})
	}
	return w.repo.InsertEmbeddings(ctx, rows)
}

// leadText joins the non-blank title and summary into the lead chunk.
func leadText(title, summary string) string {
	var parts []string
	for _, p := range []string{title, summary} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ". ")
}

// EmbeddingPeople picks who an embedding is about: segment participants when
// known, else the speakers. The mentioned people list is never used.
func EmbeddingPeople(participants, speakers []string) []string {
	if len(participants) > 0 {
		return participants
	}
	if len(speakers) > 0 {
		return speakers
	}
	return []string{}
}

func (w *write) interactions(ctx context.Context, matched []store.Contact) error {
	if len(matched) == 0 {
		return nil
	}
	rows := make([]store.Interaction, 0, len(matched))
	for _, contact := range matched {
		var promised []string
		for _, cm := range w.in.Data.Commitments {
			if strings.EqualFold(strings.TrimSpace(cm.PersonName), contact.Name) {
				promised = append(promised, cm.Description)
			}
		}
		rows = append(rows, store.Interaction{
			UserID:          w.in.UserID,
			ContactID:       contact.ID,
			TranscriptionID: w.tr.ID,
			Summary:         w.in.Data.Summary,
			Commitments:     promised,
			Date:            w.today,
		})
	}
	return w.repo.InsertInteractions(ctx, rows)
}

func uniquePeople(in []extractor.Person) []extractor.Person {
	seen := make(map[string]bool, len(in))
	out := make([]extractor.Person, 0, len(in))
	for _, p := range in {
		p.Name = strings.TrimSpace(p.Name)
		key := strings.ToLower(p.Name)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out
}

func refresh(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil
	}
	return &t
}
