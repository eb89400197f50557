package persist

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/jarvis/internal/store"
)

// memRepo is an in-memory Repository. Entity writes go straight to the maps;
// a failing WithUserLock callback does not roll back.
type memRepo struct {
	mu             sync.Mutex
	transcriptions []store.Transcription
	commitments    []store.Commitment
	followUps      []store.FollowUp
	suggestions    []store.Suggestion
	tasks          []store.Task
	embeddings     []store.Embedding
	interactions   []store.Interaction
	contacts       map[uuid.UUID]*store.Contact
	ideas          map[uuid.UUID]*store.Idea

	fail map[string]error
}

func newMemRepo() *memRepo {
	return &memRepo{
		contacts: make(map[uuid.UUID]*store.Contact),
		ideas:    make(map[uuid.UUID]*store.Idea),
		fail:     make(map[string]error),
	}
}

var errInjected = errors.New("injected failure")

func (m *memRepo) InsertTranscription(_ context.Context, t *store.Transcription) error {
	if err := m.fail["transcriptions"]; err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	m.transcriptions = append(m.transcriptions, *t)
	return nil
}

func (m *memRepo) InsertCommitments(_ context.Context, rows []store.Commitment) error {
	if err := m.fail["commitments"]; err != nil {
		return err
	}
	m.commitments = append(m.commitments, rows...)
	return nil
}

func (m *memRepo) InsertFollowUps(_ context.Context, rows []store.FollowUp) error {
	if err := m.fail["follow_ups"]; err != nil {
		return err
	}
	m.followUps = append(m.followUps, rows...)
	return nil
}

func (m *memRepo) InsertSuggestions(_ context.Context, rows []store.Suggestion) error {
	if err := m.fail["suggestions"]; err != nil {
		return err
	}
	m.suggestions = append(m.suggestions, rows...)
	return nil
}

func (m *memRepo) InsertTasks(_ context.Context, rows []store.Task) error {
	if err := m.fail["tasks"]; err != nil {
		return err
	}
	m.tasks = append(m.tasks, rows...)
	return nil
}

func (m *memRepo) InsertEmbeddings(_ context.Context, rows []store.Embedding) error {
	if err := m.fail["embeddings"]; err != nil {
		return err
	}
	m.embeddings = append(m.embeddings, rows...)
	return nil
}

func (m *memRepo) InsertInteractions(_ context.Context, rows []store.Interaction) error {
	if err := m.fail["interactions"]; err != nil {
		return err
	}
	m.interactions = append(m.interactions, rows...)
	return nil
}

func (m *memRepo) WithUserLock(_ context.Context, _ uuid.UUID, fn func(store.Entities) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(m)
}

func (m *memRepo) FindContactByNameCI(_ context.Context, userID uuid.UUID, name string) (*store.Contact, error) {
	if err := m.fail["contacts"]; err != nil {
		return nil, err
	}
	for _, c := range m.contacts {
		if c.UserID == userID && strings.EqualFold(c.Name, name) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memRepo) InsertContact(_ context.Context, c *store.Contact) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	cp := *c
	m.contacts[c.ID] = &cp
	return nil
}

func (m *memRepo) UpdateContact(_ context.Context, c *store.Contact) error {
	cp := *c
	m.contacts[c.ID] = &cp
	return nil
}

func (m *memRepo) FindIdeaByNameCI(_ context.Context, userID uuid.UUID, name string) (*store.Idea, error) {
	for _, i := range m.ideas {
		if i.UserID == userID && strings.EqualFold(i.Name, name) {
			cp := *i
			cp.Notes = append([]store.IdeaNote(nil), i.Notes...)
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memRepo) InsertIdea(_ context.Context, idea *store.Idea) error {
	if idea.ID == uuid.Nil {
		idea.ID = uuid.New()
	}
	cp := *idea
	m.ideas[idea.ID] = &cp
	return nil
}

func (m *memRepo) UpdateIdea(_ context.Context, idea *store.Idea) error {
	cp := *idea
	m.ideas[idea.ID] = &cp
	return nil
}

type fakeEmbedder struct {
	calls  int
	inputs []string
	err    error
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	f.inputs = texts
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i)}
	}
	return out, nil
}
