package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MikeSquared-Agency/jarvis/internal/gemini"
)

// Completer is the JSON-mode text completion the extractor relies on.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

type Extractor struct {
	llm    Completer
	logger *slog.Logger
}

func New(llm Completer, logger *slog.Logger) *Extractor {
	return &Extractor{llm: llm, logger: logger}
}

// Extract runs entity extraction over text. hint scopes people extraction to
// one segment; identity excludes the user from "people". Both may be nil.
func (e *Extractor) Extract(ctx context.Context, text string, hint *Hint, identity *Identity) (*ExtractedData, error) {
	system := BuildSystemPrompt(identity)
	user := BuildUserPrompt(text, hint)

	e.logger.Info("extracting entities",
		"text_len", len(text),
		"scoped", hint != nil,
	)

	raw, err := e.llm.Complete(ctx, system, user)
	if err != nil {
		return nil, fmt.Errorf("llm extraction: %w", err)
	}

	var data ExtractedData
	if err := json.Unmarshal([]byte(gemini.StripFences(raw)), &data); err != nil {
		e.logger.Error("failed to parse extraction response",
			"error", err,
			"raw_len", len(raw),
		)
		return nil, fmt.Errorf("parse extraction: %w", err)
	}
	data.normalize()
	data.fillSpeakers(hint)

	e.logger.Info("extraction complete",
		"ambient", data.IsAmbient,
		"brain", data.Brain,
		"speakers", len(data.Speakers),
		"people", len(data.People),
		"tasks", len(data.Tasks),
		"commitments", len(data.Commitments),
	)
	return &data, nil
}

// BuildSystemPrompt appends the self-exclusion clause when identity is known.
func BuildSystemPrompt(identity *Identity) string {
	names := identity.Names()
	if len(names) == 0 {
		return systemPrompt
	}
	return systemPrompt + fmt.Sprintf(selfExclusionTemplate, names[0], quoteList(names))
}

// BuildUserPrompt embeds text, prefixed with a segment scope when hint is set.
func BuildUserPrompt(text string, hint *Hint) string {
	scope := ""
	if hint != nil {
		participants := "unknown"
		if len(hint.Participants) > 0 {
			participants = strings.Join(hint.Participants, ", ")
		}
		scope = fmt.Sprintf(segmentScopeTemplate, hint.Title, participants)
	}
	return fmt.Sprintf(userPromptTemplate, scope, text)
}

func quoteList(names []string) string {
	q := make([]string, len(names))
	for i, n := range names {
		q[i] = `"` + n + `"`
	}
	return strings.Join(q, ", ")
}
