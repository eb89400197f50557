package segmenter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/MikeSquared-Agency/jarvis/internal/gemini"
	"github.com/MikeSquared-Agency/jarvis/internal/markers"
)

const (
	// MinWords is the word count below which a text is never segmented.
	MinWords = 200
	// BlockWords is the largest block sent to the model in one call.
	BlockWords = 6000
	// minSegmentChars is the noise floor; shorter segments are dropped.
	minSegmentChars = 20
)

// Completer is the JSON-mode text completion the segmenter relies on.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

type Segmenter struct {
	llm         Completer
	logger      *slog.Logger
	concurrency int
}

// New returns a Segmenter. concurrency bounds how many blocks are segmented
// at once; values below 1 mean strictly sequential.
func New(llm Completer, logger *slog.Logger, concurrency int) *Segmenter {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Segmenter{llm: llm, logger: logger, concurrency: concurrency}
}

// Segment splits text into independent conversational segments with
// globally increasing IDs starting at 1.
func (s *Segmenter) Segment(ctx context.Context, text string) ([]Segment, error) {
	words := WordCount(text)

	switch {
	case words < MinWords:
		return []Segment{{ID: 1, Title: "", Text: text, ContextClue: ClueSingle, Block: 1}}, nil
	case words <= BlockWords:
		return s.segmentSingle(ctx, text)
	default:
		return s.segmentBlocks(ctx, text)
	}
}

func (s *Segmenter) segmentSingle(ctx context.Context, text string) ([]Segment, error) {
	segs, err := s.segmentBlock(ctx, text, 1)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Warn("segmentation failed, treating text as one segment", "error", err)
		segs = nil
	}
	if len(segs) == 0 {
		return []Segment{{ID: 1, Text: text, ContextClue: ClueFallback, Block: 1}}, nil
	}
	return renumber(1, [][]Segment{segs}), nil
}

func (s *Segmenter) segmentBlocks(ctx context.Context, text string) ([]Segment, error) {
	blocks := SplitBlocks(text, BlockWords)
	s.logger.Info("segmenting long transcript", "words", WordCount(text), "blocks", len(blocks))

	perBlock := make([][]Segment, len(blocks))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, block := range blocks {
		n := i + 1
		g.Go(func() error {
			segs, err := s.segmentBlock(ctx, block, n)
			if err != nil {
				s.logger.Error("block segmentation failed, passing block through",
					"block", n,
					"error", err,
				)
				perBlock[i] = []Segment{{
					Title:       fmt.Sprintf("Bloque %d", n),
					Text:        block,
					ContextClue: ClueBlockError,
					Block:       n,
				}}
				return nil
			}
			if len(segs) == 0 {
				segs = []Segment{{
					Title:       fmt.Sprintf("Bloque %d", n),
					Text:        block,
					ContextClue: ClueBlockFallback,
					Block:       n,
				}}
			}
			perBlock[i] = segs
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return renumber(1, perBlock), nil
}

// renumber folds per-block segments into one list with IDs counting up from
// next. Block order and in-block order are preserved.
func renumber(next int, perBlock [][]Segment) []Segment {
	var out []Segment
	for _, segs := range perBlock {
		for _, seg := range segs {
			seg.ID = next
			next++
			out = append(out, seg)
		}
	}
	return out
}

// segmentBlock asks the model for markers over one block and resolves them.
func (s *Segmenter) segmentBlock(ctx context.Context, block string, n int) ([]Segment, error) {
	raw, err := s.llm.Complete(ctx, systemPrompt, fmt.Sprintf(userPromptTemplate, block))
	if err != nil {
		return nil, fmt.Errorf("segmentation call: %w", err)
	}
	ms, err := parseMarkers(raw)
	if err != nil {
		return nil, err
	}
	segs := resolveMarkers(block, ms, n)
	s.logger.Debug("block segmented", "block", n, "markers", len(ms), "segments", len(segs))
	return segs, nil
}

func parseMarkers(raw string) ([]marker, error) {
	cleaned := gemini.StripFences(raw)
	var resp markerResponse
	if err := json.Unmarshal([]byte(cleaned), &resp); err == nil {
		return resp.Segments, nil
	}
	var list []marker
	if err := json.Unmarshal([]byte(cleaned), &list); err != nil {
		return nil, fmt.Errorf("parse segmentation: %w", err)
	}
	return list, nil
}

// resolveMarkers maps markers back onto block text. For each marker, in order:
// start..end; else start..next marker's start; else start..end of block; and
// if the start phrase is missing and this is the only marker, the whole block.
func resolveMarkers(block string, ms []marker, blockNum int) []Segment {
	idx := markers.NewIndex(block)
	var out []Segment
	cursor := 0
	for i, m := range ms {
		sp, ok := locate(idx, m, ms, i, cursor)
		if !ok {
			if len(ms) != 1 {
				continue
			}
			sp = markers.Span{Start: 0, End: len(block)}
		}
		text := idx.Text(sp)
		if utf8.RuneCountInString(strings.TrimSpace(text)) <= minSegmentChars {
			continue
		}
		cursor = sp.Start
		out = append(out, Segment{
			Title:        m.Title,
			Participants: m.Participants,
			Text:         text,
			ContextClue:  m.ContextClue,
			Block:        blockNum,
		})
	}
	return out
}

func locate(idx *markers.Index, m marker, ms []marker, i, cursor int) (markers.Span, bool) {
	start, ok := idx.Find(m.StartWords, cursor)
	if !ok {
		start, ok = idx.Find(m.StartWords, 0)
	}
	if !ok {
		return markers.Span{}, false
	}
	if end, ok := idx.Find(m.EndWords, start.End); ok {
		return markers.Span{Start: start.Start, End: end.End}, true
	}
	if i+1 < len(ms) {
		if next, ok := idx.Find(ms[i+1].StartWords, start.End); ok {
			return markers.Span{Start: start.Start, End: next.Start}, true
		}
	}
	return markers.Span{Start: start.Start, End: len(idx.Source())}, true
}
