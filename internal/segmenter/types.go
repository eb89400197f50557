package segmenter

// Segment is one self-contained conversational slice of a transcript.
// Text is always an exact substring of the block it was resolved against.
type Segment struct {
	ID           int      `json:"segment_id"`
	Title        string   `json:"title"`
	Participants []string `json:"participants"`
	Text         string   `json:"-"`
	ContextClue  string   `json:"context_clue"`
	Block        int      `json:"block"` // 1-based block the segment came from
}

// marker is one boundary as returned by the segmentation model. The phrases
// only locate text and are never stored.
type marker struct {
	SegmentID    int      `json:"segment_id"`
	Title        string   `json:"title"`
	Participants []string `json:"participants"`
	StartWords   string   `json:"start_words"`
	EndWords     string   `json:"end_words"`
	ContextClue  string   `json:"context_clue"`
}

type markerResponse struct {
	Segments []marker `json:"segments"`
}

const (
	ClueSingle        = "single"
	ClueFallback      = "fallback"
	ClueBlockError    = "block-error"
	ClueBlockFallback = "block-fallback"
)
