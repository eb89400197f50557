package extractor

// Brain buckets. Exactly one owns each non-ambient transcript.
const (
	BrainProfessional = "professional"
	BrainPersonal     = "personal"
	BrainBosco        = "bosco"
)

// ExtractedData is the structured result of one extraction run.
type ExtractedData struct {
	IsAmbient   bool         `json:"is_ambient"`
	AmbientType string       `json:"ambient_type,omitempty"`
	Brain       string       `json:"brain"`
	Title       string       `json:"title"`
	Summary     string       `json:"summary"`
	Sentiment   string       `json:"sentiment"`
	Tasks       []Task       `json:"tasks"`
	Commitments []Commitment `json:"commitments"`
	Speakers    []string     `json:"speakers"`
	People      []Person     `json:"people"`
	FollowUps   []FollowUp   `json:"follow_ups"`
	Events      []Event      `json:"events"`
	Ideas       []Idea       `json:"ideas"`
	Suggestions []Suggestion `json:"suggestions"`
}

type Task struct {
	Title    string `json:"title"`
	Priority string `json:"priority"` // high | medium | low
	DueDate  string `json:"due_date,omitempty"`
}

type Commitment struct {
	Description string `json:"description"`
	Type        string `json:"type"` // own | third_party
	PersonName  string `json:"person_name,omitempty"`
	Deadline    string `json:"deadline,omitempty"`
}

type Person struct {
	Name         string `json:"name"`
	Relationship string `json:"relationship,omitempty"`
	Company      string `json:"company,omitempty"`
	Role         string `json:"role,omitempty"`
	Context      string `json:"context,omitempty"`
}

type FollowUp struct {
	Topic  string `json:"topic"`
	Reason string `json:"reason,omitempty"`
	Date   string `json:"date,omitempty"`
}

type Event struct {
	Title    string `json:"title"`
	Date     string `json:"date,omitempty"`
	Time     string `json:"time,omitempty"`
	Location string `json:"location,omitempty"`
}

type Idea struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
}

type Suggestion struct {
	Type    string `json:"type"` // task | event | person | follow_up | idea
	Content string `json:"content"`
}

// Hint scopes extraction to one segment of a longer document.
type Hint struct {
	Title        string
	Participants []string
}

// Identity names the operating user so they are never extracted as a contact.
type Identity struct {
	UserName string
	Aliases  []string
}

// Names returns the user's name followed by aliases, skipping blanks.
func (id *Identity) Names() []string {
	if id == nil {
		return nil
	}
	var out []string
	if id.UserName != "" {
		out = append(out, id.UserName)
	}
	for _, a := range id.Aliases {
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

// normalize replaces nil slices with empty ones and clears entity lists for
// ambient content.
// UnknownSpeaker labels a conversation whose speakers could not be told apart.
const UnknownSpeaker = "Unknown speaker"

// fillSpeakers guarantees a conversation has at least one speaker: the
// segment participants when known, else UnknownSpeaker.
func (d *ExtractedData) fillSpeakers(hint *Hint) {
	if d.IsAmbient || len(d.Speakers) > 0 {
		return
	}
	if hint != nil && len(hint.Participants) > 0 {
		d.Speakers = append([]string(nil), hint.Participants...)
		return
	}
	d.Speakers = []string{UnknownSpeaker}
}

func (d *ExtractedData) normalize() {
	if d.IsAmbient {
		d.Tasks, d.Commitments, d.People = nil, nil, nil
		d.FollowUps, d.Events, d.Ideas, d.Suggestions = nil, nil, nil, nil
	}
	if d.Tasks == nil {
		d.Tasks = []Task{}
	}
	if d.Commitments == nil {
		d.Commitments = []Commitment{}
	}
	if d.Speakers == nil {
		d.Speakers = []string{}
	}
	if d.People == nil {
		d.People = []Person{}
	}
	if d.FollowUps == nil {
		d.FollowUps = []FollowUp{}
	}
	if d.Events == nil {
		d.Events = []Event{}
	}
	if d.Ideas == nil {
		d.Ideas = []Idea{}
	}
	if d.Suggestions == nil {
		d.Suggestions = []Suggestion{}
	}
}
