// Package identity applies deterministic corrections to extraction output:
// the operating user is removed from "people" and protected family names
// pin the brain to the family bucket.
package identity

import (
	"strings"

	"github.com/MikeSquared-Agency/jarvis/internal/extractor"
)

// Context carries the per-request identity data through the pipeline. It is
// read-only once built.
type Context struct {
	Self           *extractor.Identity
	SelfNames      map[string]struct{}
	ProtectedNames []string
}

// NewContext lowercases self names into a set. A nil self yields an empty set.
func NewContext(self *extractor.Identity, protected []string) *Context {
	c := &Context{
		Self:      self,
		SelfNames: make(map[string]struct{}),
	}
	for _, n := range self.Names() {
		c.SelfNames[strings.ToLower(strings.TrimSpace(n))] = struct{}{}
	}
	for _, p := range protected {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			c.ProtectedNames = append(c.ProtectedNames, p)
		}
	}
	return c
}

// FilterSelf drops every person whose name is, case-insensitively, one of
// selfNames. Other entries keep their order.
func FilterSelf(data *extractor.ExtractedData, selfNames map[string]struct{}) *extractor.ExtractedData {
	if data == nil || len(selfNames) == 0 || len(data.People) == 0 {
		return data
	}
	kept := data.People[:0:0]
	for _, p := range data.People {
		if _, self := selfNames[strings.ToLower(strings.TrimSpace(p.Name))]; self {
			continue
		}
		kept = append(kept, p)
	}
	data.People = kept
	return data
}

// ForceBrain sets the brain to bosco when any protected name occurs in the
// speakers, people names, title or summary of non-ambient data. It reports
// whether the brain was changed.
func ForceBrain(data *extractor.ExtractedData, protected []string) bool {
	if data == nil || data.IsAmbient || len(protected) == 0 {
		return false
	}
	if !mentionsAny(data, protected) || data.Brain == extractor.BrainBosco {
		return false
	}
	data.Brain = extractor.BrainBosco
	return true
}

// SanitizeBrain coerces unknown brain values to personal.
func SanitizeBrain(data *extractor.ExtractedData) {
	switch data.Brain {
	case extractor.BrainProfessional, extractor.BrainPersonal, extractor.BrainBosco:
	default:
		data.Brain = extractor.BrainPersonal
	}
}

func mentionsAny(data *extractor.ExtractedData, protected []string) bool {
	fields := make([]string, 0, len(data.Speakers)+len(data.People)+2)
	fields = append(fields, data.Speakers...)
	for _, p := range data.People {
		fields = append(fields, p.Name)
	}
	fields = append(fields, data.Title, data.Summary)

	for _, f := range fields {
		f = strings.ToLower(f)
		for _, name := range protected {
			if strings.Contains(f, strings.ToLower(name)) {
				return true
			}
		}
	}
	return false
}
