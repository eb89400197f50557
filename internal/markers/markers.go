// Package markers locates model-chosen boundary phrases inside a source text.
//
// Matching is case-insensitive and treats any run of whitespace as a single
// space, so a phrase echoed back as "we should  call\nMarta" still matches
// "We should call Marta". Every byte of the normalised text remembers the
// original offset it came from, so resolved spans are always exact
// substrings of the source.
package markers

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Span is a half-open byte range [Start, End) of the original text.
type Span struct {
	Start int
	End   int
}

// Index is a normalised view of a source text with a byte-level map back to
// original offsets.
type Index struct {
	source string
	norm   string
	starts []int // starts[i]: original offset of the rune that produced norm[i]
	ends   []int // ends[i]: original offset just past that rune (or whitespace run)
}

// NewIndex builds the normalised view of source.
func NewIndex(source string) *Index {
	var b strings.Builder
	b.Grow(len(source))
	starts := make([]int, 0, len(source))
	ends := make([]int, 0, len(source))

	i := 0
	for i < len(source) {
		r, size := utf8.DecodeRuneInString(source[i:])
		if unicode.IsSpace(r) {
			runStart := i
			for i < len(source) {
				r2, s2 := utf8.DecodeRuneInString(source[i:])
				if !unicode.IsSpace(r2) {
					break
				}
				i += s2
			}
			b.WriteByte(' ')
			starts = append(starts, runStart)
			ends = append(ends, i)
			continue
		}

		lower := unicode.ToLower(r)
		n := utf8.RuneLen(lower)
		if n < 0 {
			lower, n = utf8.RuneError, utf8.RuneLen(utf8.RuneError)
		}
		b.WriteRune(lower)
		for k := 0; k < n; k++ {
			starts = append(starts, i)
			ends = append(ends, i+size)
		}
		i += size
	}

	return &Index{source: source, norm: b.String(), starts: starts, ends: ends}
}

// Normalize lowercases s and collapses whitespace runs to single spaces,
// trimming the ends.
func Normalize(s string) string {
	return strings.TrimSpace(NewIndex(s).norm)
}

// Source returns the original text.
func (x *Index) Source() string { return x.source }

// Find locates phrase at or after the original offset from.
func (x *Index) Find(phrase string, from int) (Span, bool) {
	needle := Normalize(phrase)
	if needle == "" {
		return Span{}, false
	}
	pos := x.normOffset(from)
	if pos >= len(x.norm) {
		return Span{}, false
	}
	rel := strings.Index(x.norm[pos:], needle)
	if rel < 0 {
		return Span{}, false
	}
	at := pos + rel
	return Span{Start: x.starts[at], End: x.ends[at+len(needle)-1]}, true
}

// Resolve finds startWords and then endWords strictly after it. A missing
// end marker extends the span to the end of the source. A missing start
// marker fails.
func (x *Index) Resolve(startWords, endWords string) (Span, bool) {
	start, ok := x.Find(startWords, 0)
	if !ok {
		return Span{}, false
	}
	if end, ok := x.Find(endWords, start.End); ok {
		return Span{Start: start.Start, End: end.End}, true
	}
	return Span{Start: start.Start, End: len(x.source)}, true
}

// Text returns the original substring for sp.
func (x *Index) Text(sp Span) string {
	return x.source[sp.Start:sp.End]
}

// normOffset maps an original byte offset to the first normalised index whose
// source rune starts at or after it.
func (x *Index) normOffset(orig int) int {
	if orig <= 0 {
		return 0
	}
	return sort.SearchInts(x.starts, orig)
}

// Resolve is a convenience wrapper returning the resolved substring.
func Resolve(source, startWords, endWords string) (string, bool) {
	x := NewIndex(source)
	sp, ok := x.Resolve(startWords, endWords)
	if !ok {
		return "", false
	}
	return x.Text(sp), true
}
