package persist

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxChunkChars bounds each embedded body chunk.
const MaxChunkChars = 1500

// ChunkText packs whole sentences greedily into chunks of at most max
// characters. Sentences longer than max are split on word boundaries, and
// single words longer than max on rune boundaries.
func ChunkText(text string, max int) []string {
	var chunks []string
	var cur strings.Builder
	curLen := 0

	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			chunks = append(chunks, s)
		}
		cur.Reset()
		curLen = 0
	}

	for _, sentence := range splitSentences(text) {
		n := utf8.RuneCountInString(sentence)
		if n > max {
			flush()
			chunks = append(chunks, splitLong(sentence, max)...)
			continue
		}
		sep := 0
		if curLen > 0 {
			sep = 1
		}
		if curLen+sep+n > max {
			flush()
			sep = 0
		}
		if sep == 1 {
			cur.WriteByte(' ')
		}
		cur.WriteString(sentence)
		curLen += sep + n
	}
	flush()
	return chunks
}

// splitSentences cuts after . ! ? or a newline when followed by whitespace or
// the end of text. Returned sentences are trimmed and non-empty.
func splitSentences(text string) []string {
	var out []string
	start := 0
	for i, r := range text {
		end := i + utf8.RuneLen(r)
		if r != '.' && r != '!' && r != '?' && r != '\n' {
			continue
		}
		if end < len(text) {
			next, _ := utf8.DecodeRuneInString(text[end:])
			if !unicode.IsSpace(next) {
				continue
			}
		}
		if s := strings.TrimSpace(text[start:end]); s != "" {
			out = append(out, s)
		}
		start = end
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

func splitLong(s string, max int) []string {
	var out []string
	var cur []string
	curLen := 0
	for _, w := range strings.Fields(s) {
		n := utf8.RuneCountInString(w)
		if n > max {
			if len(cur) > 0 {
				out = append(out, strings.Join(cur, " "))
				cur, curLen = nil, 0
			}
			runes := []rune(w)
			for len(runes) > max {
				out = append(out, string(runes[:max]))
				runes = runes[max:]
			}
			w, n = string(runes), len(runes)
		}
		sep := 0
		if curLen > 0 {
			sep = 1
		}
		if curLen+sep+n > max {
			out = append(out, strings.Join(cur, " "))
			cur, curLen, sep = nil, 0, 0
		}
		cur = append(cur, w)
		curLen += sep + n
	}
	if len(cur) > 0 {
		out = append(out, strings.Join(cur, " "))
	}
	return out
}
