package segmenter

import (
	"unicode"
	"unicode/utf8"
)

// WordCount counts whitespace-separated words.
func WordCount(text string) int {
	n := 0
	inWord := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			inWord = false
			continue
		}
		if !inWord {
			n++
			inWord = true
		}
	}
	return n
}

// SplitBlocks cuts text into contiguous blocks of at most maxWords words.
// Cuts fall at the start of a word, so the blocks concatenate back to the
// original text byte for byte.
func SplitBlocks(text string, maxWords int) []string {
	if maxWords <= 0 || text == "" {
		return []string{text}
	}

	var blocks []string
	blockStart := 0
	words := 0
	inWord := false
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if unicode.IsSpace(r) {
			inWord = false
		} else if !inWord {
			inWord = true
			if words == maxWords {
				blocks = append(blocks, text[blockStart:i])
				blockStart = i
				words = 0
			}
			words++
		}
		i += size
	}
	return append(blocks, text[blockStart:])
}
