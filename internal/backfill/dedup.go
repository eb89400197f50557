package backfill

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/MikeSquared-Agency/jarvis/internal/markers"
)

// Fingerprint identifies a recording by its whitespace- and case-normalised
// text, so the same transcript exported twice is imported once.
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(markers.Normalize(text)))
	return hex.EncodeToString(sum[:])
}

// Dedupe drops recordings whose fingerprint is in imported or repeats an
// earlier recording in the list. imported is not modified; callers record a
// fingerprint only once its recording has been processed.
func Dedupe(recs []Recording, imported map[string]bool) (kept []Recording, skipped int) {
	batch := make(map[string]bool, len(recs))
	for _, r := range recs {
		fp := Fingerprint(r.Text)
		if imported[fp] || batch[fp] {
			skipped++
			continue
		}
		batch[fp] = true
		kept = append(kept, r)
	}
	return kept, skipped
}
