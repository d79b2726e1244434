// Package textsource provides a minimal capability.TextProvider for
// tests and the demo binary. Real word-bank loading is explicitly out
// of the core's scope (spec §1) and lives in the embedding application.
package textsource

import (
	"strings"

	"github.com/pkg/errors"
)

// Fixed is a small deterministic word list per language, cycled to fill
// any requested word count. It exists only so the demo binary and tests
// have something to hand the core — production embedders supply their
// own capability.TextProvider backed by real word banks.
type Fixed struct {
	words map[string][]string
}

// NewFixed returns a Fixed provider seeded with a couple of languages.
func NewFixed() *Fixed {
	return &Fixed{
		words: map[string][]string{
			"en": {"the", "quick", "brown", "fox", "jumps", "over", "lazy", "dog", "pack", "my", "box", "with", "five", "dozen", "liquor", "jugs"},
			"es": {"el", "veloz", "murcielago", "hindu", "comia", "feliz", "cardillo", "y", "kiwi", "la", "cigüeña", "tocaba", "el", "saxofón"},
		},
	}
}

// Words returns wordCount space-joined words for language, cycling the
// fixed list as needed. difficulty is accepted but unused by this
// fixture provider.
func (f *Fixed) Words(language, difficulty string, wordCount int) (string, error) {
	bank, ok := f.words[language]
	if !ok {
		return "", errors.Errorf("textsource: no words for language %q", language)
	}
	if wordCount <= 0 {
		return "", nil
	}

	out := make([]string, wordCount)
	for i := 0; i < wordCount; i++ {
		out[i] = bank[i%len(bank)]
	}
	return strings.Join(out, " "), nil
}
