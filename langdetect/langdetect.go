// Package langdetect tags finalized utterances with the language they are in.
package langdetect

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pemistahl/lingua-go"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// minRunes is the shortest text worth classifying. Single words are
// ambiguous across closely related languages.
const minRunes = 8

// Detector identifies the language of a text among a fixed candidate set.
type Detector struct {
	d lingua.LanguageDetector
}

// New builds a Detector for the given ISO 639-1 codes. At least two known
// languages are required.
func New(codes []string) (*Detector, error) {
	langs := make([]lingua.Language, 0, len(codes))
	for _, c := range codes {
		l, ok := fromCode(c)
		if !ok {
			return nil, fmt.Errorf("unsupported language %q", c)
		}
		langs = append(langs, l)
	}
	if len(langs) < 2 {
		return nil, fmt.Errorf("need at least 2 languages, got %d", len(langs))
	}

	d := lingua.NewLanguageDetectorBuilder().
		FromLanguages(langs...).
		WithMinimumRelativeDistance(0.1).
		Build()
	return &Detector{d: d}, nil
}

// Detect returns the lowercase ISO 639-1 code of text, or "" when the text
// is too short or no candidate is a confident match.
func (d *Detector) Detect(text string) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < minRunes {
		return ""
	}
	l, ok := d.d.DetectLanguageOf(text)
	if !ok {
		return ""
	}
	return code(l)
}

// Name returns the English display name for an ISO 639-1 code, or the code
// itself when it is not a valid tag.
func Name(c string) string {
	tag, err := language.Parse(c)
	if err != nil {
		return c
	}
	if n := display.English.Languages().Name(tag); n != "" {
		return n
	}
	return c
}

func code(l lingua.Language) string {
	return strings.ToLower(l.IsoCode639_1().String())
}

func fromCode(c string) (lingua.Language, bool) {
	c = strings.ToLower(strings.TrimSpace(c))
	// Accept region-qualified tags such as en-US.
	if tag, err := language.Parse(c); err == nil {
		base, _ := tag.Base()
		c = base.String()
	}
	for _, l := range lingua.AllLanguages() {
		if code(l) == c {
			return l, true
		}
	}
	return 0, false
}
