package analysis

import (
	"fmt"
	"strings"

	"github.com/abadojack/whatlanggo"
)

// Language tags understood by the stop-word policy.
const (
	LangUnknown = "und"
	LangEnglish = "en"
	LangURL     = "url"
)

// LanguageDetector guesses the dominant language of a text.
// Implementations return an ISO 639-1 tag or LangUnknown.
type LanguageDetector interface {
	DetectLanguage(text string) (string, error)
}

// LanguageDetectorFunc adapts a function to LanguageDetector.
type LanguageDetectorFunc func(text string) (string, error)

func (f LanguageDetectorFunc) DetectLanguage(text string) (string, error) {
	return f(text)
}

// FixedLanguage returns a detector that always reports tag.
func FixedLanguage(tag string) LanguageDetector {
	return LanguageDetectorFunc(func(string) (string, error) {
		return tag, nil
	})
}

// DefaultMinConfidence is the detection confidence the default detector
// requires. whatlanggo's own reliability check rejects most short titles.
const DefaultMinConfidence = 0.2

// WhatlangDetector detects languages with whatlanggo's trigram classifier.
type WhatlangDetector struct {
	// MinConfidence is the confidence a detection needs to be accepted.
	// Zero defers to whatlanggo's own reliability check.
	MinConfidence float64
}

var _ LanguageDetector = (*WhatlangDetector)(nil)

// NewWhatlangDetector creates a detector with the given confidence threshold.
func NewWhatlangDetector(minConfidence float64) *WhatlangDetector {
	return &WhatlangDetector{MinConfidence: minConfidence}
}

// DetectLanguage returns the ISO 639-1 tag of text's language, or
// LangUnknown when the text is blank or the guess is not confident enough.
func (d *WhatlangDetector) DetectLanguage(text string) (lang string, err error) {
	if strings.TrimSpace(text) == "" {
		return LangUnknown, nil
	}
	defer func() {
		if r := recover(); r != nil {
			lang, err = LangUnknown, fmt.Errorf("%w: language detection: %v", ErrTokenization, r)
		}
	}()

	info := whatlanggo.Detect(text)
	if d.MinConfidence > 0 {
		if info.Confidence < d.MinConfidence {
			return LangUnknown, nil
		}
	} else if !info.IsReliable() {
		return LangUnknown, nil
	}
	if tag := info.Lang.Iso6391(); tag != "" {
		return tag, nil
	}
	return LangUnknown, nil
}
