package analysis

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/blevesearch/segment"
	"github.com/poiesic/textidx/core"
)

// Result is the outcome of analyzing one piece of content.
type Result struct {
	Terms []string // Set form: sorted, unique, non-empty
	Lang  string   // Detected language tag
}

// Tokenizer splits content into lowercase terms using Unicode word boundaries.
// It is safe for concurrent use.
type Tokenizer struct {
	detector LanguageDetector
	logger   *slog.Logger
}

// NewTokenizer creates a tokenizer. A nil detector means whatlanggo with
// DefaultMinConfidence; a nil logger means slog.Default().
func NewTokenizer(detector LanguageDetector, logger *slog.Logger) *Tokenizer {
	if detector == nil {
		detector = NewWhatlangDetector(DefaultMinConfidence)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tokenizer{
		detector: detector,
		logger:   logger,
	}
}

// Tokenize detects content's language and returns its terms in set form.
// Failures are logged and recovered with a whitespace split; Tokenize never fails.
func (t *Tokenizer) Tokenize(content string) Result {
	if strings.TrimSpace(content) == "" {
		return Result{Terms: []string{}, Lang: LangUnknown}
	}

	lang, err := t.detector.DetectLanguage(content)
	if err == nil {
		var terms []string
		terms, err = segmentTerms(content)
		if err == nil {
			if lang == "" {
				lang = LangUnknown
			}
			return Result{Terms: core.NormalizeTerms(terms), Lang: lang}
		}
	}

	if !errors.Is(err, ErrTokenization) {
		err = fmt.Errorf("%w: %w", ErrTokenization, err)
	}
	t.logger.Warn("falling back to whitespace tokenization", "err", err)
	return Result{Terms: core.NormalizeTerms(fieldTerms(content)), Lang: LangUnknown}
}

// segmentTerms extracts word-like segments and splits them into sub-terms.
func segmentTerms(content string) ([]string, error) {
	var terms []string
	seg := segment.NewWordSegmenterDirect([]byte(content))
	for seg.Segment() {
		if seg.Type() == segment.None {
			continue
		}
		terms = append(terms, SplitCompound(strings.ToLower(seg.Text()))...)
	}
	if err := seg.Err(); err != nil {
		return nil, err
	}
	return terms, nil
}

// fieldTerms is the whitespace fallback for segmentTerms.
func fieldTerms(content string) []string {
	var terms []string
	for _, word := range strings.Fields(content) {
		terms = append(terms, SplitCompound(strings.ToLower(word))...)
	}
	return terms
}

// SplitCompound breaks a token on URL and punctuation separators
// (. , : ; - / \ ` ! | ?), dropping empty parts.
func SplitCompound(token string) []string {
	return strings.FieldsFunc(token, isCompoundSeparator)
}

func isCompoundSeparator(r rune) bool {
	switch r {
	case '.', ',', ':', ';', '-', '/', '\\', '`', '!', '|', '?':
		return true
	}
	return false
}
