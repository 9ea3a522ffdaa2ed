package analysis

import (
	"log/slog"

	"github.com/poiesic/textidx/core"
)

// Analyzer applies tokenization and the field stop-word policy.
type Analyzer struct {
	tokenizer *Tokenizer
	stopWords *StopWords
	detector  LanguageDetector
	logger    *slog.Logger
}

// Option configures an Analyzer.
type Option func(*Analyzer) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(a *Analyzer) error {
		if logger == nil {
			logger = slog.Default()
		}
		a.logger = logger
		return nil
	}
}

// WithLanguageDetector sets the language detector.
// Default is whatlanggo with its own reliability check.
func WithLanguageDetector(detector LanguageDetector) Option {
	return func(a *Analyzer) error {
		if detector == nil {
			return ErrDetectorRequired
		}
		a.detector = detector
		return nil
	}
}

// WithStopWords sets the stop-word dictionaries.
// Default is DefaultStopWords().
func WithStopWords(stopWords *StopWords) Option {
	return func(a *Analyzer) error {
		if stopWords == nil {
			return ErrStopWordsRequired
		}
		a.stopWords = stopWords
		return nil
	}
}

// NewAnalyzer creates a new analyzer.
func NewAnalyzer(opts ...Option) (*Analyzer, error) {
	a := &Analyzer{
		logger: slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}

	if a.stopWords == nil {
		stopWords, err := DefaultStopWords()
		if err != nil {
			return nil, err
		}
		a.stopWords = stopWords
	}
	if a.detector == nil {
		a.detector = NewWhatlangDetector(DefaultMinConfidence)
	}
	a.logger = a.logger.With("component", "analyzer")
	a.tokenizer = NewTokenizer(a.detector, a.logger)

	return a, nil
}

// Tokenizer returns the analyzer's tokenizer.
func (a *Analyzer) Tokenizer() *Tokenizer {
	return a.tokenizer
}

// Analyze tokenizes content and removes the stop words that apply to field:
// English stop words for English titles, URL noise for url fields.
func (a *Analyzer) Analyze(content string, field core.Field) Result {
	result := a.tokenizer.Tokenize(content)
	switch {
	case field == core.FieldTitle && result.Lang == LangEnglish:
		result.Terms = a.stopWords.Remove(result.Terms, LangEnglish)
	case field == core.FieldURL:
		result.Terms = a.stopWords.Remove(result.Terms, LangURL)
	}
	a.logger.Debug("analyzed content", "field", field, "lang", result.Lang, "terms", len(result.Terms))
	return result
}
