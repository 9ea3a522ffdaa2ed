package analysis

import (
	"fmt"

	bleveanalysis "github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
)

// urlStopWords are fragments that appear in most URLs and carry no meaning.
var urlStopWords = []string{
	"http", "https", "www", "com", "org", "net",
	"html", "htm", "php", "asp", "aspx", "jsp",
	"index", "ftp", "file", "amp", "utm",
}

// StopWords holds per-language stop-word dictionaries.
// It is safe for concurrent reads once built.
type StopWords struct {
	dicts map[string]bleveanalysis.TokenMap
}

// NewStopWords creates an empty set of dictionaries.
func NewStopWords() *StopWords {
	return &StopWords{dicts: make(map[string]bleveanalysis.TokenMap)}
}

// DefaultStopWords returns the English dictionary shipped with bleve and the
// synthetic url dictionary.
func DefaultStopWords() (*StopWords, error) {
	sw := NewStopWords()
	english := bleveanalysis.NewTokenMap()
	if err := english.LoadBytes(en.EnglishStopWords); err != nil {
		return nil, fmt.Errorf("loading english stop words: %w", err)
	}
	sw.dicts[LangEnglish] = english
	sw.Add(LangURL, urlStopWords...)
	return sw, nil
}

// Add appends words to the dictionary for lang, creating it if needed.
func (s *StopWords) Add(lang string, words ...string) {
	dict, ok := s.dicts[lang]
	if !ok {
		dict = bleveanalysis.NewTokenMap()
		s.dicts[lang] = dict
	}
	for _, word := range words {
		dict.AddToken(word)
	}
}

// Has reports whether a dictionary exists for lang.
func (s *StopWords) Has(lang string) bool {
	_, ok := s.dicts[lang]
	return ok
}

// Contains reports whether word is a stop word in lang.
func (s *StopWords) Contains(lang, word string) bool {
	return s.dicts[lang][word]
}

// Remove returns terms without the stop words of lang. Unknown languages
// return terms unchanged. The input slice is not modified.
func (s *StopWords) Remove(terms []string, lang string) []string {
	dict, ok := s.dicts[lang]
	if !ok {
		return terms
	}
	out := make([]string, 0, len(terms))
	for _, term := range terms {
		if !dict[term] {
			out = append(out, term)
		}
	}
	return out
}
