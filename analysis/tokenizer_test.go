package analysis

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	tok := NewTokenizer(FixedLanguage(LangEnglish), nil)

	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{name: "simple words", content: "Hello World", want: []string{"hello", "world"}},
		{name: "duplicates collapse", content: "hello HELLO Hello", want: []string{"hello"}},
		{name: "url", content: "https://example.com/path", want: []string{"com", "example", "https", "path"}},
		{name: "punctuation dropped", content: "fox, dog; cat!", want: []string{"cat", "dog", "fox"}},
		{name: "compound tokens split", content: "docs.example.org", want: []string{"docs", "example", "org"}},
		{name: "numbers kept", content: "Route 66", want: []string{"66", "route"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tok.Tokenize(tt.content)
			assert.Equal(t, tt.want, result.Terms)
			assert.Equal(t, LangEnglish, result.Lang)
		})
	}
}

func TestTokenize_Empty(t *testing.T) {
	tok := NewTokenizer(FixedLanguage(LangEnglish), nil)

	for _, content := range []string{"", "   ", "\n\t"} {
		result := tok.Tokenize(content)
		assert.Empty(t, result.Terms)
		assert.Equal(t, LangUnknown, result.Lang)
	}
}

func TestTokenize_PunctuationOnly(t *testing.T) {
	tok := NewTokenizer(FixedLanguage(LangEnglish), nil)

	result := tok.Tokenize("... !!! ---")
	assert.Empty(t, result.Terms)
}

func TestTokenize_DetectionFailureFallsBack(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	failing := LanguageDetectorFunc(func(string) (string, error) {
		return "", errors.New("classifier exploded")
	})
	tok := NewTokenizer(failing, logger)

	result := tok.Tokenize("Hello, World! docs/guide")
	assert.Equal(t, LangUnknown, result.Lang)
	assert.Equal(t, []string{"docs", "guide", "hello", "world"}, result.Terms)
	assert.Contains(t, buf.String(), "falling back to whitespace tokenization")
	assert.Contains(t, buf.String(), ErrTokenization.Error())
}

func TestTokenize_EmptyTagBecomesUnknown(t *testing.T) {
	tok := NewTokenizer(FixedLanguage(""), nil)
	assert.Equal(t, LangUnknown, tok.Tokenize("hello").Lang)
}

func TestSplitCompound(t *testing.T) {
	tests := []struct {
		token string
		want  []string
	}{
		{"a.b,c:d;e-f/g\\h`i!j|k?l", []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l"}},
		{"plain", []string{"plain"}},
		{"..//", []string{}},
		{"don't", []string{"don't"}},
	}
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			got := SplitCompound(tt.token)
			if len(tt.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWhatlangDetector(t *testing.T) {
	d := NewWhatlangDetector(0)

	lang, err := d.DetectLanguage("")
	require.NoError(t, err)
	assert.Equal(t, LangUnknown, lang)

	lang, err = d.DetectLanguage("The quick brown fox jumps over the lazy dog while the farmer watches " +
		"from the window of his house and wonders whether it will rain again tomorrow morning.")
	require.NoError(t, err)
	assert.Equal(t, LangEnglish, lang)
}

func TestWhatlangDetector_MinConfidence(t *testing.T) {
	// No detection can reach a confidence above 1.
	d := NewWhatlangDetector(1.01)

	lang, err := d.DetectLanguage("The quick brown fox jumps over the lazy dog.")
	require.NoError(t, err)
	assert.Equal(t, LangUnknown, lang)
}
