package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBegin(t *testing.T) {
	c := Begin(20)
	assert.Equal(t, Cursor{PageStart: 0, PageLimit: 20, HasMorePage: true}, c)
	assert.NoError(t, c.Validate())
}

func TestCursor_Validate(t *testing.T) {
	assert.ErrorIs(t, Cursor{PageLimit: 0}.Validate(), ErrInvalidCursor)
	assert.ErrorIs(t, Cursor{PageLimit: -1}.Validate(), ErrInvalidCursor)
	assert.ErrorIs(t, Cursor{PageStart: -1, PageLimit: 10}.Validate(), ErrInvalidCursor)
	assert.NoError(t, Cursor{PageStart: 40, PageLimit: 10}.Validate())
}

func TestCursor_EncodeDecode(t *testing.T) {
	tests := []Cursor{
		Begin(10),
		{PageStart: 30, PageLimit: 10, HasMorePage: true},
		{PageStart: 123456, PageLimit: 500, HasMorePage: false},
	}
	for _, c := range tests {
		token := c.Encode()
		assert.NotContains(t, token, "=")
		assert.NotContains(t, token, "+")
		assert.NotContains(t, token, "/")

		decoded, err := DecodeCursor(token)
		require.NoError(t, err)
		assert.Equal(t, c, decoded)
	}
}

func TestDecodeCursor_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{"not base64", "!!!"},
		{"empty", ""},
		{"truncated", Begin(10).Encode()[:2]},
		{"trailing bytes", Begin(10).Encode() + "AA"},
		{"zero limit", Cursor{PageLimit: 0}.Encode()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeCursor(tt.token)
			assert.ErrorIs(t, err, ErrInvalidCursor)
		})
	}
}
