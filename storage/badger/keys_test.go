package badger

import (
	"bytes"
	"testing"

	"github.com/poiesic/textidx/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexRecordKey_RoundTrip(t *testing.T) {
	key := makeIndexRecordKey(core.ID(1234))
	id, ok := parseIndexRecordKey(key)
	require.True(t, ok)
	assert.Equal(t, core.ID(1234), id)

	_, ok = parseIndexRecordKey([]byte(indexRecordIDSeq))
	assert.False(t, ok)
}

func TestIndexRecordKey_Ordering(t *testing.T) {
	// BigEndian encoding keeps numeric and byte order aligned.
	assert.Negative(t, bytes.Compare(makeIndexRecordKey(255), makeIndexRecordKey(256)))
	assert.Negative(t, bytes.Compare(makeIndexRecordKey(1), makeIndexRecordKey(1<<40)))
}

func TestIndexKeyPrefixes(t *testing.T) {
	key := makeIndexKey("tab-1", core.EntityTab, core.FieldTitle)

	assert.True(t, bytes.HasPrefix(key, makeOwnerKeyPrefix("tab-1")))
	assert.True(t, bytes.HasPrefix(key, makeOwnerTypeKeyPrefix("tab-1", core.EntityTab)))
	assert.False(t, bytes.HasPrefix(key, makeOwnerTypeKeyPrefix("tab-1", core.EntityNote)))
	// Owners that are string prefixes of each other do not share key prefixes.
	assert.False(t, bytes.HasPrefix(makeIndexKey("tab-10", core.EntityTab, core.FieldTitle), makeOwnerKeyPrefix("tab-1")))
}

func TestTermKey_RoundTrip(t *testing.T) {
	key := makeTermKey("hello", core.EntityNote, core.FieldContent, core.ID(77))

	assert.True(t, bytes.HasPrefix(key, makeTermPrefix("hello")))
	assert.True(t, bytes.HasPrefix(key, makeTermTypePrefix("hello", core.EntityNote)))
	assert.True(t, bytes.HasPrefix(key, makeTermTypeFieldPrefix("hello", core.EntityNote, core.FieldContent)))
	assert.False(t, bytes.HasPrefix(key, makeTermPrefix("hell")))

	tk, ok := parseTermKey(key)
	require.True(t, ok)
	assert.Equal(t, "hello", tk.term)
	assert.Equal(t, core.ID(77), tk.id)
	assert.Equal(t, hashComponent(string(core.EntityNote)), tk.typeHash)
	assert.Equal(t, hashComponent(string(core.FieldContent)), tk.fieldHash)

	record := &core.IndexRecord{Id: 77, Type: core.EntityNote, Field: core.FieldContent, Terms: []string{"hello"}}
	assert.True(t, tk.matches(record))
	record.Terms = []string{"world"}
	assert.False(t, tk.matches(record))
}

func TestParseTermKey_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  []byte
	}{
		{"other prefix", makeIndexRecordKey(1)},
		{"no length", []byte(indexTermPrefix)},
		{"truncated", makeTermPrefix("hello")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := parseTermKey(tt.key)
			assert.False(t, ok)
		})
	}
}
