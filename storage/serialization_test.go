package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/poiesic/textidx/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalID(t *testing.T) {
	tests := []struct {
		name string
		id   core.ID
	}{
		{"zero ID", core.ID(0)},
		{"small ID", core.ID(42)},
		{"large ID", core.ID(18446744073709551615)}, // max uint64
		{"content-based ID", core.IDFromContent("test content")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := MarshalID(tt.id)
			require.NotEmpty(t, data)

			decoded, err := UnmarshalID(data)
			require.NoError(t, err)
			assert.Equal(t, tt.id, decoded)
		})
	}
}

func TestUnmarshalID_Invalid(t *testing.T) {
	_, err := UnmarshalID([]byte{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSerializationFailed))
}

func TestMarshalUnmarshalIndexRecord(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)

	tests := []struct {
		name   string
		record *core.IndexRecord
	}{
		{
			name: "minimal record",
			record: &core.IndexRecord{
				Id:    core.ID(1),
				Owner: "n1",
				Type:  core.EntityNote,
				Field: core.FieldContent,
			},
		},
		{
			name: "record with terms",
			record: &core.IndexRecord{
				Id:            core.ID(2),
				Owner:         "t1",
				UltimateOwner: "s1",
				Type:          core.EntityTab,
				Field:         core.FieldTitle,
				Terms:         []string{"fox", "hello", "world"},
				InsertedAt:    now,
				UpdatedAt:     now,
			},
		},
		{
			name: "unicode terms",
			record: &core.IndexRecord{
				Id:    core.ID(3),
				Owner: "b1",
				Type:  core.EntityBookmark,
				Field: core.FieldName,
				Terms: []string{"café", "東京"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := MarshalIndexRecord(tt.record)
			decoded, err := UnmarshalIndexRecord(data)
			require.NoError(t, err)
			assert.Equal(t, tt.record, decoded)
		})
	}
}

func TestUnmarshalIndexRecord_Garbled(t *testing.T) {
	_, err := UnmarshalIndexRecord([]byte{0x01, 0xff})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSerializationFailed))
}
