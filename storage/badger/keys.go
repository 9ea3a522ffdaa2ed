package badger

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/poiesic/textidx/core"
)

// Key prefixes for different data types
const (
	indexRecordPrefix = "idxrec:"
	indexRecordIDSeq  = "idxrecseq"
	indexKeyPrefix    = "idxkey:"
	indexTermPrefix   = "idxterm:"
)

const (
	hashSize = 8
	idSize   = 8

	// maxTermLength is the longest term the term index can hold; the length
	// is stored as a 2-byte prefix.
	maxTermLength = math.MaxUint16
)

// hashComponent maps a variable-length key component onto a fixed-width
// segment so composite prefixes cannot run into each other.
func hashComponent(s string) uint64 {
	return uint64(core.IDFromContent(s))
}

// makeIndexRecordKey generates the primary key for an index record.
// Format: prefix + BE64(id), so records iterate in ID order.
func makeIndexRecordKey(id core.ID) []byte {
	buf := make([]byte, len(indexRecordPrefix)+idSize)
	offset := copy(buf, indexRecordPrefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// parseIndexRecordKey extracts the ID from a primary key.
func parseIndexRecordKey(key []byte) (core.ID, bool) {
	if len(key) != len(indexRecordPrefix)+idSize || !bytes.HasPrefix(key, []byte(indexRecordPrefix)) {
		return 0, false
	}
	return core.ID(binary.BigEndian.Uint64(key[len(indexRecordPrefix):])), true
}

// makeIndexKey generates the unique compound key for an (owner, type, field) tuple.
// Format: prefix + H(owner) + H(type) + H(field)
func makeIndexKey(owner string, entityType core.EntityType, field core.Field) []byte {
	buf := make([]byte, len(indexKeyPrefix)+3*hashSize)
	offset := copy(buf, indexKeyPrefix)
	binary.BigEndian.PutUint64(buf[offset:], hashComponent(owner))
	offset += hashSize
	binary.BigEndian.PutUint64(buf[offset:], hashComponent(string(entityType)))
	offset += hashSize
	binary.BigEndian.PutUint64(buf[offset:], hashComponent(string(field)))
	return buf
}

// makeOwnerKeyPrefix generates a partial compound key matching every record of an owner.
// Format: prefix + H(owner)
func makeOwnerKeyPrefix(owner string) []byte {
	buf := make([]byte, len(indexKeyPrefix)+hashSize)
	offset := copy(buf, indexKeyPrefix)
	binary.BigEndian.PutUint64(buf[offset:], hashComponent(owner))
	return buf
}

// makeOwnerTypeKeyPrefix generates a partial compound key matching an owner's records of one type.
// Format: prefix + H(owner) + H(type)
func makeOwnerTypeKeyPrefix(owner string, entityType core.EntityType) []byte {
	buf := make([]byte, len(indexKeyPrefix)+2*hashSize)
	offset := copy(buf, indexKeyPrefix)
	binary.BigEndian.PutUint64(buf[offset:], hashComponent(owner))
	offset += hashSize
	binary.BigEndian.PutUint64(buf[offset:], hashComponent(string(entityType)))
	return buf
}

// makeTermPrefix generates the partial term index key for a term.
// Format: prefix + BE16(len(term)) + term
func makeTermPrefix(term string) []byte {
	buf := make([]byte, len(indexTermPrefix)+2+len(term), len(indexTermPrefix)+2+len(term)+2*hashSize+idSize)
	offset := copy(buf, indexTermPrefix)
	binary.BigEndian.PutUint16(buf[offset:], uint16(len(term)))
	offset += 2
	copy(buf[offset:], term)
	return buf
}

// makeTermTypePrefix narrows a term prefix to one entity type.
// Format: prefix + BE16(len(term)) + term + H(type)
func makeTermTypePrefix(term string, entityType core.EntityType) []byte {
	return binary.BigEndian.AppendUint64(makeTermPrefix(term), hashComponent(string(entityType)))
}

// makeTermTypeFieldPrefix narrows a term prefix to one entity type and field.
// Format: prefix + BE16(len(term)) + term + H(type) + H(field)
func makeTermTypeFieldPrefix(term string, entityType core.EntityType, field core.Field) []byte {
	return binary.BigEndian.AppendUint64(makeTermTypePrefix(term, entityType), hashComponent(string(field)))
}

// makeTermKey generates the term index entry for one term of one record.
// Format: prefix + BE16(len(term)) + term + H(type) + H(field) + BE64(id)
func makeTermKey(term string, entityType core.EntityType, field core.Field, id core.ID) []byte {
	return binary.BigEndian.AppendUint64(makeTermTypeFieldPrefix(term, entityType, field), uint64(id))
}

// termKey is a decoded term index entry.
type termKey struct {
	term      string
	typeHash  uint64
	fieldHash uint64
	id        core.ID
}

// parseTermKey decodes a term index key. It reports false for keys that do
// not have the term index layout.
func parseTermKey(key []byte) (termKey, bool) {
	if !bytes.HasPrefix(key, []byte(indexTermPrefix)) {
		return termKey{}, false
	}
	rest := key[len(indexTermPrefix):]
	if len(rest) < 2 {
		return termKey{}, false
	}
	termLen := int(binary.BigEndian.Uint16(rest))
	rest = rest[2:]
	if len(rest) != termLen+2*hashSize+idSize {
		return termKey{}, false
	}
	tk := termKey{term: string(rest[:termLen])}
	rest = rest[termLen:]
	tk.typeHash = binary.BigEndian.Uint64(rest)
	tk.fieldHash = binary.BigEndian.Uint64(rest[hashSize:])
	tk.id = core.ID(binary.BigEndian.Uint64(rest[2*hashSize:]))
	return tk, true
}

// matches reports whether the entry was written for the given record.
func (k termKey) matches(record *core.IndexRecord) bool {
	return k.id == record.Id &&
		k.typeHash == hashComponent(string(record.Type)) &&
		k.fieldHash == hashComponent(string(record.Field)) &&
		record.HasTerm(k.term)
}
