package query

import (
	"encoding/base64"
	"fmt"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
)

// cursorVersion prefixes encoded cursor tokens.
const cursorVersion = 1

// Cursor marks a position in the paged results of one query. Cursors form
// a chain: Begin starts it and every search returns the next link.
type Cursor struct {
	PageStart   int  // Results already returned by earlier pages
	PageLimit   int  // Maximum results per page
	HasMorePage bool // False once the final page has been returned
}

// Begin returns the first cursor of a chain.
func Begin(pageLimit int) Cursor {
	return Cursor{PageStart: 0, PageLimit: pageLimit, HasMorePage: true}
}

// Validate checks the cursor's bounds.
func (c Cursor) Validate() error {
	if c.PageLimit <= 0 {
		return fmt.Errorf("%w: page limit must be positive, got %d", ErrInvalidCursor, c.PageLimit)
	}
	if c.PageStart < 0 {
		return fmt.Errorf("%w: page start must not be negative, got %d", ErrInvalidCursor, c.PageStart)
	}
	return nil
}

// Encode returns an opaque, URL-safe token for c.
func (c Cursor) Encode() string {
	size := varint.PositiveInt.Size(cursorVersion) +
		varint.PositiveInt.Size(c.PageStart) +
		varint.PositiveInt.Size(c.PageLimit) +
		ord.Bool.Size(c.HasMorePage)
	buf := make([]byte, size)
	n := varint.PositiveInt.Marshal(cursorVersion, buf)
	n += varint.PositiveInt.Marshal(c.PageStart, buf[n:])
	n += varint.PositiveInt.Marshal(c.PageLimit, buf[n:])
	ord.Bool.Marshal(c.HasMorePage, buf[n:])
	return base64.RawURLEncoding.EncodeToString(buf)
}

// DecodeCursor parses a token produced by Cursor.Encode.
func DecodeCursor(token string) (Cursor, error) {
	buf, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %w", ErrInvalidCursor, err)
	}

	version, n, err := varint.PositiveInt.Unmarshal(buf)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %w", ErrInvalidCursor, err)
	}
	if version != cursorVersion {
		return Cursor{}, fmt.Errorf("%w: unsupported version %d", ErrInvalidCursor, version)
	}

	var c Cursor
	var n1 int
	if c.PageStart, n1, err = varint.PositiveInt.Unmarshal(buf[n:]); err != nil {
		return Cursor{}, fmt.Errorf("%w: %w", ErrInvalidCursor, err)
	}
	n += n1
	if c.PageLimit, n1, err = varint.PositiveInt.Unmarshal(buf[n:]); err != nil {
		return Cursor{}, fmt.Errorf("%w: %w", ErrInvalidCursor, err)
	}
	n += n1
	if c.HasMorePage, n1, err = ord.Bool.Unmarshal(buf[n:]); err != nil {
		return Cursor{}, fmt.Errorf("%w: %w", ErrInvalidCursor, err)
	}
	n += n1
	if n != len(buf) {
		return Cursor{}, fmt.Errorf("%w: %d trailing bytes", ErrInvalidCursor, len(buf)-n)
	}

	if err := c.Validate(); err != nil {
		return Cursor{}, err
	}
	return c, nil
}
