package storage

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

// Cursor is an opaque keyset-pagination position. List queries paginate
// by (sort_col, id) cursors, never OFFSET.
type Cursor struct {
	SortKey string
	ID      int64
}

// Encode renders the cursor as an opaque token.
func (c Cursor) Encode() string {
	raw := c.SortKey + "\x00" + strconv.FormatInt(c.ID, 10)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a token produced by Encode. An empty token yields
// the zero cursor (start of the list).
func DecodeCursor(token string) (Cursor, error) {
	if token == "" {
		return Cursor{}, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("malformed cursor: %w", err)
	}
	key, idStr, ok := strings.Cut(string(raw), "\x00")
	if !ok {
		return Cursor{}, fmt.Errorf("malformed cursor payload")
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return Cursor{}, fmt.Errorf("malformed cursor id: %w", err)
	}
	return Cursor{SortKey: key, ID: id}, nil
}

// Page is a bounded slice of results plus the cursor for the next page.
type Page[T any] struct {
	Items      []T
	NextCursor string
	HasMore    bool
}

// clampLimit bounds page sizes; zero means the default.
func clampLimit(limit int) int {
	const (
		defaultLimit = 100
		maxLimit     = 1000
	)
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}
