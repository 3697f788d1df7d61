// Package pagination holds the two listing shapes used by the API: keyset
// cursors for the append-only audit trail and page/limit for rule listings.
package pagination

import (
	"encoding/base64"
	"encoding/json"
)

const (
	DefaultLimit = 20
	MaxLimit     = 250
)

// Pagination is the keyset request form.
type Pagination struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size"`
}

// Cursor is the opaque position behind a page token.
type Cursor struct {
	ID        string `json:"id,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

type PageInfo struct {
	NextPageToken     string `json:"next_page_token"`
	PreviousPageToken string `json:"previous_page_token"`
	HasMore           bool   `json:"has_more"`
}

// EncodeCursor produces a URL-safe token.
func EncodeCursor(c Cursor) (string, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func DecodeCursor(token string) (*Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, err
	}
	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// TrimPage takes rows fetched with limit+1 and returns at most limit of them.
// The next token points at the last returned row and is set only when more
// rows exist.
func TrimPage[T any](rows []T, limit int, token func(T) string) ([]T, PageInfo) {
	if limit <= 0 || len(rows) <= limit {
		return rows, PageInfo{}
	}
	rows = rows[:limit]
	return rows, PageInfo{HasMore: true, NextPageToken: token(rows[limit-1])}
}

// Page is the offset request form.
type Page struct {
	Page  int `form:"page"`
	Limit int `form:"limit"`
}

// Normalize clamps page to >= 1 and limit to [1, MaxLimit].
func (p Page) Normalize() Page {
	p.Page = max(p.Page, 1)
	switch {
	case p.Limit < 1:
		p.Limit = DefaultLimit
	case p.Limit > MaxLimit:
		p.Limit = MaxLimit
	}
	return p
}

func (p Page) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.Limit
}

type PageMeta struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"total_pages"`
}

// BuildPageMeta computes total_pages as ceil(total/limit).
func BuildPageMeta(total int64, page Page) PageMeta {
	n := page.Normalize()
	meta := PageMeta{Total: total, Page: n.Page, Limit: n.Limit}
	if total > 0 {
		meta.TotalPages = int((total + int64(n.Limit) - 1) / int64(n.Limit))
	}
	return meta
}
