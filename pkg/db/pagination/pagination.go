package pagination

import (
	"encoding/base64"
	"encoding/json"

	"loyaltyhub/pkg/db/option"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	DefaultLimit = 20
	MaxLimit     = 250
)

type Pagination struct {
	Cursor string `form:"cursor"`
	Limit  int    `form:"limit,default=20"`
}

// Normalize clamps Limit into [1, MaxLimit].
func (p Pagination) Normalize() Pagination {
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

type Cursor struct {
	ID int64 `json:"id,omitempty"`
}

type PageInfo struct {
	NextCursor string `json:"next_cursor"`
	HasMore    bool   `json:"has_more"`
}

func EncodeCursor(data Cursor) (string, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}

func DecodeCursor(data string) (*Cursor, error) {
	b, err := base64.RawURLEncoding.DecodeString(data)
	if err != nil {
		return nil, err
	}

	var cursor Cursor
	if err := json.Unmarshal(b, &cursor); err != nil {
		return nil, err
	}

	return &cursor, nil
}

// Options returns the query options for a newest-first keyset page. One extra
// row is fetched so Paginate can tell whether another page exists.
func (p Pagination) Options() ([]option.QueryOption, error) {
	p = p.Normalize()
	opts := []option.QueryOption{
		option.WithSortBy(option.QuerySortBy{SortBy: "id", OrderBy: "desc"}),
		option.WithLimit(p.Limit + 1),
	}

	if p.Cursor != "" {
		cursor, err := DecodeCursor(p.Cursor)
		if err != nil {
			return nil, err
		}
		opts = append(opts, func(tx *gorm.DB) *gorm.DB {
			return tx.Where(clause.Lt{Column: clause.Column{Table: clause.CurrentTable, Name: "id"}, Value: cursor.ID})
		})
	}

	return opts, nil
}

// Paginate trims the extra row fetched by Options and builds the page info.
func Paginate[T any](data []*T, limit int, extractID func(*T) int64) ([]*T, *PageInfo) {
	if len(data) == 0 {
		return data, &PageInfo{HasMore: false}
	}

	pageInfo := &PageInfo{}
	if len(data) > limit {
		pageInfo.HasMore = true
		data = data[:limit]
	}

	if pageInfo.HasMore {
		pageInfo.NextCursor, _ = EncodeCursor(Cursor{ID: extractID(data[len(data)-1])})
	}

	return data, pageInfo
}
