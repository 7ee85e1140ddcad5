// Package inventory holds the pure list logic behind the inventory views:
// dashboard buckets and the generic search/filter/sort/paginate pipeline.
// Nothing here touches the database or the cache.
package inventory

import (
	"fmt"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DefaultPageSize is used when a query asks for a page size of zero or less.
const DefaultPageSize = 10

// MaxPageSize caps per_page on HTTP queries.
const MaxPageSize = 500

// Field reads one sortable/filterable attribute of T. Exactly one getter
// is set; it decides how the field compares.
type Field[T any] struct {
	Str  func(T) string
	Num  func(T) float64
	Time func(T) *time.Time
}

// text is the string form used for exact-match filtering.
func (f Field[T]) text(item T) string {
	switch {
	case f.Str != nil:
		return f.Str(item)
	case f.Num != nil:
		return strconv.FormatFloat(f.Num(item), 'f', -1, 64)
	case f.Time != nil:
		if t := f.Time(item); t != nil {
			return t.UTC().Format("2006-01-02")
		}
	}
	return ""
}

// compare orders a and b: strings case-insensitively, numbers numerically,
// times by Unix milliseconds with nil as epoch 0.
func (f Field[T]) compare(a, b T) int {
	switch {
	case f.Str != nil:
		return strings.Compare(strings.ToLower(f.Str(a)), strings.ToLower(f.Str(b)))
	case f.Num != nil:
		x, y := f.Num(a), f.Num(b)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
	case f.Time != nil:
		x, y := millis(f.Time(a)), millis(f.Time(b))
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
	}
	return 0
}

func millis(t *time.Time) int64 {
	if t == nil {
		return 0
	}
	return t.UnixMilli()
}

// Schema describes how a list of T can be queried.
type Schema[T any] struct {
	Fields map[string]Field[T]
	// Search names the string fields a free-text search looks at.
	Search []string
	// Filter is the field filtered on when a query names none.
	Filter string
}

// Query is one list request.
type Query struct {
	Search      string
	FilterField string
	FilterValue string
	SortField   string
	Descending  bool
	Page        int
	PageSize    int
}

// Pagination describes the page returned.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// Page is one page of results.
type Page[T any] struct {
	Items      []T        `json:"items"`
	Pagination Pagination `json:"pagination"`
}

// ParseQuery reads search, filter, filter_field, sort, order, page and
// per_page from URL query values.
func ParseQuery(v url.Values) (Query, error) {
	q := Query{
		Search:      strings.TrimSpace(v.Get("search")),
		FilterField: strings.TrimSpace(v.Get("filter_field")),
		FilterValue: strings.TrimSpace(v.Get("filter")),
		SortField:   strings.TrimSpace(v.Get("sort")),
		Page:        1,
		PageSize:    DefaultPageSize,
	}
	switch strings.ToLower(v.Get("order")) {
	case "", "asc":
	case "desc":
		q.Descending = true
	default:
		return q, fmt.Errorf("order must be asc or desc")
	}
	if s := v.Get("page"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return q, fmt.Errorf("page must be a positive integer")
		}
		q.Page = n
	}
	if s := v.Get("per_page"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > MaxPageSize {
			return q, fmt.Errorf("per_page must be between 1 and %d", MaxPageSize)
		}
		q.PageSize = n
	}
	return q, nil
}

// Check reports sort or filter fields the schema does not know.
func (s Schema[T]) Check(q Query) error {
	if q.SortField != "" {
		if _, ok := s.Fields[q.SortField]; !ok {
			return fmt.Errorf("unknown sort field %q", q.SortField)
		}
	}
	if q.FilterField != "" {
		if _, ok := s.Fields[q.FilterField]; !ok {
			return fmt.Errorf("unknown filter field %q", q.FilterField)
		}
	}
	return nil
}

// Apply searches, filters, sorts and paginates items. The input slice is
// not modified. Unknown field names are ignored.
func Apply[T any](items []T, schema Schema[T], q Query) Page[T] {
	matched := make([]T, 0, len(items))
	needle := strings.ToLower(q.Search)

	filterField, hasFilter := schema.Fields[firstNonEmpty(q.FilterField, schema.Filter)]
	if q.FilterValue == "" || strings.EqualFold(q.FilterValue, "all") {
		hasFilter = false
	}

	for _, item := range items {
		if needle != "" && !schema.matches(item, needle) {
			continue
		}
		if hasFilter && filterField.text(item) != q.FilterValue {
			continue
		}
		matched = append(matched, item)
	}

	if f, ok := schema.Fields[q.SortField]; ok {
		sort.SliceStable(matched, func(i, j int) bool {
			c := f.compare(matched[i], matched[j])
			if q.Descending {
				return c > 0
			}
			return c < 0
		})
	}

	return paginate(matched, q.Page, q.PageSize)
}

func (s Schema[T]) matches(item T, needle string) bool {
	for _, name := range s.Search {
		f, ok := s.Fields[name]
		if !ok {
			continue
		}
		if strings.Contains(strings.ToLower(f.text(item)), needle) {
			return true
		}
	}
	return false
}

func paginate[T any](items []T, page, size int) Page[T] {
	if size <= 0 {
		size = DefaultPageSize
	}
	if page < 1 {
		page = 1
	}
	total := len(items)
	out := Page[T]{
		Items: make([]T, 0),
		Pagination: Pagination{
			Page:       page,
			PerPage:    size,
			Total:      total,
			TotalPages: int(math.Ceil(float64(total) / float64(size))),
		},
	}
	start := (page - 1) * size
	if start >= total {
		return out
	}
	end := start + size
	if end > total {
		end = total
	}
	out.Items = append(out.Items, items[start:end]...)
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
