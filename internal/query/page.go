package query

// Page is one window of a result set with navigation metadata. The gateway
// fills Items with count+1 rows and TotalCount, then GenPageData trims the
// lookahead row.
type Page[T any] struct {
	Items      []T   `json:"items"`
	Count      int   `json:"count"`
	TotalCount int64 `json:"total_count"`

	IsPrevPage    bool `json:"is_prev_page"`
	PrevPageStart *int `json:"prev_page_start"`
	PrevPageCount *int `json:"prev_page_count"`

	IsNextPage    bool   `json:"is_next_page"`
	NextPageStart *int   `json:"next_page_start"`
	NextPageCount *int64 `json:"next_page_count"`
}

// NewPage returns a page over fetched rows, before navigation is computed.
func NewPage[T any](items []T, total int64) *Page[T] {
	if items == nil {
		items = []T{}
	}
	return &Page[T]{Items: items, TotalCount: total}
}

// GenPageData computes navigation for the window [start, start+count) and
// drops the lookahead row if one was fetched.
func (p *Page[T]) GenPageData(start, count int) {
	p.IsPrevPage = start > 0
	if p.IsPrevPage {
		prevStart, prevCount := start-count, count
		if start < count {
			prevStart, prevCount = 0, start
		}
		p.PrevPageStart, p.PrevPageCount = &prevStart, &prevCount
	}

	p.IsNextPage = len(p.Items) > count
	if p.IsNextPage {
		nextStart := start + count
		nextCount := min(int64(count), p.TotalCount-int64(nextStart))
		p.NextPageStart, p.NextPageCount = &nextStart, &nextCount
		p.Items = p.Items[:len(p.Items)-1]
	}
	p.Count = len(p.Items)
}

// ToMap renders the page with each item converted by fn, using the short
// is_prev / is_next keys.
func (p *Page[T]) ToMap(fn func(T) (any, error)) (map[string]any, error) {
	items := make([]any, 0, len(p.Items))
	for _, item := range p.Items {
		v, err := fn(item)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	out := map[string]any{
		"items":       items,
		"count":       p.Count,
		"total_count": p.TotalCount,
		"is_prev":     p.IsPrevPage,
		"is_next":     p.IsNextPage,
	}
	if p.IsPrevPage {
		out["prev_page_start"] = *p.PrevPageStart
		out["prev_page_count"] = *p.PrevPageCount
	}
	if p.IsNextPage {
		out["next_page_start"] = *p.NextPageStart
		out["next_page_count"] = *p.NextPageCount
	}
	return out, nil
}
