package pipeline

// DefaultPageSize is used when no page size is configured.
const DefaultPageSize = 10

// Query is the user-controlled input of the derived view. It is a value:
// every change goes through Reduce and produces a new Query.
type Query struct {
	Filter   string  `json:"filter"`
	Sort     SortKey `json:"sort"`
	Page     int     `json:"page"`
	PageSize int     `json:"pageSize"`
}

// NewQuery returns the first-page query for the given defaults.
func NewQuery(sort SortKey, pageSize int) Query {
	if !sort.Valid() {
		sort = DefaultSort
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return Query{Sort: sort, Page: 1, PageSize: pageSize}
}

// Action is one user interaction that changes a Query.
type Action interface {
	apply(q Query, filteredCount int) Query
}

type SetFilter struct{ Text string }

type SetSort struct{ Key SortKey }

type SetPage struct{ Page int }

type SetPageSize struct{ Size int }

// Reduce applies act to q. filteredCount is the number of items that match
// q's filter; it is needed to decide whether a page size change leaves the
// current page out of range.
//
// Reset rules: a filter or sort change returns to page 1; a page size change
// returns to page 1 when the current page would exceed the new page count.
func Reduce(q Query, act Action, filteredCount int) Query {
	if act == nil {
		return q
	}
	return act.apply(q, filteredCount)
}

func (a SetFilter) apply(q Query, _ int) Query {
	if a.Text == q.Filter {
		return q
	}
	q.Filter = a.Text
	q.Page = 1
	return q
}

func (a SetSort) apply(q Query, _ int) Query {
	if !a.Key.Valid() || a.Key == q.Sort {
		return q
	}
	q.Sort = a.Key
	q.Page = 1
	return q
}

// Pages beyond the last one are kept; Paginate yields an empty slice for
// them until the owner corrects the page.
func (a SetPage) apply(q Query, _ int) Query {
	q.Page = max(a.Page, 1)
	return q
}

func (a SetPageSize) apply(q Query, filteredCount int) Query {
	size := max(a.Size, 1)
	if size == q.PageSize {
		return q
	}
	q.PageSize = size
	if q.Page > TotalPages(filteredCount, size) {
		q.Page = 1
	}
	return q
}
