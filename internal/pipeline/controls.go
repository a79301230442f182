package pipeline

const visiblePages = 5

// PageControls describes the pager under the listing. It exists only when
// there is more than one page.
type PageControls struct {
	Current int `json:"current"`
	Total   int `json:"total"`
	// Start and End are the 1-based item range of the current page.
	Start   int        `json:"start"`
	End     int        `json:"end"`
	Items   int        `json:"items"`
	Numbers []PageLink `json:"numbers"`
	HasPrev bool       `json:"hasPrev"`
	HasNext bool       `json:"hasNext"`
}

// PageLink is one button of the pager. Ellipsis links carry Page 0.
type PageLink struct {
	Page     int  `json:"page"`
	Ellipsis bool `json:"ellipsis,omitempty"`
	Active   bool `json:"active,omitempty"`
}

func NewPageControls(current, totalPages, totalItems, pageSize int) *PageControls {
	if totalPages <= 1 {
		return nil
	}
	pageSize = max(pageSize, 1)
	c := &PageControls{
		Current: current,
		Total:   totalPages,
		Items:   totalItems,
		Numbers: PageNumbers(current, totalPages),
		HasPrev: current > 1,
		HasNext: current < totalPages,
	}
	// An out-of-range page shows no item range.
	if current >= 1 && current <= totalPages {
		c.Start = (current-1)*pageSize + 1
		c.End = c.Start - 1 + min(pageSize, totalItems-c.Start+1)
	}
	return c
}

// PageNumbers returns a window of up to five pages around current, plus the
// first and last page separated by ellipses when they fall outside it.
func PageNumbers(current, totalPages int) []PageLink {
	var out []PageLink
	link := func(p int) PageLink { return PageLink{Page: p, Active: p == current} }

	if totalPages <= visiblePages {
		for p := 1; p <= totalPages; p++ {
			out = append(out, link(p))
		}
		return out
	}

	center := min(max(current, 1), totalPages)
	start := max(1, center-2)
	end := min(totalPages, center+2)

	if start > 1 {
		out = append(out, link(1))
		if start > 2 {
			out = append(out, PageLink{Ellipsis: true})
		}
	}
	for p := start; p <= end; p++ {
		out = append(out, link(p))
	}
	if end < totalPages {
		if end < totalPages-1 {
			out = append(out, PageLink{Ellipsis: true})
		}
		out = append(out, link(totalPages))
	}
	return out
}
