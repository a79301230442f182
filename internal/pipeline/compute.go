// Package pipeline derives the visible listing from the fetched assets:
// filter by text, stable sort by key, then cut out one page.
package pipeline

import (
	"cmp"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/micko4develop/crypto-dash/internal/models"
)

// View is the derived listing for one Query. It is rebuilt wholesale.
type View struct {
	Items      []models.Asset `json:"-"`
	Page       []models.Asset `json:"page"`
	TotalPages int            `json:"totalPages"`
	TotalItems int            `json:"totalItems"`
	Controls   *PageControls  `json:"controls,omitempty"`
}

// Compute runs filter, sort and paginate over assets. assets is not modified.
func Compute(assets []models.Asset, q Query) View {
	sorted := Sort(Filter(assets, q.Filter), q.Sort)
	page, totalPages := Paginate(sorted, q.Page, q.PageSize)
	return View{
		Items:      sorted,
		Page:       page,
		TotalPages: totalPages,
		TotalItems: len(sorted),
		Controls:   NewPageControls(q.Page, totalPages, len(sorted), q.PageSize),
	}
}

// Filter keeps assets whose name or symbol contains text, ignoring case.
// An empty text keeps everything.
func Filter(assets []models.Asset, text string) []models.Asset {
	out := make([]models.Asset, 0, len(assets))
	if text == "" {
		return append(out, assets...)
	}

	lower := cases.Lower(language.Und)
	needle := lower.String(text)
	for _, a := range assets {
		if strings.Contains(lower.String(a.Name), needle) || strings.Contains(lower.String(a.Symbol), needle) {
			out = append(out, a)
		}
	}
	return out
}

// Sort returns a stably ordered copy of assets. A missing sort field counts
// as 0; equal values keep their input order. An unknown key keeps input order.
func Sort(assets []models.Asset, key SortKey) []models.Asset {
	out := slices.Clone(assets)
	if out == nil {
		out = []models.Asset{}
	}
	if !key.Valid() {
		return out
	}

	field, desc := key.Field(), key.Descending()
	slices.SortStableFunc(out, func(a, b models.Asset) int {
		av, _ := a.Metric(field)
		bv, _ := b.Metric(field)
		if desc {
			return cmp.Compare(bv, av)
		}
		return cmp.Compare(av, bv)
	})
	return out
}

// TotalPages is ceil(count / pageSize). A pageSize below 1 counts as 1.
func TotalPages(count, pageSize int) int {
	pageSize = max(pageSize, 1)
	if count <= 0 {
		return 0
	}
	return (count-1)/pageSize + 1
}

// Paginate returns the 1-based page of items and the total page count.
// Out-of-range pages yield an empty slice.
func Paginate(items []models.Asset, page, pageSize int) ([]models.Asset, int) {
	pageSize = max(pageSize, 1)
	total := TotalPages(len(items), pageSize)
	if page < 1 || page > total {
		return []models.Asset{}, total
	}

	// page <= total keeps start below len(items) without overflow
	start := (page - 1) * pageSize
	end := start + min(pageSize, len(items)-start)
	return slices.Clone(items[start:end]), total
}
