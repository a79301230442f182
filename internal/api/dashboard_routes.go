package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/micko4develop/crypto-dash/internal/dashboard"
	"github.com/micko4develop/crypto-dash/internal/feed"
	"github.com/micko4develop/crypto-dash/internal/format"
	"github.com/micko4develop/crypto-dash/internal/models"
	"github.com/micko4develop/crypto-dash/internal/pipeline"
)

// rowJSON is one listing row with display strings next to the raw values.
type rowJSON struct {
	models.Asset
	Display rowDisplay `json:"display"`
}

type rowDisplay struct {
	Price     string `json:"price"`
	MarketCap string `json:"marketCap"`
	Volume    string `json:"volume"`
	Change24h string `json:"change24h"`
	Rank      string `json:"rank"`
}

type dashboardResponse struct {
	dashboard.View
	Rows []rowJSON `json:"rows"`
}

type queryRequest struct {
	Filter   *string `json:"filter"`
	Sort     *string `json:"sort"`
	Page     *int    `json:"page"`
	PageSize *int    `json:"pageSize"`
}

type sortJSON struct {
	Key   pipeline.SortKey `json:"key"`
	Label string           `json:"label"`
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newDashboardResponse(s.dash.View()))
}

func (s *Server) handleMount(w http.ResponseWriter, r *http.Request) {
	err := s.dash.Mount(r.Context())
	s.writeLoadResult(w, r, err)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	err := s.dash.Refresh(r.Context())
	s.writeLoadResult(w, r, err)
}

// writeLoadResult always returns the view; a failed load maps to 502, or
// 504 when the feed timed out.
func (s *Server) writeLoadResult(w http.ResponseWriter, r *http.Request, err error) {
	v := s.dash.View()
	if err != nil {
		loggerFrom(r, s.log).Warn().Err(err).Str("path", r.URL.Path).Msg("listing load failed")
		writeJSON(w, loadFailureStatus(err), newDashboardResponse(v))
		return
	}
	writeJSON(w, http.StatusOK, newDashboardResponse(v))
}

// handleQuery applies the given changes in the order filter, sort, page
// size, page. It never fetches.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid query body: "+err.Error())
		return
	}

	var acts []pipeline.Action
	if req.Filter != nil {
		acts = append(acts, pipeline.SetFilter{Text: *req.Filter})
	}
	if req.Sort != nil {
		key, err := pipeline.ParseSortKey(*req.Sort)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		acts = append(acts, pipeline.SetSort{Key: key})
	}
	if req.PageSize != nil {
		acts = append(acts, pipeline.SetPageSize{Size: *req.PageSize})
	}
	if req.Page != nil {
		acts = append(acts, pipeline.SetPage{Page: *req.Page})
	}

	v := s.dash.View()
	for _, act := range acts {
		v = s.dash.Dispatch(act)
	}
	writeJSON(w, http.StatusOK, newDashboardResponse(v))
}

func (s *Server) handleSorts(w http.ResponseWriter, r *http.Request) {
	keys := pipeline.SortKeys()
	out := make([]sortJSON, len(keys))
	for i, k := range keys {
		out[i] = sortJSON{Key: k, Label: k.Label()}
	}
	writeJSON(w, http.StatusOK, out)
}

func newDashboardResponse(v dashboard.View) dashboardResponse {
	rows := make([]rowJSON, len(v.Derived.Page))
	for i, a := range v.Derived.Page {
		rows[i] = rowJSON{
			Asset: a,
			Display: rowDisplay{
				Price:     format.USDOf(a.CurrentPrice),
				MarketCap: format.CompactOf(a.MarketCap),
				Volume:    format.CompactOf(a.TotalVolume),
				Change24h: format.PercentOf(a.PriceChangePercentage24h),
				Rank:      format.RankOf(a.MarketCapRank),
			},
		}
	}
	return dashboardResponse{View: v, Rows: rows}
}

func loadFailureStatus(err error) int {
	if k, ok := feed.KindOf(err); ok && k == feed.Timeout {
		return http.StatusGatewayTimeout
	}
	var fe *feed.Error
	if errors.As(err, &fe) && fe.Status == http.StatusNotFound {
		return http.StatusNotFound
	}
	return http.StatusBadGateway
}
