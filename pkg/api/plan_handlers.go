package api

import (
	"net/http"

	"github.com/platinummonkey/subledger/pkg/httputil"
	"github.com/platinummonkey/subledger/pkg/storage"
)

// createPlan adds a plan to the catalog
func (s *Server) createPlan(w http.ResponseWriter, r *http.Request) {
	var req CreatePlanRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	plan, err := s.services.Plans.Create(r.Context(), req.toDomain())
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	view, err := s.services.Plans.View(r.Context(), plan, "")
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteCreated(w, view)
}

// getPlan returns one plan, optionally priced in another currency
func (s *Server) getPlan(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathUUIDOrError(w, r, "id")
	if !ok {
		return
	}
	query := GetPlanQuery{Currency: httputil.ParseQueryString(r, "currency", "")}
	if !validateOrError(w, r, &query) {
		return
	}

	plan, err := s.services.Plans.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	view, err := s.services.Plans.View(r.Context(), plan, query.Currency)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, view)
}

// listPlans returns one page of the catalog
func (s *Server) listPlans(w http.ResponseWriter, r *http.Request) {
	page, pageSize, ok := parsePaging(w, r)
	if !ok {
		return
	}
	query := ListPlansQuery{
		Page:     page,
		PageSize: pageSize,
		Currency: httputil.ParseQueryString(r, "currency", ""),
	}
	if !validateOrError(w, r, &query) {
		return
	}

	result, err := s.services.Plans.List(r.Context(), storage.PageRequest{Page: query.Page, PageSize: query.PageSize})
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	views, err := s.services.Plans.ViewPage(r.Context(), result, query.Currency)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, views)
}

// parsePaging reads page and pageSize, defaulting both
func parsePaging(w http.ResponseWriter, r *http.Request) (int, int, bool) {
	page, err := httputil.ParseQueryInt(r, "page", storage.DefaultPage)
	if err != nil {
		httputil.WriteError(w, r, err)
		return 0, 0, false
	}
	pageSize, err := httputil.ParseQueryInt(r, "pageSize", storage.DefaultPageSize)
	if err != nil {
		httputil.WriteError(w, r, err)
		return 0, 0, false
	}
	return page, pageSize, true
}
