package api

import (
	"net/http"

	"github.com/platinummonkey/subledger/pkg/httputil"
	"github.com/platinummonkey/subledger/pkg/storage"
	"github.com/platinummonkey/subledger/pkg/subscriptions"
	"github.com/samber/lo"
)

// createSubscription opens a subscription on its first monthly window
func (s *Server) createSubscription(w http.ResponseWriter, r *http.Request) {
	var req CreateSubscriptionRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	sub, err := s.services.Subscriptions.Create(r.Context(), req.toDomain())
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteCreated(w, sub.ToView(s.clock.Now()))
}

func (s *Server) getSubscription(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathUUIDOrError(w, r, "id")
	if !ok {
		return
	}

	sub, err := s.services.Subscriptions.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, sub.ToView(s.clock.Now()))
}

func (s *Server) listSubscriptions(w http.ResponseWriter, r *http.Request) {
	page, pageSize, ok := parsePaging(w, r)
	if !ok {
		return
	}
	query := ListSubscriptionsQuery{
		Page:       page,
		PageSize:   pageSize,
		CustomerID: httputil.ParseQueryString(r, "customerId", ""),
	}
	if !validateOrError(w, r, &query) {
		return
	}

	result, err := s.services.Subscriptions.List(r.Context(), query.toDomain())
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	now := s.clock.Now()
	httputil.WriteSuccess(w, storage.Page[subscriptions.View]{
		Items: lo.Map(result.Items, func(sub *subscriptions.Subscription, _ int) subscriptions.View {
			return sub.ToView(now)
		}),
		Page:     result.Page,
		PageSize: result.PageSize,
		Total:    result.Total,
	})
}

func (s *Server) cancelSubscription(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathUUIDOrError(w, r, "id")
	if !ok {
		return
	}

	sub, err := s.services.Subscriptions.Cancel(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, sub.ToView(s.clock.Now()))
}

// reactivateSubscription restarts a canceled subscription on a fresh window
func (s *Server) reactivateSubscription(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathUUIDOrError(w, r, "id")
	if !ok {
		return
	}

	sub, err := s.services.Subscriptions.Reactivate(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, sub.ToView(s.clock.Now()))
}

// listBillingEvents returns the ledger of one subscription, latest period first
func (s *Server) listBillingEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathUUIDOrError(w, r, "id")
	if !ok {
		return
	}

	if _, err := s.services.Subscriptions.Get(r.Context(), id); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	entries, err := s.services.Events.ListBySubscription(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, entries)
}
