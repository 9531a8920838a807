package api

import (
	"net/http"

	"github.com/platinummonkey/subledger/pkg/httputil"
)

// simulateBilling advances every due subscription, or just the one named in
// the request, and reports what was billed
func (s *Server) simulateBilling(w http.ResponseWriter, r *http.Request) {
	var req SimulateBillingRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	resp, err := s.services.Simulator.Simulate(r.Context(), req.toDomain())
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, resp)
}
