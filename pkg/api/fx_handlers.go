package api

import (
	"net/http"

	"github.com/platinummonkey/subledger/pkg/httputil"
)

// createFXRate loads an exchange rate effective from asOf
func (s *Server) createFXRate(w http.ResponseWriter, r *http.Request) {
	var req CreateFXRateRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	rate, err := s.services.Rates.CreateRate(r.Context(), req.toDomain(s.clock.Now()))
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteCreated(w, newFXRateResponse(rate))
}
