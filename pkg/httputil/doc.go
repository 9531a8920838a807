// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Response Helpers
//
//	httputil.WriteJSON(w, http.StatusOK, data)
//	httputil.WriteCreated(w, resource)
//	httputil.WriteError(w, r, err) // status from the errs taxonomy
//
// WriteError never leaks the cause of a fatal error to the client; it logs it
// through the request-scoped logger instead.
//
// # Request Parsing
//
//	var req CreatePlanRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // Error response already written
//	}
//
//	id, ok := httputil.ParsePathUUIDOrError(w, r, "id")
//	page, err := httputil.ParseQueryInt(r, "page", 1)
//
// # Middleware
//
//	httputil.Chain(
//		httputil.RequestIDMiddleware(logger),
//		httputil.LoggingMiddleware,
//		httputil.RecoveryMiddleware,
//		httputil.ContentTypeMiddleware,
//		httputil.MaxBytesMiddleware(1<<20),
//	)
//
// RequestIDMiddleware must run first: it installs the logger the others use.
package httputil
