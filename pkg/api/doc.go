// Package api provides the HTTP REST API of the subledger billing service.
//
// # Routes
//
//	POST /billing/simulate                     run billing advancement (optionally dry)
//	POST /plans                                add a plan to the catalog
//	GET  /plans?page&pageSize&currency         list plans, optionally converted
//	GET  /plans/{id}?currency                  get one plan
//	POST /subscriptions                        open a subscription
//	GET  /subscriptions?page&pageSize&customerId
//	GET  /subscriptions/{id}
//	POST /subscriptions/{id}/cancel
//	POST /subscriptions/{id}/reactivate
//	GET  /subscriptions/{id}/billing-events    ledger entries, latest period first
//	POST /fx-rates                             load an exchange rate
//
// All bodies are JSON with camelCase fields. Request DTOs are validated with
// go-playground/validator; failures return 400 with per-field details:
//
//	{"error": "validation failed", "details": {"priceCents": "is required"}}
//
// Domain errors are mapped by the errs taxonomy: NotFound 404, Conflict 409,
// Unprocessable 422, Validation 400. Anything else is a 500 with a generic
// message and is logged with its cause.
//
// # Usage
//
//	server := api.NewServer(api.Services{
//		Plans:         planService,
//		Subscriptions: subscriptionService,
//		Events:        api.LedgerEvents(ledger, db),
//		Simulator:     simulator,
//		Rates:         converter,
//	}, clock, logger).WithMetrics(metrics)
//	http.ListenAndServe(":8080", server)
//
// Subscription views carry computedStatus, derived from the server clock on
// every read.
package api
