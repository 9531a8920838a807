// Package storage defines the persistence seams shared by the subledger
// repositories.
//
// # Overview
//
// Repositories accept a Querier, which both *sql.DB and *sql.Tx satisfy. A
// TxRunner groups several repository calls into one transaction; the billing
// run uses this to commit every ledger entry and the advanced period window of
// one subscription atomically.
//
//	err := runner.WithTx(ctx, func(ctx context.Context, tx storage.Querier) error {
//		if _, err := ledger.Record(ctx, tx, entry); err != nil {
//			return err
//		}
//		return subs.UpdatePeriod(ctx, tx, id, start, end)
//	})
//
// # Backends
//
// The postgres subpackage provides the primary/replica ConnectionManager, the
// versioned schema migrations and the Redis client used by the exchange rate
// cache. Config carries the settings for all of them:
//
//	cfg := storage.DefaultConfig()
//	cfg.PostgresURL = "postgres://localhost/subledger?sslmode=disable"
package storage
