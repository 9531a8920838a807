// Package fx converts plan prices between currencies.
//
// Rates live in the fx_rates table; a conversion uses the newest rate whose
// as_of is not in the future. Amounts are integer minor units and are
// multiplied with arbitrary-precision decimals, then rounded half away from
// zero, so 10000 cents at 5.25 is exactly 52500.
//
// Lookups can be cached in process (MemoryCache), in Redis (RedisCache) or
// both (TieredCache). Creating a rate through the Converter invalidates the
// cached entry for its pair in every tier, and a cached rate expires no later
// than the as_of of the next rate already scheduled for its pair.
//
//	conv := fx.NewConverter(fx.NewPostgresStore(db), cache, clockwork.NewRealClock(), logger)
//	c, err := conv.Convert(ctx, 10000, fx.USD, fx.BRL)
package fx
