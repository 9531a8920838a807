// Package config loads subledger configuration.
//
// Values are resolved in order: built-in defaults, an optional YAML file named
// by SUBLEDGER_CONFIG, then SUBLEDGER_* environment variables. Nested keys map
// to variables by upper-casing and replacing dots with underscores, so
// postgres.max_conns becomes SUBLEDGER_POSTGRES_MAX_CONNS.
//
// # Keys
//
//	server.host, server.port, server.health_port
//	server.read_timeout, server.write_timeout, server.idle_timeout, server.shutdown_timeout
//	postgres.url, postgres.replica_urls, postgres.max_conns, postgres.min_conns
//	postgres.timeout, postgres.max_lifetime, postgres.max_idle_time, postgres.run_migrations
//	redis.url, redis.password, redis.db, redis.max_retries, redis.pool_size
//	cache.enabled, cache.fx_ttl, cache.l1_size
//	billing.default_max_subscriptions, billing.default_max_periods
//	billing.max_subscriptions_limit, billing.max_periods_limit
//	log.level, metrics.enabled
//	otel.enabled, otel.endpoint, otel.service_name, otel.service_version
//	otel.insecure, otel.sample_ratio
//
// An empty redis.url disables the shared exchange rate cache; the in-process
// cache still applies when cache.enabled is true.
//
// # Usage
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
package config
