// Package config holds the data processor configuration: the server the
// HTTP sources talk to, transport timeout, charset, result cache sizing,
// worker pool, logging switches and the addresses of the optional NATS,
// S3 and Redis sources.
//
// A Config is produced once and never mutated afterwards. There are two ways
// to get one.
//
// Builder, for programmatic setup:
//
//	cfg, err := config.NewBuilder().
//		Host("https://api.example.com/").
//		Timeout(3 * time.Second).
//		CacheSize(32).
//		Build()
//
// Build fails when no host is set. BuildLocal skips that check for programs
// that only read files or object stores.
//
// Loader, for files and environment:
//
//	cfg, err := config.NewLoader().
//		AddLayer("configs/base.yaml").
//		AddLayer("configs/production.json").
//		Load()
//
// Layers are merged field by field over DefaultConfig, then DATAPROCESSOR_*
// environment variables are applied (DATAPROCESSOR_HOST, DATAPROCESSOR_TIMEOUT,
// DATAPROCESSOR_CACHE_SIZE, ...), then the result is validated. Durations
// accept Go duration strings ("750ms", "14d") or a bare number of
// milliseconds.
//
// Config files must have a .json, .yaml or .yml extension, be regular files
// under 10MB, and relative paths may not resolve outside the working
// directory.
package config
