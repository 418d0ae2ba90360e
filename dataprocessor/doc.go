// Package dataprocessor is the entry point of the request pipeline.
//
// The application builds one DataProcessor, initializes it once with a
// config.Config and passes it to whatever issues requests:
//
//	dp := dataprocessor.New(logger, dataprocessor.WithMetricsRegistry(registry))
//	if err := dp.Init(cfg); err != nil {
//	    return err
//	}
//	defer dp.Shutdown(10 * time.Second)
//
//	unit, err := dataprocessor.ExecuteAsync(ctx, dp, req, processor.JSON[Report](),
//	    func(r *Report, status int, message string) { ... })
//
// Execute runs on the caller's goroutine. ExecuteAsync uses the worker pool
// when the configuration enables it and a goroutine per call otherwise.
// ExecuteCachedAsync goes through the result cache, so a second call with
// the same key gets the stored result without fetching again.
//
// Every execution call fails with errors.ErrNotInitialized until Init has
// installed a configuration with a user agent.
package dataprocessor
