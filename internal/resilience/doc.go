// Package resilience provides fault tolerance patterns for upstream fetches.
//
// The package supports:
//   - Per-host circuit breakers, so one failing shop cannot slow every request
//   - Retry logic with exponential backoff and jitter
//
// Usage Example:
//
//	breakers := circuitbreaker.NewRegistry(circuitbreaker.DefaultRegistrySize, nil)
//	result, err := breakers.Get(host).Execute(func() (interface{}, error) {
//	    return fetcher.Fetch(ctx, rawURL)
//	})
//
//	attempts, err := retry.Do(ctx, retry.PreviewFetchConfig(), retry.IsTransient,
//	    func(attempt int) error {
//	        _, err := fetcher.Fetch(ctx, rawURL)
//	        return err
//	    })
package resilience
