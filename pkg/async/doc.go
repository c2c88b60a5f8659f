// Package async provides a bounded worker pool with panic recovery and
// per-task timeouts.
//
// # WorkerPool
//
//	pool := async.NewWorkerPool(ctx, 4, "instantiate providers", 30*time.Second, logger)
//	defer pool.Shutdown(5 * time.Second)
//
//	pool.Submit(func(ctx context.Context) error {
//		return check(ctx, provider)
//	}, func(err error) {
//		// Called from the worker once the task finished
//	})
//	pool.Wait()
//
// A panicking task is logged with its stack and reported as an error to its
// done callback. The pool keeps running.
//
// # Batch
//
// Batch runs a function over a slice and keeps the error of each item at the
// item's index:
//
//	errs := async.Batch(ctx, providers, 4, "instantiate providers", 30*time.Second, logger,
//		func(ctx context.Context, p plugins.Provider) error {
//			return check(ctx, p)
//		})
//
// # Related Packages
//
//   - cmd/plugwall-inspect: Instantiates service providers concurrently
package async
