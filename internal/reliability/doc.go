// Package reliability provides retry policies for broker operations.
//
// Policies decide whether a failed attempt is retried and how long to wait
// first. Retry drives a function with a policy until it succeeds, the
// policy gives up or the context ends:
//
//	policy := reliability.NewExponentialBackoff(time.Second, 30*time.Second, 2.0, 5)
//	err := reliability.Retry(ctx, policy, func() error {
//	    return conn.Connect(ctx)
//	})
//
// Errors that implement IsRetryable() bool are retried only when it reports
// true; Permanent marks any error as final.
package reliability
