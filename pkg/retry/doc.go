// Package retry provides bounded exponential backoff for transient failures.
//
// Do and DoContext run a function up to MaxAttempts times, sleeping between
// attempts with a delay that starts at InitialDelay and grows by Multiplier up to
// MaxDelay, optionally with up to 25% jitter. DoContext hands each attempt its
// own context bounded by AttemptTimeout, which is how sink deliveries enforce
// a per-call deadline.
//
// Errors wrapped with NonRetryable, or rejected by Config.Retryable, end the
// loop immediately:
//
//	cfg := retry.DefaultConfig()
//	cfg.AttemptTimeout = 2 * time.Second
//	cfg.Retryable = errors.IsTransient
//	err := retry.DoContext(ctx, cfg, func(ctx context.Context) error {
//	    return publisher.PublishToStream(ctx, subject, data)
//	})
//
// After exhaustion the returned error wraps the last failure and reads
// "retry failed after N attempts: ...".
package retry
