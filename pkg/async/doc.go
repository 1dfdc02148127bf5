// Package async runs fire-and-forget background tasks.
//
// # Overview
//
// Runner wraps goroutine lifecycle management with panic recovery, timeout
// enforcement and failure logging. Tasks outlive the request that started
// them; Close waits for them during shutdown.
//
//	runner := async.NewRunner(
//		async.WithTimeout(30*time.Second),
//		async.WithLogger(logger),
//		async.WithErrorHandler(func(name string, err error) {
//			metrics.NotificationFailures.WithLabelValues(name).Inc()
//		}),
//	)
//	defer runner.Close(shutdownCtx)
//
//	runner.Go(r.Context(), "invite email", func(ctx context.Context) error {
//		return sender.Send(ctx, msg)
//	})
//
// # Related Packages
//
//   - pkg/enrollment: Sends invitation and pending notices through a Runner
package async
