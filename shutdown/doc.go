// Package shutdown runs a plugin's cleanup callbacks within a fixed grace
// period.
//
// # Lifecycle
//
//	Running ──Initiate──▶ Stopping ──all settled or 1s elapsed──▶ Stopped
//
// There is no way back to Running. While Running, plugins register
// callbacks and may remove them again with the returned Destructor.
// Initiate starts every registered callback at once and waits until they
// have all returned or GracePeriod has elapsed, whichever comes first.
//
//	coord := shutdown.NewCoordinator(shutdown.Config{})
//	stop, err := coord.Register(func(ctx context.Context) error {
//	    return flush(ctx)
//	})
//
//	// host side
//	res := coord.Initiate(context.Background())
//	if res.Err != nil {
//	    log.Printf("cleanup incomplete: %v", res.Err)
//	}
//
// # Outcomes
//
// Initiate never fails the host. Each callback's outcome is recorded in
// Result.Results:
//
//   - returned nil: success
//   - returned an error or panicked: failure, recorded in Err
//   - still running at the deadline: Abandoned; its context is cancelled and
//     its eventual return is ignored
//
// Result.Err is a SHUTDOWN_TIMEOUT error when anything was abandoned, or
// wraps ErrCallbackFailed when callbacks only failed.
//
// Register after Initiate returns ErrNotRunning and a no-op Destructor; the
// callback is never invoked.
package shutdown
