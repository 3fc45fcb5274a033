// Package refresh runs care resolutions outside the request path.
//
// A Dispatcher is a bounded, fire-and-forget job queue. Every job resolves
// one species with ForceRefresh set and the job's preferred provider tried
// first, so a job behaves exactly like a forced lookup through the facade.
//
// A Sweeper periodically lists records that are uncached or stale and feeds
// them to the dispatcher.
//
// Example usage:
//
//	d := refresh.NewDispatcher(res, refresh.DefaultConfig())
//	d.Start(ctx)
//	defer d.Stop()
//
//	s := refresh.NewSweeper(st, d, refresh.DefaultSweeperConfig())
//	go s.Run(ctx)
//
// Jobs for a species already queued or running are rejected with
// ErrDuplicate.
package refresh
