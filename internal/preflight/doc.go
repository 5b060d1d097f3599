// Package preflight checks that a sync can run before it starts.
//
// The checks cover free disk space and write access in the data directory,
// the open file limit, whether the claim store opens, and whether the search
// engine answers a health probe:
//
//	checker := preflight.New(preflight.WithOutput(os.Stdout))
//	results := checker.RunAll(ctx, preflight.Target{DataDir: dir, Store: opener, Search: connector})
//	if checker.HasCriticalFailures(results) {
//	    // refuse to sync
//	}
package preflight
