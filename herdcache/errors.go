package herdcache

import "errors"

// ErrBackendRequired is returned by New when Config.Backend is nil.
var ErrBackendRequired = errors.New("herdcache: Backend is required")

// ErrHasherRequired is returned by New when Config.Hasher is nil.
var ErrHasherRequired = errors.New("herdcache: Hasher is required")

// ErrShutdown is the terminal error on any PendingResult returned by Get or
// Apply after Shutdown has been called.
var ErrShutdown = errors.New("herdcache: cache is shut down")

// ClearKeyError aggregates the stale-tier and fresh-tier delete failures
// from a single ClearKey call. ClearKey itself never returns an error; when
// Config.WaitForRemove > 0 and at least one tier's delete failed, it logs
// one of these through the configured Logger instead of two separate lines.
type ClearKeyError struct {
	Key          string
	StaleTierErr error
	FreshTierErr error
}

func (e *ClearKeyError) Error() string {
	switch {
	case e.StaleTierErr != nil && e.FreshTierErr != nil:
		return "herdcache: clear " + e.Key + ": stale and fresh tier deletes both failed"
	case e.StaleTierErr != nil:
		return "herdcache: clear " + e.Key + ": stale tier delete failed"
	case e.FreshTierErr != nil:
		return "herdcache: clear " + e.Key + ": fresh tier delete failed"
	default:
		return "herdcache: clear " + e.Key
	}
}

func (e *ClearKeyError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.StaleTierErr != nil {
		errs = append(errs, e.StaleTierErr)
	}
	if e.FreshTierErr != nil {
		errs = append(errs, e.FreshTierErr)
	}
	return errs
}
