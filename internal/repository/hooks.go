package repository

import (
	"context"
	"errors"
	"fmt"
)

// AfterCommitError reports that a transaction committed but one or more of
// its post-commit hooks failed. The data is durable.
type AfterCommitError struct {
	Failed int
	Err    error
}

func (e *AfterCommitError) Error() string {
	return fmt.Sprintf("after commit: %d hook(s) failed: %v", e.Failed, e.Err)
}

func (e *AfterCommitError) Unwrap() error {
	return e.Err
}

// IsAfterCommit reports whether err came from a post-commit hook.
func IsAfterCommit(err error) bool {
	var ace *AfterCommitError
	return errors.As(err, &ace)
}

// Hooks collects post-commit hooks for one unit of work. The zero value is
// ready to use; it is not safe for concurrent registration.
type Hooks struct {
	fns []Hook
}

// Add registers a hook.
func (h *Hooks) Add(fn Hook) {
	h.fns = append(h.fns, fn)
}

// Len returns the number of registered hooks.
func (h *Hooks) Len() int {
	return len(h.fns)
}

// Run executes every hook in order. A failing hook does not stop the ones
// after it; all failures are joined into one *AfterCommitError.
func (h *Hooks) Run(ctx context.Context) error {
	var errs []error
	for _, fn := range h.fns {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return &AfterCommitError{Failed: len(errs), Err: errors.Join(errs...)}
}
