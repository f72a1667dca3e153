package app

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrInvalidMutation rejects a mutation before either replica is touched.
	ErrInvalidMutation = errors.New("invalid cart mutation")

	// ErrRemoteUnavailable marks a transport or auth failure reaching the
	// remote replica. The cart stays usable locally.
	ErrRemoteUnavailable = errors.New("remote cart store unavailable")

	// ErrPartialMerge marks a reconciliation where some per-item upserts
	// failed. The merged snapshot reflects the subset that landed.
	ErrPartialMerge = errors.New("partial cart merge")
)

// PartialMergeError carries the per-product failures of a reconciliation.
// It is recoverable: a later Sync or the next sign-in re-runs the same
// idempotent upserts.
type PartialMergeError struct {
	Failed map[string]error
}

func (e *PartialMergeError) Error() string {
	ids := make([]string, 0, len(e.Failed))
	for id := range e.Failed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return fmt.Sprintf("partial cart merge: %d item(s) not pushed: %s", len(ids), strings.Join(ids, ", "))
}

func (e *PartialMergeError) Is(target error) bool {
	return target == ErrPartialMerge
}
