package ragkit

import (
	"errors"
	"fmt"

	"github.com/hupe1980/ragkit/cache"
	"github.com/hupe1980/ragkit/cascade"
	"github.com/hupe1980/ragkit/fusion"
)

var (
	// ErrInvalidQuery is returned for blank queries, on both the search and
	// the cache paths.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrNoSearcher is returned when a cascade runs without any searcher wired.
	ErrNoSearcher = errors.New("no searcher available")

	// ErrDuplicateSourceID is returned when a fusion candidate list carries
	// the same SourceID twice.
	ErrDuplicateSourceID = errors.New("duplicate source id")

	// ErrNothingToInvalidate is returned when an invalidation names neither
	// a pattern nor tags.
	ErrNothingToInvalidate = errors.New("invalidate needs a pattern or tags")
)

// translateError unifies subpackage sentinels under the root ones so callers
// only need errors.Is against this package.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, cascade.ErrEmptyQuery) || errors.Is(err, cache.ErrInvalidQuery) {
		return fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}
	if errors.Is(err, cascade.ErrNoSearcher) {
		return fmt.Errorf("%w: %w", ErrNoSearcher, err)
	}
	if errors.Is(err, fusion.ErrDuplicateSourceID) {
		return fmt.Errorf("%w: %w", ErrDuplicateSourceID, err)
	}
	if errors.Is(err, cache.ErrNothingToInvalidate) {
		return fmt.Errorf("%w: %w", ErrNothingToInvalidate, err)
	}

	return err
}
