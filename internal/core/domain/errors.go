package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput covers malformed queries, out-of-range top_k/alpha
	// and invalid chunker configuration.
	ErrInvalidInput = errors.New("invalid input")
	// ErrExtraction means every extraction strategy failed or produced no
	// usable text.
	ErrExtraction = errors.New("no content extracted")
	// ErrNetwork means the source could not be reached at all, as opposed
	// to reached-but-unparseable.
	ErrNetwork = errors.New("network failure")
	// ErrConsistency is an internal index invariant violation; fatal for
	// the affected operation, never for unrelated entries.
	ErrConsistency = errors.New("index consistency violation")
	ErrJobNotFound = errors.New("ingest job not found")
	ErrTemporary   = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
