package spritebatch

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the spritebatch package. Match with errors.Is.
var (
	// ErrConfiguration is the parent of every setup error. Setup errors leave
	// the batch unchanged; fix the call and retry.
	ErrConfiguration = errors.New("spritebatch: configuration error")

	// ErrAlreadyConfigured is returned when a pixel source is enabled twice.
	ErrAlreadyConfigured = fmt.Errorf("%w: pixel source already configured", ErrConfiguration)

	// ErrInvalidMode is returned when enabling the LRU cache on a batch that
	// uses a custom loader, or the other way round.
	ErrInvalidMode = fmt.Errorf("%w: LRU cache and custom loader are mutually exclusive", ErrConfiguration)

	// ErrInvalidCapacity is returned for a cache capacity that is not positive.
	ErrInvalidCapacity = fmt.Errorf("%w: cache capacity must be positive", ErrConfiguration)

	// ErrSourceUnavailable is returned when pixels could not be fetched.
	ErrSourceUnavailable = errors.New("spritebatch: pixel source unavailable")

	// ErrEntryTooLarge is returned when one image exceeds the whole cache.
	ErrEntryTooLarge = errors.New("spritebatch: image larger than cache capacity")

	// ErrImageTooLargeForPage is returned when an image cannot fit on an
	// empty atlas page.
	ErrImageTooLargeForPage = errors.New("spritebatch: image larger than atlas page")

	// ErrAtlasFull is returned when MaxPages is reached and no page has room.
	ErrAtlasFull = errors.New("spritebatch: atlas page limit reached")

	// ErrPartialFailure is matched by *PartialFailureError.
	ErrPartialFailure = errors.New("spritebatch: some sprites failed")

	// ErrInvalidState is returned on API misuse: use after Dispose, push
	// before a pixel source is configured, or reentrant calls from a loader.
	ErrInvalidState = errors.New("spritebatch: invalid state")

	// ErrUnknownImage is returned by Push for an ID outside the path list.
	ErrUnknownImage = errors.New("spritebatch: unknown image id")
)

// ConfigError represents a Config validation error.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return "spritebatch: invalid config." + e.Field + ": " + e.Reason
}

// Unwrap lets errors.Is(err, ErrConfiguration) match.
func (e *ConfigError) Unwrap() error { return ErrConfiguration }

// SpriteError records why a single sprite was skipped during Flush or Defrag.
type SpriteError struct {
	ID  uint64
	Err error
}

func (e *SpriteError) Error() string {
	return fmt.Sprintf("sprite %d: %v", e.ID, e.Err)
}

func (e *SpriteError) Unwrap() error { return e.Err }

// PartialFailureError is returned by Flush when at least one sprite failed.
// The draw calls for every other sprite were still submitted.
type PartialFailureError struct {
	Failures []*SpriteError
}

func (e *PartialFailureError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "spritebatch: %d sprite(s) failed", len(e.Failures))
	for i, f := range e.Failures {
		if i == 4 {
			fmt.Fprintf(&sb, "; ... %d more", len(e.Failures)-i)
			break
		}
		sb.WriteString("; ")
		sb.WriteString(f.Error())
	}
	return sb.String()
}

// Is reports a match against ErrPartialFailure.
func (e *PartialFailureError) Is(target error) bool {
	return target == ErrPartialFailure
}

// Unwrap exposes the per-sprite errors to errors.Is and errors.As.
func (e *PartialFailureError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}

// IDs returns the failed sprite IDs in the order they were pushed.
func (e *PartialFailureError) IDs() []uint64 {
	ids := make([]uint64, len(e.Failures))
	for i, f := range e.Failures {
		ids[i] = f.ID
	}
	return ids
}
