package consensus

import (
	"errors"
	"fmt"

	"github.com/spboyer/veracity/internal/detectors"
)

// ErrAllModelsFailed is matched (via errors.Is) by every [*AllModelsFailedError].
var ErrAllModelsFailed = errors.New("detection unavailable, please retry")

// Failure describes why one detector did not contribute to a result.
type Failure struct {
	Detector string              `json:"detector"`
	Kind     detectors.ErrorKind `json:"kind"`
	Reason   string              `json:"reason"`
}

// AllModelsFailedError is the only request-level failure Detect produces.
// Its message is safe to show users; Failures carries the diagnostics.
type AllModelsFailedError struct {
	Failures []Failure
}

func (e *AllModelsFailedError) Error() string {
	return ErrAllModelsFailed.Error()
}

func (e *AllModelsFailedError) Is(target error) bool {
	return target == ErrAllModelsFailed
}

// ConfigError is returned by [New] when the detector set breaks a setup
// invariant.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid detector ensemble: %s", e.Reason)
}
