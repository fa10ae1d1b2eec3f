// SPDX-License-Identifier: MPL-2.0

package lifecycle

import (
	"fmt"

	"github.com/kpmd/kpmd/internal/metrics"

	"go.uber.org/multierr"
)

// Report summarises a batch operation. Err combines the per-module failures
// and is informational: a batch never fails because of a single module.
type Report struct {
	Attempted int
	Succeeded int
	Failed    int
	Err       error
}

// Errors returns the individual per-module failures.
func (r Report) Errors() []error {
	return multierr.Errors(r.Err)
}

// String renders a one-line summary.
func (r Report) String() string {
	return fmt.Sprintf("%d attempted, %d succeeded, %d failed", r.Attempted, r.Succeeded, r.Failed)
}

func (r *Report) record(err error) {
	if err == nil {
		r.Succeeded++
		return
	}
	r.Failed++
	r.Err = multierr.Append(r.Err, err)
}

func (r Report) result() string {
	if r.Failed > 0 {
		return metrics.ResultFailure
	}
	return metrics.ResultSuccess
}
