// SPDX-License-Identifier: MPL-2.0

package kpmmgr

import (
	"context"
	"fmt"
	"strings"
)

// Availability describes a helper that passed Probe.
type Availability struct {
	Path    string
	Version string
}

// Probe derives helper availability. The helper path must exist with an
// execute permission, the version query must succeed, and its output must not
// start with "error". Nothing is cached; every call re-derives the answer.
func (c *Client) Probe(ctx context.Context) (Availability, error) {
	if err := checkExecutable(c.path); err != nil {
		return Availability{}, &UnavailableError{Path: c.path, Err: err}
	}

	version, err := c.Version(ctx)
	if err != nil {
		return Availability{}, &UnavailableError{Path: c.path, Err: err}
	}

	if strings.HasPrefix(strings.ToLower(version), "error") {
		return Availability{}, &UnavailableError{
			Path: c.path,
			Err:  fmt.Errorf("%w: %q", ErrVersionReportsError, version),
		}
	}

	c.logger.Info("helper available", "path", c.path, "version", version)
	return Availability{Path: c.path, Version: version}, nil
}
