// Package directory holds the HTTP clients for the three upstream data
// sources: the traffic-camera directory, the transit-stop directory, and the
// plow-activity history.  All three are polled once per pipeline cycle.
package directory

import "errors"

var (
	// ErrUnavailable indicates the upstream service failed or returned an
	// unusable response.  The cycle degrades rather than aborts.
	ErrUnavailable = errors.New("directory unavailable")

	// ErrUnauthorized indicates a rejected API key.  Unlike ErrUnavailable
	// this is not recoverable without operator action and is logged loudly.
	ErrUnauthorized = errors.New("directory request unauthorized")
)
