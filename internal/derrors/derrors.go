// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package derrors defines the error categories shared by the wall server,
// its stores and its client, and their mapping to HTTP status codes.
package derrors

import (
	"errors"
	"fmt"
	"net/http"
)

//lint:file-ignore ST1012 prefixing error values with Err would stutter

var (
	// NotFound means the wall, or the page, does not exist.
	NotFound = errors.New("not found")
	// InvalidArgument means the request could not be understood: a bad
	// nonce, an unknown variant, or a malformed item.
	InvalidArgument = errors.New("invalid argument")
	// TooLarge means a body or an item's HTML is over its limit.
	TooLarge = errors.New("too large")
	// Conflict means the wall cannot take the change, for example because
	// its version counter is exhausted.
	Conflict = errors.New("conflict")
	// QuotaExceeded means the caller is over its request rate.
	QuotaExceeded = errors.New("quota exceeded")
	// Orphaned means a client is polling a wall the server no longer has.
	Orphaned = errors.New("orphaned session")

	// Unknown is returned for statuses that match none of the above.
	Unknown = errors.New("unknown")
)

// statuses maps each category to its HTTP status. Orphaned has no HTTP
// equivalent, so it takes an unassigned code.
var statuses = []struct {
	err    error
	status int
}{
	{NotFound, http.StatusNotFound},
	{InvalidArgument, http.StatusBadRequest},
	{TooLarge, http.StatusRequestEntityTooLarge},
	{Conflict, http.StatusConflict},
	{QuotaExceeded, http.StatusTooManyRequests},
	{Orphaned, 490},
}

// ToHTTPStatus returns the status the server responds with for err: that of
// the first category err wraps, 200 for nil, and 500 otherwise.
func ToHTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	for _, s := range statuses {
		if errors.Is(err, s.err) {
			return s.status
		}
	}
	return http.StatusInternalServerError
}

// FromHTTPStatus is the inverse of ToHTTPStatus, for clients. It returns nil
// for 2xx statuses. Otherwise the error wraps the category of status, or
// Unknown, and its text is format and args followed by the category. An
// empty format returns the bare category.
func FromHTTPStatus(status int, format string, args ...any) error {
	if status >= 200 && status < 300 {
		return nil
	}
	cat := Unknown
	for _, s := range statuses {
		if s.status == status {
			cat = s.err
			break
		}
	}
	if format == "" {
		return cat
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), cat)
}

// Wrap prefixes a non-nil *errp with a formatted message. The result
// unwraps to the original error. Use it in a defer:
//
//	defer derrors.Wrap(&err, "store.Add(%q)", nonce)
func Wrap(errp *error, format string, args ...any) {
	if *errp != nil {
		*errp = fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), *errp)
	}
}

// Add is like Wrap, but the result does not unwrap. Use it where callers
// must not depend on the categories of the underlying error.
func Add(errp *error, format string, args ...any) {
	if *errp != nil {
		*errp = fmt.Errorf("%s: %v", fmt.Sprintf(format, args...), *errp)
	}
}
