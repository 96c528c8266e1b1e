// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package serrors defines the error that wall handlers return when they
// want a particular response, rather than one derived from the error chain.
package serrors

import (
	"fmt"
	"net/http"

	"github.com/safehtml-demo/wall/internal/derrors"
	"github.com/safehtml-demo/wall/internal/frontend/page"
)

// ServerError carries the status and text of an HTTP error response.
//
// ResponseText is the plain-text body sent to API clients. Browsers get an
// error page instead, built from Epage if it is set.
type ServerError struct {
	Status       int
	ResponseText string
	Epage        *page.ErrorPage
	Err          error
}

// BadRequest returns a 400 error whose response text is err's message.
// The result wraps derrors.InvalidArgument as well as err.
func BadRequest(err error) *ServerError {
	return &ServerError{
		Status:       http.StatusBadRequest,
		ResponseText: err.Error(),
		Err:          fmt.Errorf("%w: %w", derrors.InvalidArgument, err),
	}
}

func (s *ServerError) Error() string {
	return fmt.Sprintf("%d %s: %v", s.Status, http.StatusText(s.Status), s.Err)
}

func (s *ServerError) Unwrap() error { return s.Err }
