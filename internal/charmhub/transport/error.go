// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package transport

import (
	"strings"

	"github.com/juju/errors"
)

// APIError represents the error from the CharmHub API.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (a APIError) Error() string {
	return a.Message
}

// APIErrors represents a slice of APIError's
type APIErrors []APIError

func (a APIErrors) Error() string {
	if len(a) > 0 {
		messages := make([]string, len(a))
		for k, v := range a {
			messages[k] = v.Error()
		}
		return strings.Join(messages, "\n")
	}
	return ""
}

// Combine the API errors into one error, or nil if there are none.
func (a APIErrors) Combine() error {
	if len(a) > 0 {
		return errors.New(a.Error())
	}
	return nil
}
