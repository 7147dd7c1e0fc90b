// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package path provides a URL path type that can be joined and
// extended with query parameters without mutating the original.
package path

import (
	"net/url"
	gopath "path"

	"github.com/juju/errors"
)

// Path defines an absolute path for calling requests to the server.
type Path struct {
	base *url.URL
}

// MakePath creates a URL path from the source.
func MakePath(base *url.URL) Path {
	return Path{
		base: base,
	}
}

// Join sums path names onto the base URL, leaving the original
// untouched.
func (u Path) Join(names ...string) (Path, error) {
	newURL := *u.base
	segments := make([]string, 0, len(names)+1)
	segments = append(segments, newURL.Path)
	segments = append(segments, names...)
	newURL.Path = gopath.Join(segments...)
	return MakePath(&newURL), nil
}

// Query adds additional query parameters to the Path.
func (u Path) Query(key string, value string) (Path, error) {
	if value == "" {
		return u, nil
	}

	newURL, err := url.Parse(u.String())
	if err != nil {
		return Path{}, errors.Trace(err)
	}

	values := newURL.Query()
	values.Add(key, value)
	newURL.RawQuery = values.Encode()

	return MakePath(newURL), nil
}

// String returns a stringified version of the Path.
func (u Path) String() string {
	return u.base.String()
}
