// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package transport

// ResourceRevision identifies one uploaded revision of a named
// resource attached to a charm.
type ResourceRevision struct {
	Download ResourceDownload `json:"download"`
	Name     string           `json:"name"`
	Revision int              `json:"revision"`
	Type     string           `json:"type"`
}

// ResourceDownload holds the hashes, size and URL of a resource blob.
type ResourceDownload struct {
	HashSHA256  string `json:"hash-sha-256"`
	HashSHA3384 string `json:"hash-sha3-384"`
	HashSHA384  string `json:"hash-sha-384"`
	HashSHA512  string `json:"hash-sha-512"`
	Size        int    `json:"size"`
	URL         string `json:"url"`
}

// ResourcesResponse is the result of a list-resource-revisions query.
type ResourcesResponse struct {
	Revisions []ResourceRevision `json:"revisions"`
	ErrorList APIErrors          `json:"error-list,omitempty"`
}
