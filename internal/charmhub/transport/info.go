// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package transport holds the wire types for the CharmHub v2 API.
package transport

// InfoResponse is the result of an info query for one charm.
type InfoResponse struct {
	Type           string           `json:"type"`
	Name           string           `json:"name"`
	ChannelMap     []InfoChannelMap `json:"channel-map"`
	DefaultRelease *InfoChannelMap  `json:"default-release,omitempty"`
	ErrorList      APIErrors        `json:"error-list,omitempty"`
}

// InfoChannelMap returns the channel map representation for an
// individual release: which revision, with which resources, is
// released in which channel for which base.
type InfoChannelMap struct {
	Channel   Channel            `json:"channel,omitempty"`
	Revision  InfoRevision       `json:"revision,omitempty"`
	Resources []ResourceRevision `json:"resources,omitempty"`
}

// Channel defines a unique permutation that corresponds to the
// track, risk and base. There can be multiple bases for a given
// track and risk.
type Channel struct {
	Name       string `json:"name"`
	Base       Base   `json:"base"`
	ReleasedAt string `json:"released-at"`
	Risk       string `json:"risk"`
	Track      string `json:"track"`
}

// Base is the particular distro version a revision was built for.
type Base struct {
	Architecture string `json:"architecture"`
	Name         string `json:"name"`
	Channel      string `json:"channel"`
}

// InfoRevision is different from FindRevision.  It has additional
// information, including the bases a revision supports.
type InfoRevision struct {
	CreatedAt string   `json:"created-at"`
	Download  Download `json:"download"`
	Bases     []Base   `json:"bases"`
	Revision  int      `json:"revision"`
	Version   string   `json:"version"`
}

// Download holds the size and verification hashes of an artefact.
type Download struct {
	HashSHA256 string `json:"hash-sha-256"`
	HashSHA384 string `json:"hash-sha-384"`
	Size       int    `json:"size"`
	URL        string `json:"url"`
}
