// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package charm holds the Charmhub channel domain types shared by the
// Launchpad recipe reconciler and the release tooling.
package charm

import (
	"fmt"
	"strings"

	"github.com/juju/errors"
)

// Risk describes the type of risk in a store channel.
type Risk string

const (
	Stable    Risk = "stable"
	Candidate Risk = "candidate"
	Beta      Risk = "beta"
	Edge      Risk = "edge"
)

// Risks is a list of the available channel risks.
var Risks = []Risk{
	Stable,
	Candidate,
	Beta,
	Edge,
}

// DefaultTrack is the track assumed when a channel is given as a bare
// risk, e.g. "edge" meaning "latest/edge".
const DefaultTrack = "latest"

func isRisk(potential string) bool {
	for _, risk := range Risks {
		if potential == string(risk) {
			return true
		}
	}
	return false
}

// Channel identifies completely a store channel.
//
// A channel consists of a track and a risk-level:
//   - Tracks enable publishing multiple supported releases of a charm
//     under the same name.
//   - Risk-levels represent a progressive potential trade-off between
//     stability and new features.
//
// The complete channel name is structured as two distinct parts
// separated by a slash:
//
//	<track>/<risk>
type Channel struct {
	Track string `json:"track,omitempty"`
	Risk  Risk   `json:"risk,omitempty"`
}

// MakeChannel creates a Channel from a set of component parts.
func MakeChannel(track, risk string) (Channel, error) {
	if !isRisk(risk) {
		return Channel{}, errors.NotValidf("risk %q", risk)
	}
	if track == "" {
		track = DefaultTrack
	}
	return Channel{
		Track: track,
		Risk:  Risk(risk),
	}, nil
}

// ParseChannel parses a string representing a store channel. A bare
// risk implies the "latest" track, and a bare track implies the
// "stable" risk, matching how the store itself expands short names.
func ParseChannel(s string) (Channel, error) {
	if s == "" {
		return Channel{}, errors.NotValidf("empty channel")
	}

	p := strings.Split(s, "/")
	switch len(p) {
	case 1:
		if isRisk(p[0]) {
			return Channel{Track: DefaultTrack, Risk: Risk(p[0])}, nil
		}
		return Channel{Track: p[0], Risk: Stable}, nil
	case 2:
		if p[0] == "" {
			return Channel{}, errors.NotValidf("track in channel %q", s)
		}
		if !isRisk(p[1]) {
			return Channel{}, errors.NotValidf("risk in channel %q", s)
		}
		return Channel{Track: p[0], Risk: Risk(p[1])}, nil
	default:
		return Channel{}, errors.Errorf("channel is malformed and has too many components %q", s)
	}
}

// MustParseChannel parses a store channel, panicking on malformed
// input. For constants and tests.
func MustParseChannel(s string) Channel {
	channel, err := ParseChannel(s)
	if err != nil {
		panic(err)
	}
	return channel
}

// Empty returns true if all of the channel's components are empty.
func (ch Channel) Empty() bool {
	return ch.Track == "" && ch.Risk == ""
}

func (ch Channel) String() string {
	path := string(ch.Risk)
	if track := ch.Track; track != "" {
		path = fmt.Sprintf("%s/%s", track, path)
	}
	return path
}

// Track returns the track component of a channel name without
// validating the risk. A name with no slash is treated as a bare track.
func Track(name string) string {
	if i := strings.Index(name, "/"); i >= 0 {
		return name[:i]
	}
	return name
}

// GroupByTrack groups fully qualified channel names by their track,
// preserving the order in which tracks first appear. The store only
// allows a recipe to target a single track, with one or more
// risk-levels within it, so a branch that publishes to two tracks
// needs two recipes.
func GroupByTrack(channels []string) []TrackChannels {
	var groups []TrackChannels
	index := make(map[string]int)
	for _, channel := range channels {
		track := Track(channel)
		if i, ok := index[track]; ok {
			groups[i].Channels = append(groups[i].Channels, channel)
			continue
		}
		index[track] = len(groups)
		groups = append(groups, TrackChannels{
			Track:    track,
			Channels: []string{channel},
		})
	}
	return groups
}

// TrackChannels holds the channels of a single track, in declaration
// order.
type TrackChannels struct {
	Track    string
	Channels []string
}
