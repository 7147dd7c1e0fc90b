// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package release resolves what is actually published in a charm's
// channels: which revisions are released per base and architecture,
// and which resource revisions accompanied them. On top of that it
// implements copying channels and cleaning up bad release state.
package release

import (
	"context"
	"sort"

	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/juju/naturalsort"

	"github.com/canonical/charmhub-lp-tool/internal/charm"
	"github.com/canonical/charmhub-lp-tool/internal/charmcraft"
	"github.com/canonical/charmhub-lp-tool/internal/charmhub/transport"
)

var logger = loggo.GetLogger("charmhublptool.release")

// Store is the part of the Charmhub client the release logic needs.
type Store interface {
	Info(ctx context.Context, name string) (transport.InfoResponse, error)
	ListResourceRevisions(ctx context.Context, charm, resource string) ([]transport.ResourceRevision, error)
}

// Releaser performs the store mutations, normally by running
// charmcraft.
type Releaser interface {
	Release(ctx context.Context, charm string, revision int, channel string, resources []charmcraft.Resource) error
	Close(ctx context.Context, charm, channel string) error
}

// CharmChannel is one channel (track/risk) of one charm, with the
// charm's channel map fetched once and interrogated many times.
type CharmChannel struct {
	Charm   string
	Channel charm.Channel

	store Store
	info  *transport.InfoResponse
}

// NewCharmChannel creates a CharmChannel backed by the store.
func NewCharmChannel(store Store, charmName string, channel charm.Channel) *CharmChannel {
	return &CharmChannel{
		Charm:   charmName,
		Channel: channel,
		store:   store,
	}
}

func (c *CharmChannel) String() string {
	return c.Channel.String()
}

// channelMap returns the charm's full channel map, cached.
func (c *CharmChannel) channelMap(ctx context.Context) ([]transport.InfoChannelMap, error) {
	if c.info == nil {
		info, err := c.store.Info(ctx, c.Charm)
		if err != nil {
			return nil, errors.Trace(err)
		}
		c.info = &info
	}
	return c.info.ChannelMap, nil
}

// matches reports whether the channel map entry belongs to this
// track and risk.
func (c *CharmChannel) matches(entry transport.InfoChannelMap) bool {
	return entry.Channel.Track == c.Channel.Track &&
		entry.Channel.Risk == string(c.Channel.Risk)
}

// Bases returns the base channels (e.g. "20.04") the channel has
// releases for, in natural order.
func (c *CharmChannel) Bases(ctx context.Context) ([]string, error) {
	channelMap, err := c.channelMap(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	bases := set.NewStrings()
	for _, entry := range channelMap {
		if c.matches(entry) {
			bases.Add(entry.Channel.Base.Channel)
		}
	}
	sorted := bases.Values()
	naturalsort.Sort(sorted)
	return sorted, nil
}

// Revisions returns the revisions released in the channel for the
// base, sorted ascending. A non-empty arch restricts the result to
// revisions built for that architecture.
func (c *CharmChannel) Revisions(ctx context.Context, base, arch string) ([]int, error) {
	channelMap, err := c.channelMap(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	revisions := set.NewInts()
	for _, entry := range channelMap {
		if !c.matches(entry) || entry.Channel.Base.Channel != base {
			continue
		}
		if arch != "" && !revisionHasArch(entry.Revision, arch) {
			continue
		}
		logger.Debugf("%s: base=%s revision=%d channel=%s/%s",
			c.Charm, base, entry.Revision.Revision,
			entry.Channel.Track, entry.Channel.Risk)
		revisions.Add(entry.Revision.Revision)
	}
	return revisions.SortedValues(), nil
}

func revisionHasArch(revision transport.InfoRevision, arch string) bool {
	for _, base := range revision.Bases {
		if base.Architecture == arch {
			return true
		}
	}
	return false
}

// RevisionsByBase pivots the channel's releases into base ->
// architecture -> sorted revisions. Empty filter slices select
// everything.
func (c *CharmChannel) RevisionsByBase(ctx context.Context, bases, arches []string) (map[string]map[string][]int, error) {
	channelMap, err := c.channelMap(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	baseFilter := set.NewStrings(bases...)
	archFilter := set.NewStrings(arches...)

	pivot := make(map[string]map[string]set.Ints)
	for _, entry := range channelMap {
		if !c.matches(entry) {
			continue
		}
		base := entry.Channel.Base.Channel
		if !baseFilter.IsEmpty() && !baseFilter.Contains(base) {
			continue
		}
		for _, revisionBase := range entry.Revision.Bases {
			arch := revisionBase.Architecture
			if !archFilter.IsEmpty() && !archFilter.Contains(arch) {
				continue
			}
			if pivot[base] == nil {
				pivot[base] = make(map[string]set.Ints)
			}
			if _, ok := pivot[base][arch]; !ok {
				pivot[base][arch] = set.NewInts()
			}
			pivot[base][arch].Add(entry.Revision.Revision)
		}
	}

	results := make(map[string]map[string][]int, len(pivot))
	for base, byArch := range pivot {
		results[base] = make(map[string][]int, len(byArch))
		for arch, revisions := range byArch {
			results[base][arch] = revisions.SortedValues()
		}
	}
	return results, nil
}

// Resources returns the resource revisions that accompanied the
// given charm revision's release in this channel. When the same
// resource appears more than once the newest revision wins.
func (c *CharmChannel) Resources(ctx context.Context, revision int) ([]charmcraft.Resource, error) {
	channelMap, err := c.channelMap(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	newest := make(map[string]int)
	for _, entry := range channelMap {
		if entry.Revision.Revision != revision {
			continue
		}
		for _, resource := range entry.Resources {
			if current, ok := newest[resource.Name]; !ok || resource.Revision > current {
				newest[resource.Name] = resource.Revision
			}
		}
	}
	resources := make([]charmcraft.Resource, 0, len(newest))
	for name, rev := range newest {
		resources = append(resources, charmcraft.Resource{Name: name, Revision: rev})
	}
	sort.Slice(resources, func(i, j int) bool {
		return resources[i].Name < resources[j].Name
	})
	return resources, nil
}

// requiredResources returns the names of the resources the charm
// releases carry anywhere in its channel map. A release missing one
// of these is broken, since clients deploying from the channel will
// fail to resolve the attachment.
func (c *CharmChannel) requiredResources(ctx context.Context) (set.Strings, error) {
	channelMap, err := c.channelMap(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	names := set.NewStrings()
	for _, entry := range channelMap {
		for _, resource := range entry.Resources {
			names.Add(resource.Name)
		}
	}
	return names, nil
}
