// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package release

import (
	"context"
	"fmt"
	"reflect"
	"sort"

	"github.com/juju/collections/set"
	"github.com/juju/errors"

	"github.com/canonical/charmhub-lp-tool/internal/charm"
	"github.com/canonical/charmhub-lp-tool/internal/charmcraft"
)

// ActionKind describes what a clean or copy operation did.
type ActionKind string

const (
	// ReleaseAction released a revision into a channel.
	ReleaseAction ActionKind = "release"
	// CloseAction closed a channel.
	CloseAction ActionKind = "close"
	// SkipAction reports broken release state that cannot be
	// repaired automatically.
	SkipAction ActionKind = "skip"
)

// Action is one store mutation performed (or planned, in dry-run) by
// a channel operation.
type Action struct {
	Kind      ActionKind
	Charm     string
	Channel   string
	Revision  int
	Resources []charmcraft.Resource
	Reason    string
}

func (a Action) String() string {
	switch a.Kind {
	case ReleaseAction:
		return fmt.Sprintf("release %s revision %d into %s (%s)",
			a.Charm, a.Revision, a.Channel, a.Reason)
	case CloseAction:
		return fmt.Sprintf("close %s channel %s (%s)", a.Charm, a.Channel, a.Reason)
	case SkipAction:
		return fmt.Sprintf("skip %s revision %d in %s (%s)",
			a.Charm, a.Revision, a.Channel, a.Reason)
	}
	return fmt.Sprintf("%s %s %s", a.Kind, a.Charm, a.Channel)
}

// Manager performs channel-level operations for one charm.
type Manager struct {
	store    Store
	releaser Releaser
}

// NewManager creates a Manager.
func NewManager(store Store, releaser Releaser) *Manager {
	return &Manager{store: store, releaser: releaser}
}

// CopyChannel releases every revision published in src for the base
// into dst, carrying each revision's resources along. It returns the
// copied revisions in ascending order.
func (m *Manager) CopyChannel(ctx context.Context, charmName string, src, dst charm.Channel, base string) ([]int, error) {
	source := NewCharmChannel(m.store, charmName, src)
	revisions, err := source.Revisions(ctx, base, "")
	if err != nil {
		return nil, errors.Trace(err)
	}

	var copied []int
	for _, revision := range revisions {
		resources, err := source.Resources(ctx, revision)
		if err != nil {
			return nil, errors.Trace(err)
		}
		logger.Infof("releasing %s revision %d into channel %s",
			charmName, revision, dst)
		if err := m.releaser.Release(ctx, charmName, revision, dst.String(), resources); err != nil {
			return nil, errors.Annotatef(err, "copying revision %d to %q", revision, dst)
		}
		copied = append(copied, revision)
	}
	return copied, nil
}

// CleanChannel repairs the release state of a channel:
//
//   - where a base/arch cell carries more than one revision, the
//     highest revision is re-released so it is the current one;
//   - where the current release is missing resources the charm's
//     other releases carry, the revision is re-released with the
//     newest store revision of each missing resource; a resource
//     with no uploaded revisions at all is reported as a skip since
//     re-releasing without it would change nothing;
//   - where the whole channel duplicates a more stable risk of the
//     same track, the channel is closed, unless the configuration
//     lists it as an allowed duplicate.
//
// The actions taken are returned; with a dry-run releaser nothing is
// mutated.
func (m *Manager) CleanChannel(ctx context.Context, charmName string, channel charm.Channel, bases []string, allowedDuplicates []string) ([]Action, error) {
	target := NewCharmChannel(m.store, charmName, channel)

	duplicateOf, err := m.duplicateOf(ctx, target, allowedDuplicates)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if duplicateOf != "" {
		action := Action{
			Kind:    CloseAction,
			Charm:   charmName,
			Channel: channel.String(),
			Reason:  fmt.Sprintf("duplicates %s", duplicateOf),
		}
		logger.Infof("%s", action)
		if err := m.releaser.Close(ctx, charmName, channel.String()); err != nil {
			return nil, errors.Trace(err)
		}
		return []Action{action}, nil
	}

	pivot, err := target.RevisionsByBase(ctx, bases, nil)
	if err != nil {
		return nil, errors.Trace(err)
	}
	required, err := target.requiredResources(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}

	// The same highest revision may win several cells; release it
	// once.
	released := set.NewInts()
	var actions []Action
	for _, base := range sortedKeys(pivot) {
		for _, arch := range sortedKeys(pivot[base]) {
			revisions := pivot[base][arch]
			highest := revisions[len(revisions)-1]
			resources, err := target.Resources(ctx, highest)
			if err != nil {
				return nil, errors.Trace(err)
			}

			var reason string
			if len(revisions) > 1 {
				reason = fmt.Sprintf("%d revisions released for %s/%s, keeping the highest", len(revisions), base, arch)
			} else if missing := missingResources(required, resources); len(missing) > 0 {
				resolved, unresolved, err := m.resolveResources(ctx, charmName, missing)
				if err != nil {
					return nil, errors.Trace(err)
				}
				if len(unresolved) > 0 {
					action := Action{
						Kind:     SkipAction,
						Charm:    charmName,
						Channel:  channel.String(),
						Revision: highest,
						Reason: fmt.Sprintf("release for %s/%s is missing resources %v with no uploaded revisions",
							base, arch, unresolved),
					}
					logger.Warningf("%s", action)
					actions = append(actions, action)
					continue
				}
				resources = append(resources, resolved...)
				sort.Slice(resources, func(i, j int) bool {
					return resources[i].Name < resources[j].Name
				})
				reason = fmt.Sprintf("release for %s/%s is missing resources %v", base, arch, missing)
			} else {
				continue
			}
			if released.Contains(highest) {
				continue
			}
			released.Add(highest)

			action := Action{
				Kind:      ReleaseAction,
				Charm:     charmName,
				Channel:   channel.String(),
				Revision:  highest,
				Resources: resources,
				Reason:    reason,
			}
			logger.Infof("%s", action)
			if err := m.releaser.Release(ctx, charmName, highest, channel.String(), resources); err != nil {
				return nil, errors.Annotatef(err, "re-releasing revision %d", highest)
			}
			actions = append(actions, action)
		}
	}
	return actions, nil
}

// duplicateOf returns the more stable channel of the same track the
// target duplicates, or "" when the target carries its own releases
// or is allowed to duplicate.
func (m *Manager) duplicateOf(ctx context.Context, target *CharmChannel, allowedDuplicates []string) (string, error) {
	if set.NewStrings(allowedDuplicates...).Contains(target.Channel.String()) {
		return "", nil
	}
	targetPivot, err := target.RevisionsByBase(ctx, nil, nil)
	if err != nil {
		return "", errors.Trace(err)
	}
	if len(targetPivot) == 0 {
		return "", nil
	}

	targetIndex := riskIndex(target.Channel.Risk)
	for _, risk := range charm.Risks {
		// Only more stable risks are candidates to be duplicated.
		if riskIndex(risk) >= targetIndex {
			break
		}
		sibling := NewCharmChannel(m.store, target.Charm, charm.Channel{
			Track: target.Channel.Track,
			Risk:  risk,
		})
		sibling.info = target.info
		siblingPivot, err := sibling.RevisionsByBase(ctx, nil, nil)
		if err != nil {
			return "", errors.Trace(err)
		}
		if reflect.DeepEqual(targetPivot, siblingPivot) {
			return sibling.Channel.String(), nil
		}
	}
	return "", nil
}

// resolveResources looks up the newest uploaded revision of each
// named resource. Resources with no revisions in the store at all
// are returned in unresolved.
func (m *Manager) resolveResources(ctx context.Context, charmName string, names []string) ([]charmcraft.Resource, []string, error) {
	var resolved []charmcraft.Resource
	var unresolved []string
	for _, name := range names {
		revisions, err := m.store.ListResourceRevisions(ctx, charmName, name)
		if err != nil {
			return nil, nil, errors.Annotatef(err, "listing revisions of resource %q", name)
		}
		newest := -1
		for _, revision := range revisions {
			if revision.Revision > newest {
				newest = revision.Revision
			}
		}
		if newest < 0 {
			unresolved = append(unresolved, name)
			continue
		}
		resolved = append(resolved, charmcraft.Resource{Name: name, Revision: newest})
	}
	return resolved, unresolved, nil
}

func riskIndex(risk charm.Risk) int {
	for i, r := range charm.Risks {
		if r == risk {
			return i
		}
	}
	return len(charm.Risks)
}

func missingResources(required set.Strings, resources []charmcraft.Resource) []string {
	have := set.NewStrings()
	for _, resource := range resources {
		have.Add(resource.Name)
	}
	return required.Difference(have).SortedValues()
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
