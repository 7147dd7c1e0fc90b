// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package project

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/juju/collections/set"
	"github.com/juju/errors"

	"github.com/canonical/charmhub-lp-tool/internal/launchpad"
)

// BuildInfo pairs a build with the recipe that produced it.
type BuildInfo struct {
	Recipe launchpad.CharmRecipe
	Build  launchpad.Build

	// Series and Arch are derived from the build's distro arch
	// series.
	Series string
	Arch   string

	// Errors holds the log lines matching the known error patterns,
	// when the query asked for error detection.
	Errors []string
}

// BuildQuery selects which builds to report on. Empty filter slices
// match everything. With DetectErrors set, the log of every
// unsuccessful build is downloaded and scanned for error lines.
type BuildQuery struct {
	Channels     []string
	Arches       []string
	DetectErrors bool
}

// buildErrorPattern matches the log lines worth surfacing from a
// failed build.
var buildErrorPattern = regexp.MustCompile(`(ERROR|ModuleNotFoundError)`)

// Builds returns the most recent build per series/arch cell of every
// recipe whose store channels intersect the queried ones. Only builds
// of each recipe's newest revision are considered.
func (p *Project) Builds(ctx context.Context, query BuildQuery) ([]BuildInfo, error) {
	team, err := p.Team(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	project, err := p.LaunchpadProject(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	recipes, err := p.lp.RecipesFor(ctx, team, project)
	if err != nil {
		return nil, errors.Trace(err)
	}
	sort.Slice(recipes, func(i, j int) bool {
		return recipes[i].Name < recipes[j].Name
	})

	wantChannels := set.NewStrings(query.Channels...)
	wantArches := set.NewStrings(query.Arches...)

	var result []BuildInfo
	for i := range recipes {
		recipe := recipes[i]
		if !wantChannels.IsEmpty() &&
			wantChannels.Intersection(set.NewStrings(recipe.StoreChannels...)).IsEmpty() {
			continue
		}
		builds, err := p.lp.Builds(ctx, &recipe)
		if err != nil {
			return nil, errors.Annotatef(err, "builds of recipe %s", recipe.Name)
		}

		// Builds come newest first. Stop at the first older revision
		// and keep the latest build per series/arch.
		latest := make(map[string]BuildInfo)
		revision := ""
		for _, build := range builds {
			if revision == "" {
				revision = build.RevisionID
			} else if build.RevisionID != revision {
				break
			}
			series, arch := build.DistroArchSeries()
			if !wantArches.IsEmpty() && !wantArches.Contains(arch) {
				continue
			}
			key := series + "/" + arch
			if prev, ok := latest[key]; ok && !buildAfter(build, prev.Build) {
				continue
			}
			latest[key] = BuildInfo{
				Recipe: recipe,
				Build:  build,
				Series: series,
				Arch:   arch,
			}
		}
		for _, key := range sortedBuildKeys(latest) {
			info := latest[key]
			if query.DetectErrors && info.Build.BuildState != launchpad.BuildSuccessful {
				info.Errors = p.detectBuildErrors(ctx, &info.Build)
			}
			result = append(result, info)
		}
	}
	return result, nil
}

// detectBuildErrors downloads the build's log and returns the lines
// matching the known error patterns. An unreadable log is reported as
// a warning rather than failing the whole report.
func (p *Project) detectBuildErrors(ctx context.Context, build *launchpad.Build) []string {
	if build.BuildLogURL == "" {
		return nil
	}
	log, err := p.lp.BuildLog(ctx, build)
	if err != nil {
		logger.Warningf("cannot fetch build log %s: %v", build.BuildLogURL, err)
		return nil
	}
	var matched []string
	for _, line := range strings.Split(log, "\n") {
		if buildErrorPattern.MatchString(line) {
			matched = append(matched, strings.TrimRight(line, "\r"))
		}
	}
	return matched
}

func buildAfter(a, b launchpad.Build) bool {
	switch {
	case a.DateBuilt == nil:
		return false
	case b.DateBuilt == nil:
		return true
	default:
		return a.DateBuilt.After(*b.DateBuilt)
	}
}

func sortedBuildKeys(m map[string]BuildInfo) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// buildValid reports whether a build is in a healthy state for its
// recipe. A build that should have uploaded but has no store revision,
// a failed build or upload, and any build of a stale recipe all count
// as invalid.
func buildValid(recipe *launchpad.CharmRecipe, build *launchpad.Build) bool {
	if recipe.CanUploadToStore && build.StoreUploadRevision == nil {
		switch build.BuildState {
		case launchpad.BuildCurrently, launchpad.BuildUploading, launchpad.BuildNeedsBuild:
		default:
			return false
		}
	}
	switch build.BuildState {
	case launchpad.BuildFailed, launchpad.BuildFailedUpload:
		return false
	}
	return !recipe.IsStale
}

// RequestBuilds requests fresh builds for the managed recipes of the
// given branches (all branches when empty). Unless force is set, only
// recipes whose newest builds are missing or unhealthy are rebuilt.
// The names of the recipes a build was requested for are returned.
func (p *Project) RequestBuilds(ctx context.Context, branches []string, force, dryRun bool) ([]string, error) {
	plan, err := p.ComputeRecipes(ctx, branches)
	if err != nil {
		return nil, errors.Trace(err)
	}

	var requested []string
	for _, state := range plan.Managed {
		if !state.Exists {
			logger.Infof("recipe %s does not exist yet, skipping build request", state.Name)
			continue
		}
		if !force {
			needed, err := p.buildNeeded(ctx, state.Current)
			if err != nil {
				return nil, errors.Trace(err)
			}
			if !needed {
				logger.Debugf("recipe %s has healthy builds, skipping", state.Name)
				continue
			}
		}
		p.printf("Requesting builds of %s", state.Name)
		if !dryRun {
			if _, err := p.lp.RequestBuilds(ctx, state.Current); err != nil {
				return nil, errors.Annotatef(err, "requesting builds of %s", state.Name)
			}
		}
		requested = append(requested, state.Name)
	}
	return requested, nil
}

// buildNeeded reports whether the recipe's newest revision lacks a
// valid build.
func (p *Project) buildNeeded(ctx context.Context, recipe *launchpad.CharmRecipe) (bool, error) {
	builds, err := p.lp.Builds(ctx, recipe)
	if err != nil {
		return false, errors.Annotatef(err, "builds of recipe %s", recipe.Name)
	}
	if len(builds) == 0 {
		return true, nil
	}
	revision := builds[0].RevisionID
	for _, build := range builds {
		if build.RevisionID != revision {
			break
		}
		if !buildValid(recipe, &build) {
			return true, nil
		}
	}
	return false, nil
}
