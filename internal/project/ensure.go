// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package project

import (
	"context"
	"strings"

	"github.com/juju/collections/set"
	"github.com/juju/errors"

	"github.com/canonical/charmhub-lp-tool/internal/config"
	"github.com/canonical/charmhub-lp-tool/internal/launchpad"
)

// EnsureOptions controls how far EnsureRecipes goes.
type EnsureOptions struct {
	// DryRun reports what would change without touching Launchpad.
	DryRun bool

	// RemoveUnknown deletes recipes Launchpad has but the
	// configuration does not declare.
	RemoveUnknown bool

	// Branches restricts reconciliation to the named branches (short
	// names, without refs/heads/).
	Branches []string
}

// EnsureRecipes brings the project's Launchpad recipes in line with
// the configuration: creating the missing ones, patching the drifted
// ones and, when asked, deleting the unknown ones. The applied plan
// is returned for reporting.
func (p *Project) EnsureRecipes(ctx context.Context, opts EnsureOptions) (*RecipeSet, error) {
	plan, err := p.ComputeRecipes(ctx, opts.Branches)
	if err != nil {
		return nil, errors.Trace(err)
	}
	for _, missing := range plan.MissingBranches {
		p.printf("WARNING: configured branch %s not found in repository for %s", missing, p.Config.Name)
	}

	for i := range plan.Managed {
		state := &plan.Managed[i]
		switch {
		case !state.Exists:
			p.printf("Creating recipe %s", state.Name)
			if opts.DryRun {
				continue
			}
			recipe, err := p.lp.CreateRecipe(ctx, state.Spec)
			if err != nil {
				return nil, errors.Annotatef(err, "creating recipe %s", state.Name)
			}
			state.Exists = true
			state.Current = recipe
		case state.Changed:
			p.printf("Updating recipe %s:", state.Name)
			for _, change := range state.Changes {
				p.printf("  %s", change)
			}
			if opts.DryRun {
				continue
			}
			recipe, err := p.lp.UpdateRecipe(ctx, state.Current, state.Updates)
			if err != nil {
				return nil, errors.Annotatef(err, "updating recipe %s", state.Name)
			}
			state.Changed = false
			state.Current = recipe
		default:
			logger.Debugf("recipe %s is up to date", state.Name)
		}
	}

	if opts.RemoveUnknown {
		team, err := p.Team(ctx)
		if err != nil {
			return nil, errors.Trace(err)
		}
		project, err := p.LaunchpadProject(ctx)
		if err != nil {
			return nil, errors.Trace(err)
		}
		for _, recipe := range plan.Unmanaged {
			p.printf("Deleting unknown recipe %s", recipe.Name)
			if opts.DryRun {
				continue
			}
			if err := p.lp.DeleteRecipe(ctx, recipe.Name, team, project); err != nil {
				return nil, errors.Annotatef(err, "deleting recipe %s", recipe.Name)
			}
		}
	} else {
		for _, recipe := range plan.Unmanaged {
			p.printf("WARNING: unknown recipe %s (use remove-unknown to delete)", recipe.Name)
		}
	}
	return plan, nil
}

// EnsureRepository makes sure the team owns a git mirror of the
// upstream repository, registered as the project's default and kept
// importing. A missing mirror is created as a code import of the
// configured upstream URL.
func (p *Project) EnsureRepository(ctx context.Context, dryRun bool) error {
	team, err := p.Team(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	project, err := p.LaunchpadProject(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	if project.OwnerLink != team.SelfLink {
		return errors.Errorf("project %s is not owned by team %s", project.Name, team.Name)
	}

	repo, err := p.lp.RepositoryFor(ctx, team, project)
	if errors.IsNotFound(err) {
		p.printf("Creating code import for %s from %s", project.Name, p.Config.Repository)
		if dryRun {
			return nil
		}
		if _, err := p.lp.NewCodeImport(ctx, project, project.Name, p.Config.Repository); err != nil {
			return errors.Annotatef(err, "importing repository for %s", project.Name)
		}
		repo, err = p.lp.RepositoryFor(ctx, team, project)
		if err != nil {
			return errors.Trace(err)
		}
		p.repo = repo
	} else if err != nil {
		return errors.Trace(err)
	}

	if !repo.TargetDefault {
		p.printf("Setting %s as default repository for %s", repo.Name, project.Name)
		if !dryRun {
			if err := p.lp.SetDefaultRepository(ctx, project, repo); err != nil {
				// Needs launchpad admin rights in some setups, so
				// report and carry on.
				logger.Errorf("cannot set default repository for %s: %v", project.Name, err)
			}
		}
	}
	if project.VCS == "" {
		p.printf("Setting VCS of %s to Git", project.Name)
		if !dryRun {
			updated, err := p.lp.SetProjectVCS(ctx, project, "Git")
			if err != nil {
				return errors.Annotatef(err, "setting VCS for %s", project.Name)
			}
			p.project = updated
		}
	}
	return nil
}

// RequestMirrorImport asks Launchpad to refresh the code import
// backing the project's repository.
func (p *Project) RequestMirrorImport(ctx context.Context) error {
	repo, err := p.Repository(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	ci, err := p.lp.CodeImportFor(ctx, repo)
	if err != nil {
		return errors.Trace(err)
	}
	p.printf("Requesting import of %s", ci.URL)
	return errors.Trace(p.lp.RequestImport(ctx, ci))
}

// EnsureSeries creates the project series the branch configuration
// declares. A branch declares a series by carrying a series title or
// summary; the series name is the branch's track.
func (p *Project) EnsureSeries(ctx context.Context, dryRun bool, branchFilter []string) error {
	project, err := p.LaunchpadProject(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	series, err := p.lp.Series(ctx, project)
	if err != nil {
		return errors.Trace(err)
	}
	existing := set.NewStrings()
	for _, s := range series {
		existing.Add(s.Name)
	}

	filter := set.NewStrings(branchFilter...)
	for _, ref := range p.Config.BranchNames() {
		branch := p.Config.Branches[ref]
		short := strings.TrimPrefix(ref, config.BranchPrefix)
		if !filter.IsEmpty() && !filter.Contains(short) {
			continue
		}
		if branch.SeriesTitle == "" && branch.SeriesSummary == "" {
			continue
		}
		for _, group := range trackGroups(branch) {
			if existing.Contains(group.Track) {
				logger.Debugf("series %s already exists for %s", group.Track, project.Name)
				continue
			}
			spec := launchpad.SeriesSpec{
				Name:    group.Track,
				Title:   branch.SeriesTitle,
				Summary: branch.SeriesSummary,
				Status:  branch.SeriesStatus,
				Active:  branch.SeriesActive,
			}
			if spec.Status == "" {
				spec.Status = config.DefaultSeriesStatus
			}
			p.printf("Creating series %s for %s", spec.Name, project.Name)
			if dryRun {
				continue
			}
			if _, err := p.lp.NewSeries(ctx, project, spec); err != nil {
				return errors.Annotatef(err, "creating series %s", spec.Name)
			}
			existing.Add(group.Track)
		}
	}
	return nil
}

// DeleteRecipeByName deletes the named recipe.
func (p *Project) DeleteRecipeByName(ctx context.Context, name string, dryRun bool) error {
	team, err := p.Team(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	project, err := p.LaunchpadProject(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	p.printf("Deleting recipe %s", name)
	if dryRun {
		return nil
	}
	return errors.Trace(p.lp.DeleteRecipe(ctx, name, team, project))
}

// DeleteRecipeByBranchAndTrack deletes the recipe the default naming
// scheme gives a branch and track pair.
func (p *Project) DeleteRecipeByBranchAndTrack(ctx context.Context, branch, track string, dryRun bool) error {
	project, err := p.LaunchpadProject(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	branch = strings.ReplaceAll(strings.TrimPrefix(branch, config.BranchPrefix), "/", "-")
	name := config.Branch{RecipeName: config.DefaultRecipeName}.ExpandRecipeName(project.Name, branch, track)
	return errors.Trace(p.DeleteRecipeByName(ctx, name, dryRun))
}
