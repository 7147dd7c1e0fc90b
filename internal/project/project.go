// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package project reconciles one configured charm project against
// Launchpad: the git mirror, the project series, and above all the
// charm recipes, which are diffed field by field against what the
// fleet configuration declares.
package project

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/juju/loggo"

	"github.com/canonical/charmhub-lp-tool/internal/charm"
	"github.com/canonical/charmhub-lp-tool/internal/config"
	"github.com/canonical/charmhub-lp-tool/internal/launchpad"
)

var logger = loggo.GetLogger("charmhublptool.project")

// Launchpad is the part of the Launchpad client the reconciler needs.
type Launchpad interface {
	Person(ctx context.Context, name string) (*launchpad.Person, error)
	Project(ctx context.Context, name string) (*launchpad.Project, error)
	SetProjectVCS(ctx context.Context, project *launchpad.Project, vcs string) (*launchpad.Project, error)
	Series(ctx context.Context, project *launchpad.Project) ([]launchpad.ProjectSeries, error)
	NewSeries(ctx context.Context, project *launchpad.Project, spec launchpad.SeriesSpec) (*launchpad.ProjectSeries, error)

	RepositoryFor(ctx context.Context, owner *launchpad.Person, project *launchpad.Project) (*launchpad.GitRepository, error)
	SetDefaultRepository(ctx context.Context, project *launchpad.Project, repo *launchpad.GitRepository) error
	NewCodeImport(ctx context.Context, project *launchpad.Project, name, url string) (*launchpad.CodeImport, error)
	CodeImportFor(ctx context.Context, repo *launchpad.GitRepository) (*launchpad.CodeImport, error)
	RequestImport(ctx context.Context, ci *launchpad.CodeImport) error
	Branches(ctx context.Context, repo *launchpad.GitRepository) ([]launchpad.GitRef, error)

	RecipesFor(ctx context.Context, owner *launchpad.Person, project *launchpad.Project) ([]launchpad.CharmRecipe, error)
	CreateRecipe(ctx context.Context, spec launchpad.RecipeSpec) (*launchpad.CharmRecipe, error)
	UpdateRecipe(ctx context.Context, recipe *launchpad.CharmRecipe, updates map[string]interface{}) (*launchpad.CharmRecipe, error)
	DeleteRecipe(ctx context.Context, name string, owner *launchpad.Person, project *launchpad.Project) error
	Builds(ctx context.Context, recipe *launchpad.CharmRecipe) ([]launchpad.Build, error)
	BuildLog(ctx context.Context, build *launchpad.Build) (string, error)
	RequestBuilds(ctx context.Context, recipe *launchpad.CharmRecipe) (*launchpad.BuildRequest, error)
	BeginAuthorization(ctx context.Context, recipe *launchpad.CharmRecipe) (string, error)
	CompleteAuthorization(ctx context.Context, recipe *launchpad.CharmRecipe, discharge string) error
}

// Project binds one configured charm project to Launchpad. The team,
// project and repository lookups are cached for the lifetime of the
// value.
type Project struct {
	Config *config.Project

	lp  Launchpad
	out io.Writer

	team    *launchpad.Person
	project *launchpad.Project
	repo    *launchpad.GitRepository
}

// New creates a Project. Progress messages meant for the operator are
// written to out.
func New(cfg *config.Project, lp Launchpad, out io.Writer) *Project {
	return &Project{Config: cfg, lp: lp, out: out}
}

func (p *Project) printf(format string, args ...interface{}) {
	fmt.Fprintf(p.out, format+"\n", args...)
}

// Team returns the Launchpad team owning the project's recipes.
func (p *Project) Team(ctx context.Context) (*launchpad.Person, error) {
	if p.team == nil {
		team, err := p.lp.Person(ctx, p.Config.Team)
		if err != nil {
			return nil, errors.Trace(err)
		}
		p.team = team
	}
	return p.team, nil
}

// LaunchpadProject returns the Launchpad project.
func (p *Project) LaunchpadProject(ctx context.Context) (*launchpad.Project, error) {
	if p.project == nil {
		project, err := p.lp.Project(ctx, p.Config.Launchpad)
		if err != nil {
			return nil, errors.Trace(err)
		}
		p.project = project
	}
	return p.project, nil
}

// Repository returns the project's git repository owned by the team.
func (p *Project) Repository(ctx context.Context) (*launchpad.GitRepository, error) {
	if p.repo == nil {
		team, err := p.Team(ctx)
		if err != nil {
			return nil, errors.Trace(err)
		}
		project, err := p.LaunchpadProject(ctx)
		if err != nil {
			return nil, errors.Trace(err)
		}
		repo, err := p.lp.RepositoryFor(ctx, team, project)
		if err != nil {
			return nil, errors.Trace(err)
		}
		p.repo = repo
	}
	return p.repo, nil
}

// RecipeState classifies one declared recipe against Launchpad.
type RecipeState struct {
	// Name is the recipe name derived from the branch's template.
	Name string

	// Exists is true when Launchpad has a recipe of that name.
	Exists bool

	// Changed is true when the existing recipe differs from the
	// declared configuration.
	Changed bool

	// Current is the recipe as Launchpad has it, when it exists.
	Current *launchpad.CharmRecipe

	// Updates are the attribute changes a PATCH needs to apply.
	Updates map[string]interface{}

	// Changes describes each difference, for reports.
	Changes []string

	// Spec is the desired recipe, used for creation.
	Spec launchpad.RecipeSpec

	// Branch is the git ref the recipe builds from.
	Branch launchpad.GitRef

	// BranchConfig is the configuration the recipe is derived from.
	BranchConfig config.Branch

	// Track is the store track the recipe's channels target.
	Track string
}

// RecipeSet is the reconciliation plan for one project.
type RecipeSet struct {
	// Managed are the declared recipes, in branch/track order.
	Managed []RecipeState

	// Unmanaged are recipes present in Launchpad with no
	// corresponding configuration.
	Unmanaged []launchpad.CharmRecipe

	// MissingBranches are configured refs the repository does not
	// have.
	MissingBranches []string

	// UnconfiguredBranches are repository refs with no configuration.
	UnconfiguredBranches []string
}

// Changed reports whether applying the set would mutate Launchpad.
func (s *RecipeSet) Changed() bool {
	for _, state := range s.Managed {
		if !state.Exists || state.Changed {
			return true
		}
	}
	return false
}

// ComputeRecipes walks the repository branches and computes the
// reconciliation plan. A non-empty branch filter (short names,
// without refs/heads/) restricts the managed set while still keeping
// the filtered recipes out of the unmanaged list.
func (p *Project) ComputeRecipes(ctx context.Context, branchFilter []string) (*RecipeSet, error) {
	team, err := p.Team(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	project, err := p.LaunchpadProject(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	repo, err := p.Repository(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	refs, err := p.lp.Branches(ctx, repo)
	if err != nil {
		return nil, errors.Trace(err)
	}
	recipes, err := p.lp.RecipesFor(ctx, team, project)
	if err != nil {
		return nil, errors.Trace(err)
	}
	existing := make(map[string]*launchpad.CharmRecipe, len(recipes))
	for i := range recipes {
		existing[recipes[i].Name] = &recipes[i]
	}

	filter := set.NewStrings(branchFilter...)
	result := &RecipeSet{}
	mentioned := set.NewStrings()

	for _, ref := range refs {
		mentioned.Add(ref.Path)
		branchConfig, ok := p.Config.Branches[ref.Path]
		if !ok {
			logger.Infof("no tracks configured for branch %s, continuing", ref.Path)
			result.UnconfiguredBranches = append(result.UnconfiguredBranches, ref.Path)
			continue
		}

		// Filtered and disabled branches still claim their recipe
		// names so the recipes are not reported as unmanaged.
		skip := !branchConfig.Enabled ||
			(!filter.IsEmpty() && !filter.Contains(ref.BranchName()))

		branchName := strings.ReplaceAll(ref.BranchName(), "/", "-")
		tracks := trackGroups(branchConfig)
		for _, group := range tracks {
			recipeName := branchConfig.ExpandRecipeName(project.Name, branchName, group.Track)
			current := existing[recipeName]
			delete(existing, recipeName)
			if skip {
				continue
			}

			spec := launchpad.RecipeSpec{
				Name:              recipeName,
				Owner:             team,
				Project:           project,
				GitRef:            &ref,
				StoreName:         p.Config.Charmhub,
				StoreUpload:       branchConfig.Upload,
				StoreChannels:     group.Channels,
				AutoBuild:         branchConfig.AutoBuild,
				AutoBuildChannels: branchConfig.BuildChannels,
				BuildPath:         branchConfig.BuildPath,
			}
			state := RecipeState{
				Name:         recipeName,
				Spec:         spec,
				Branch:       ref,
				BranchConfig: branchConfig,
				Track:        group.Track,
			}
			if current != nil {
				changed, updates, changes := launchpad.DiffRecipe(current, spec)
				state.Exists = true
				state.Changed = changed
				state.Current = current
				state.Updates = updates
				state.Changes = changes
			}
			result.Managed = append(result.Managed, state)
		}
	}

	for name := range existing {
		result.Unmanaged = append(result.Unmanaged, *existing[name])
	}
	sort.Slice(result.Unmanaged, func(i, j int) bool {
		return result.Unmanaged[i].Name < result.Unmanaged[j].Name
	})

	for ref := range p.Config.Branches {
		if !mentioned.Contains(ref) {
			result.MissingBranches = append(result.MissingBranches, ref)
		}
	}
	sort.Strings(result.MissingBranches)
	return result, nil
}

// trackGroups returns the store tracks the branch publishes to, one
// recipe per track. A branch that does not upload (or declares no
// channels) still gets a single latest-track recipe with no channels.
func trackGroups(branch config.Branch) []charm.TrackChannels {
	if branch.Upload && len(branch.Channels) > 0 {
		return charm.GroupByTrack(branch.Channels)
	}
	return []charm.TrackChannels{{Track: charm.DefaultTrack}}
}
