// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package config loads the declarative fleet configuration: a
// directory of project group YAML files, each declaring defaults and
// a list of charm projects with their build branches.
package config

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/juju/schema"
	"gopkg.in/yaml.v2"
)

var logger = loggo.GetLogger("charmhublptool.config")

// DefaultRecipeName is the template recipe names are derived from
// when a branch does not override it.
const DefaultRecipeName = "{project}.{branch}.{track}"

// DefaultSeriesStatus is the status a new project series is created
// with unless the branch says otherwise.
const DefaultSeriesStatus = "Active Development"

// BranchPrefix is prepended to the branch names used as keys in the
// configuration, matching the ref paths Launchpad reports.
const BranchPrefix = "refs/heads/"

// Branch holds the recipe configuration of a single git branch.
type Branch struct {
	// Channels are the fully qualified channels (track/risk) the
	// builds of this branch are released into.
	Channels []string

	// BuildChannels overrides the channels the Launchpad builder
	// fetches its tooling snaps from, keyed by snap or base name.
	BuildChannels map[string]string

	// BuildPath is the subdirectory holding the charm, for
	// repositories carrying more than one.
	BuildPath string

	// AutoBuild requests a build whenever the branch changes.
	AutoBuild bool

	// Upload pushes successful builds to the store.
	Upload bool

	// RecipeName is the template the recipe name is derived from.
	// {project}, {branch} and {track} are substituted.
	RecipeName string

	// Enabled gates the branch without removing its configuration.
	Enabled bool

	// Bases are the base channels (e.g. "22.04") the charm supports
	// on this branch.
	Bases []string

	// DuplicateChannels are channels that legitimately carry the same
	// revision as another channel of the track.
	DuplicateChannels []string

	SeriesTitle   string
	SeriesSummary string
	SeriesStatus  string
	SeriesActive  bool
}

// ExpandRecipeName renders the branch's recipe name template.
func (b Branch) ExpandRecipeName(project, branch, track string) string {
	return strings.NewReplacer(
		"{project}", project,
		"{branch}", branch,
		"{track}", track,
	).Replace(b.RecipeName)
}

// Project is one charm project of a group.
type Project struct {
	// Name is the human friendly name of the project.
	Name string

	// Charmhub is the name of the charm in the store.
	Charmhub string

	// Launchpad is the Launchpad project name.
	Launchpad string

	// Repository is the upstream URL mirrored into Launchpad.
	Repository string

	// Team owns the repository and the recipes.
	Team string

	// ProjectGroup is the stem of the group file the project was
	// loaded from.
	ProjectGroup string

	// Branches maps ref paths (refs/heads/...) to their recipe
	// configuration.
	Branches map[string]Branch
}

// BranchNames returns the configured ref paths, sorted.
func (p *Project) BranchNames() []string {
	names := make([]string, 0, len(p.Branches))
	for name := range p.Branches {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GroupConfig aggregates the projects of one or more group files,
// keeping first-seen order.
type GroupConfig struct {
	projects []*Project
	byName   map[string]*Project
}

// NewGroupConfig returns an empty group config.
func NewGroupConfig() *GroupConfig {
	return &GroupConfig{byName: make(map[string]*Project)}
}

// Projects returns the projects in load order. A non-empty select
// list filters by Launchpad or Charmhub name.
func (g *GroupConfig) Projects(selected ...string) []*Project {
	if len(selected) == 0 {
		return g.projects
	}
	want := make(map[string]bool, len(selected))
	for _, name := range selected {
		want[name] = true
	}
	var matched []*Project
	for _, project := range g.projects {
		if want[project.Launchpad] || want[project.Charmhub] {
			matched = append(matched, project)
		}
	}
	return matched
}

// Project returns the named project, by its friendly name.
func (g *GroupConfig) Project(name string) (*Project, bool) {
	project, ok := g.byName[name]
	return project, ok
}

// LoadDirectory loads group files from dir. With no group names every
// *.yaml file is loaded; otherwise exactly the named groups, which
// must exist.
func LoadDirectory(dir string, groups ...string) (*GroupConfig, error) {
	var files []string
	if len(groups) == 0 {
		matches, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
		if err != nil {
			return nil, errors.Trace(err)
		}
		sort.Strings(matches)
		files = matches
	} else {
		for _, group := range groups {
			file := filepath.Join(dir, group+".yaml")
			if _, err := os.Stat(file); err != nil {
				return nil, errors.NotFoundf("group config file %q", file)
			}
			files = append(files, file)
		}
	}

	config := NewGroupConfig()
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, errors.Trace(err)
		}
		group := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
		if err := config.LoadGroup(group, data); err != nil {
			return nil, errors.Annotatef(err, "loading %q", file)
		}
	}
	return config, nil
}

// LoadGroup parses one group document and adds its projects. A group
// may carry no projects at all. A project name seen before, in this
// group or an earlier one, is an error.
func (g *GroupConfig) LoadGroup(group string, data []byte) error {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return errors.Annotate(err, "cannot parse group config")
	}

	coerced, err := groupChecker.Coerce(raw, nil)
	if err != nil {
		return errors.Annotate(err, "group config schema check failed")
	}
	valid := coerced.(map[string]interface{})

	var defaultTeam string
	var defaultBranches map[string]Branch
	if rawDefaults, ok := valid["defaults"].(map[string]interface{}); ok {
		defaultTeam, _ = rawDefaults["team"].(string)
		defaultBranches = coerceBranches(rawDefaults["branches"])
	}

	rawProjects, _ := valid["projects"].([]interface{})
	for _, entry := range rawProjects {
		fields := entry.(map[string]interface{})
		project := &Project{
			Name:         fields["name"].(string),
			Charmhub:     fields["charmhub"].(string),
			Launchpad:    fields["launchpad"].(string),
			Repository:   fields["repository"].(string),
			Team:         defaultTeam,
			ProjectGroup: group,
			Branches:     coerceBranches(fields["branches"]),
		}
		if team, ok := fields["team"].(string); ok {
			project.Team = team
		}
		// The defaults supply branches only to projects declaring
		// none of their own.
		if len(project.Branches) == 0 {
			project.Branches = copyBranches(defaultBranches)
		}
		logger.Debugf("loaded project %s (%d branches)", project.Name, len(project.Branches))
		if err := g.add(project); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

func (g *GroupConfig) add(project *Project) error {
	if existing, ok := g.byName[project.Name]; ok {
		return errors.AlreadyExistsf("project %q (first defined in group %q)",
			project.Name, existing.ProjectGroup)
	}
	g.projects = append(g.projects, project)
	g.byName[project.Name] = project
	return nil
}

func copyBranches(branches map[string]Branch) map[string]Branch {
	copied := make(map[string]Branch, len(branches))
	for ref, branch := range branches {
		copied[ref] = branch
	}
	return copied
}

var groupChecker = schema.FieldMap(
	schema.Fields{
		"defaults": schema.FieldMap(
			schema.Fields{
				"team":     schema.String(),
				"branches": branchesChecker,
			},
			schema.Defaults{
				"branches": schema.Omit,
			},
		),
		"projects": schema.List(schema.FieldMap(
			schema.Fields{
				"name":       schema.String(),
				"charmhub":   schema.String(),
				"launchpad":  schema.String(),
				"repository": schema.String(),
				"team":       schema.String(),
				"branches":   branchesChecker,
			},
			schema.Defaults{
				"team":     schema.Omit,
				"branches": schema.Omit,
			},
		)),
	},
	schema.Defaults{
		"defaults": schema.Omit,
		"projects": schema.Omit,
	},
)

var branchesChecker = schema.StringMap(schema.FieldMap(
	schema.Fields{
		"channels":           schema.List(schema.String()),
		"build-channels":     schema.StringMap(schema.String()),
		"build-path":         schema.String(),
		"auto-build":         schema.Bool(),
		"upload":             schema.Bool(),
		"recipe-name":        schema.String(),
		"enabled":            schema.Bool(),
		"bases":              schema.List(schema.String()),
		"duplicate-channels": schema.List(schema.String()),
		"series-title":       schema.String(),
		"series-summary":     schema.String(),
		"series-status":      schema.String(),
		"series-active":      schema.Bool(),
	},
	schema.Defaults{
		"channels":           schema.Omit,
		"build-channels":     schema.Omit,
		"build-path":         schema.Omit,
		"auto-build":         true,
		"upload":             true,
		"recipe-name":        DefaultRecipeName,
		"enabled":            true,
		"bases":              schema.Omit,
		"duplicate-channels": schema.Omit,
		"series-title":       schema.Omit,
		"series-summary":     schema.Omit,
		"series-status":      DefaultSeriesStatus,
		"series-active":      true,
	},
))

// coerceBranches turns the schema-validated branches map into Branch
// values keyed by full ref path.
func coerceBranches(value interface{}) map[string]Branch {
	raw, ok := value.(map[string]interface{})
	if !ok {
		return map[string]Branch{}
	}
	branches := make(map[string]Branch, len(raw))
	for name, entry := range raw {
		fields := entry.(map[string]interface{})
		branch := Branch{
			Channels:          stringSlice(fields["channels"]),
			BuildChannels:     stringMap(fields["build-channels"]),
			AutoBuild:         fields["auto-build"].(bool),
			Upload:            fields["upload"].(bool),
			RecipeName:        fields["recipe-name"].(string),
			Enabled:           fields["enabled"].(bool),
			Bases:             stringSlice(fields["bases"]),
			DuplicateChannels: stringSlice(fields["duplicate-channels"]),
			SeriesStatus:      fields["series-status"].(string),
			SeriesActive:      fields["series-active"].(bool),
		}
		if path, ok := fields["build-path"].(string); ok {
			branch.BuildPath = path
		}
		if title, ok := fields["series-title"].(string); ok {
			branch.SeriesTitle = title
		}
		if summary, ok := fields["series-summary"].(string); ok {
			branch.SeriesSummary = summary
		}
		ref := name
		if !strings.HasPrefix(ref, BranchPrefix) {
			ref = BranchPrefix + ref
		}
		branches[ref] = branch
	}
	return branches
}

func stringSlice(value interface{}) []string {
	raw, ok := value.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, len(raw))
	for i, v := range raw {
		out[i] = v.(string)
	}
	return out
}

func stringMap(value interface{}) map[string]string {
	raw, ok := value.(map[string]interface{})
	if !ok {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		out[k] = v.(string)
	}
	return out
}
