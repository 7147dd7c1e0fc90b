// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"context"

	"github.com/juju/cmd/v3"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"

	"github.com/canonical/charmhub-lp-tool/internal/project"
)

const diffDoc = `
Compare the configured recipes against what Launchpad actually has and
report the differences, without changing anything.

Examples:
    charmhub-lp-tool diff -c awesome
    charmhub-lp-tool diff --detail --format yaml
`

func newDiffCommand() cmd.Command {
	return &diffCommand{}
}

type diffCommand struct {
	fleetCommandBase
	out cmd.Output

	detail   bool
	branches []string
}

func (c *diffCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "diff",
		Purpose: "show how Launchpad recipes differ from the configuration",
		Doc:     diffDoc,
	}
}

func (c *diffCommand) SetFlags(f *gnuflag.FlagSet) {
	c.fleetCommandBase.SetFlags(f)
	c.out.AddFlags(f, "yaml", map[string]cmd.Formatter{
		"yaml": cmd.FormatYaml,
		"json": cmd.FormatJson,
	})
	f.BoolVar(&c.detail, "detail", false, "include unchanged recipes in the report")
	f.Var(cmd.NewAppendStringsValue(&c.branches), "b", "branch to diff (may be repeated, all branches when omitted)")
	f.Var(cmd.NewAppendStringsValue(&c.branches), "git-branch", "")
}

// recipeDiffView is the serializable diff of one recipe.
type recipeDiffView struct {
	Name    string   `yaml:"name" json:"name"`
	Status  string   `yaml:"status" json:"status"`
	Changes []string `yaml:"changes,omitempty" json:"changes,omitempty"`
}

// projectDiffView is the serializable diff of one project.
type projectDiffView struct {
	Recipes              []recipeDiffView `yaml:"recipes,omitempty" json:"recipes,omitempty"`
	Unmanaged            []string         `yaml:"unmanaged,omitempty" json:"unmanaged,omitempty"`
	MissingBranches      []string         `yaml:"missing-branches,omitempty" json:"missing-branches,omitempty"`
	UnconfiguredBranches []string         `yaml:"unconfigured-branches,omitempty" json:"unconfigured-branches,omitempty"`
}

func makeDiffView(plan *project.RecipeSet, detail bool) projectDiffView {
	view := projectDiffView{
		MissingBranches:      plan.MissingBranches,
		UnconfiguredBranches: plan.UnconfiguredBranches,
	}
	for _, state := range plan.Managed {
		switch {
		case !state.Exists:
			view.Recipes = append(view.Recipes, recipeDiffView{
				Name:   state.Name,
				Status: "missing",
			})
		case state.Changed:
			view.Recipes = append(view.Recipes, recipeDiffView{
				Name:    state.Name,
				Status:  "changed",
				Changes: state.Changes,
			})
		case detail:
			view.Recipes = append(view.Recipes, recipeDiffView{
				Name:   state.Name,
				Status: "in-sync",
			})
		}
	}
	for _, recipe := range plan.Unmanaged {
		view.Unmanaged = append(view.Unmanaged, recipe.Name)
	}
	return view
}

func (c *diffCommand) Run(cmdContext *cmd.Context) error {
	reconcilers, err := c.reconcilers(cmdContext)
	if err != nil {
		return errors.Trace(err)
	}
	ctx := context.Background()
	views := make(map[string]projectDiffView, len(reconcilers))
	for _, p := range reconcilers {
		plan, err := p.ComputeRecipes(ctx, c.branches)
		if err != nil {
			return errors.Annotatef(err, "computing recipes for %s", p.Config.Charmhub)
		}
		if !plan.Changed() && !c.detail {
			continue
		}
		views[p.Config.Charmhub] = makeDiffView(plan, c.detail)
	}
	return errors.Trace(c.out.Write(cmdContext, views))
}
