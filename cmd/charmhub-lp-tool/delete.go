// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"context"

	"github.com/juju/cmd/v3"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"
)

const deleteDoc = `
Delete a charm recipe, either by its full name or by the branch and
track pair the default recipe naming derives it from.

Without --i-really-mean-it the command only reports what it would
delete.

Examples:
    charmhub-lp-tool delete -c awesome --name awesome-charm.main.latest --i-really-mean-it
    charmhub-lp-tool delete -c awesome --git-branch main --track latest --i-really-mean-it
`

func newDeleteCommand() cmd.Command {
	return &deleteCommand{}
}

type deleteCommand struct {
	fleetCommandBase

	confirmed bool
	name      string
	branch    string
	track     string
}

func (c *deleteCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "delete",
		Purpose: "delete a charm recipe",
		Doc:     deleteDoc,
	}
}

func (c *deleteCommand) SetFlags(f *gnuflag.FlagSet) {
	c.fleetCommandBase.SetFlags(f)
	f.BoolVar(&c.confirmed, "i-really-mean-it", false, "apply the deletion instead of reporting it")
	f.StringVar(&c.name, "name", "", "full name of the recipe to delete")
	f.StringVar(&c.branch, "git-branch", "", "branch of the recipe to delete")
	f.StringVar(&c.track, "track", "", "track of the recipe to delete")
}

func (c *deleteCommand) Init(args []string) error {
	if err := cmd.CheckEmpty(args); err != nil {
		return errors.Trace(err)
	}
	if c.name == "" && (c.branch == "" || c.track == "") {
		return errors.New("either --name or both --git-branch and --track are required")
	}
	if c.name != "" && (c.branch != "" || c.track != "") {
		return errors.New("--name cannot be combined with --git-branch or --track")
	}
	if len(c.charms) == 0 {
		return errors.New("a charm must be selected with --charm")
	}
	return nil
}

func (c *deleteCommand) Run(cmdContext *cmd.Context) error {
	reconcilers, err := c.reconcilers(cmdContext)
	if err != nil {
		return errors.Trace(err)
	}
	dryRun := !c.confirmed
	ctx := context.Background()
	for _, p := range reconcilers {
		if c.name != "" {
			if err := p.DeleteRecipeByName(ctx, c.name, dryRun); err != nil {
				return errors.Trace(err)
			}
			continue
		}
		if err := p.DeleteRecipeByBranchAndTrack(ctx, c.branch, c.track, dryRun); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}
