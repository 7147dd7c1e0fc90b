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

const authorizeDoc = `
Authorize the managed recipes to upload to the store. The macaroon
Launchpad issues is discharged interactively, which usually opens a
browser login.

Recipes that can already upload are skipped unless --force is given.

Examples:
    charmhub-lp-tool authorize -c awesome
    charmhub-lp-tool authorize -c awesome -b main --force
`

func newAuthorizeCommand() cmd.Command {
	return &authorizeCommand{newDischarger: project.NewDischarger}
}

type authorizeCommand struct {
	fleetCommandBase

	// newDischarger is swapped out in tests.
	newDischarger func() project.Discharger

	force    bool
	branches []string
}

func (c *authorizeCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "authorize",
		Purpose: "authorize recipes to upload to the store",
		Doc:     authorizeDoc,
	}
}

func (c *authorizeCommand) SetFlags(f *gnuflag.FlagSet) {
	c.fleetCommandBase.SetFlags(f)
	f.BoolVar(&c.force, "force", false, "authorize even recipes that can already upload")
	f.Var(cmd.NewAppendStringsValue(&c.branches), "b", "branch to authorize (may be repeated, all branches when omitted)")
	f.Var(cmd.NewAppendStringsValue(&c.branches), "git-branch", "")
}

func (c *authorizeCommand) Run(cmdContext *cmd.Context) error {
	reconcilers, err := c.reconcilers(cmdContext)
	if err != nil {
		return errors.Trace(err)
	}
	discharger := c.newDischarger()
	ctx := context.Background()
	for _, p := range reconcilers {
		authorized, err := p.Authorize(ctx, discharger, c.branches, c.force)
		if err != nil {
			return errors.Annotatef(err, "authorizing recipes of %s", p.Config.Charmhub)
		}
		if len(authorized) == 0 {
			cmdContext.Infof("no recipes needed authorization for %s", p.Config.Charmhub)
		}
	}
	return nil
}
