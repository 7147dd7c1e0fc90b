// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"context"

	"github.com/juju/cmd/v3"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"
)

const ensureSeriesDoc = `
Create the Launchpad project series the branch configuration declares.
A branch declares a series by carrying series metadata; the series is
named after the branch's track.

Examples:
    charmhub-lp-tool ensure-series -c awesome --i-really-mean-it
`

func newEnsureSeriesCommand() cmd.Command {
	return &ensureSeriesCommand{}
}

type ensureSeriesCommand struct {
	fleetCommandBase

	confirmed bool
	branches  []string
}

func (c *ensureSeriesCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "ensure-series",
		Purpose: "create the configured Launchpad project series",
		Doc:     ensureSeriesDoc,
	}
}

func (c *ensureSeriesCommand) SetFlags(f *gnuflag.FlagSet) {
	c.fleetCommandBase.SetFlags(f)
	f.BoolVar(&c.confirmed, "i-really-mean-it", false, "apply the changes instead of reporting them")
	f.Var(cmd.NewAppendStringsValue(&c.branches), "b", "branch to consider (may be repeated, all branches when omitted)")
	f.Var(cmd.NewAppendStringsValue(&c.branches), "git-branch", "")
}

func (c *ensureSeriesCommand) Run(cmdContext *cmd.Context) error {
	reconcilers, err := c.reconcilers(cmdContext)
	if err != nil {
		return errors.Trace(err)
	}
	ctx := context.Background()
	for _, p := range reconcilers {
		if err := p.EnsureSeries(ctx, !c.confirmed, c.branches); err != nil {
			return errors.Annotatef(err, "ensuring series for %s", p.Config.Charmhub)
		}
	}
	return nil
}
