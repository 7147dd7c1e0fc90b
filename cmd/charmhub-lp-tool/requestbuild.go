// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"context"

	"github.com/juju/cmd/v3"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"
)

const requestBuildDoc = `
Request fresh builds for the managed recipes. Unless --force is given,
only recipes whose newest builds failed, went stale or never uploaded
are rebuilt.

Examples:
    charmhub-lp-tool request-build -c awesome --i-really-mean-it
    charmhub-lp-tool request-build -c awesome -b main --force --i-really-mean-it
`

func newRequestBuildCommand() cmd.Command {
	return &requestBuildCommand{}
}

type requestBuildCommand struct {
	fleetCommandBase

	confirmed bool
	force     bool
	branches  []string
}

func (c *requestBuildCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "request-build",
		Purpose: "request builds for recipes with missing or broken builds",
		Doc:     requestBuildDoc,
	}
}

func (c *requestBuildCommand) SetFlags(f *gnuflag.FlagSet) {
	c.fleetCommandBase.SetFlags(f)
	f.BoolVar(&c.confirmed, "i-really-mean-it", false, "request the builds instead of reporting them")
	f.BoolVar(&c.force, "force", false, "rebuild even recipes with healthy builds")
	f.Var(cmd.NewAppendStringsValue(&c.branches), "b", "branch to build (may be repeated, all branches when omitted)")
	f.Var(cmd.NewAppendStringsValue(&c.branches), "git-branch", "")
}

func (c *requestBuildCommand) Run(cmdContext *cmd.Context) error {
	reconcilers, err := c.reconcilers(cmdContext)
	if err != nil {
		return errors.Trace(err)
	}
	ctx := context.Background()
	for _, p := range reconcilers {
		requested, err := p.RequestBuilds(ctx, c.branches, c.force, !c.confirmed)
		if err != nil {
			return errors.Annotatef(err, "requesting builds for %s", p.Config.Charmhub)
		}
		if len(requested) == 0 {
			cmdContext.Infof("no builds needed for %s", p.Config.Charmhub)
		}
	}
	return nil
}
