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

const syncDoc = `
Bring Launchpad in line with the configuration: make sure the git
mirror exists and imports, then create, update and optionally delete
charm recipes until they match.

Without --i-really-mean-it everything runs in dry-run mode and only
reports what would change.

Examples:
    charmhub-lp-tool sync -c awesome
    charmhub-lp-tool sync -c awesome --i-really-mean-it
    charmhub-lp-tool sync --git-mirror-only --i-really-mean-it
`

func newSyncCommand() cmd.Command {
	return &syncCommand{}
}

type syncCommand struct {
	fleetCommandBase

	confirmed     bool
	removeUnknown bool
	gitMirrorOnly bool
	branches      []string
}

func (c *syncCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "sync",
		Purpose: "reconcile git mirrors and charm recipes with the configuration",
		Doc:     syncDoc,
	}
}

func (c *syncCommand) SetFlags(f *gnuflag.FlagSet) {
	c.fleetCommandBase.SetFlags(f)
	f.BoolVar(&c.confirmed, "i-really-mean-it", false, "apply the changes instead of reporting them")
	f.BoolVar(&c.removeUnknown, "remove-unknown", false, "delete recipes the configuration does not declare")
	f.BoolVar(&c.gitMirrorOnly, "git-mirror-only", false, "only ensure the git mirror and request an import")
	f.Var(cmd.NewAppendStringsValue(&c.branches), "b", "branch to sync (may be repeated, all branches when omitted)")
	f.Var(cmd.NewAppendStringsValue(&c.branches), "git-branch", "")
}

func (c *syncCommand) Run(cmdContext *cmd.Context) error {
	dryRun := !c.confirmed
	if dryRun {
		cmdContext.Infof("running in dry-run mode, use --i-really-mean-it to apply")
	}
	reconcilers, err := c.reconcilers(cmdContext)
	if err != nil {
		return errors.Trace(err)
	}
	ctx := context.Background()
	for _, p := range reconcilers {
		cmdContext.Verbosef("syncing %s", p.Config.Charmhub)
		if err := p.EnsureRepository(ctx, dryRun); err != nil {
			return errors.Annotatef(err, "ensuring repository for %s", p.Config.Charmhub)
		}
		if c.gitMirrorOnly {
			if dryRun {
				continue
			}
			if err := p.RequestMirrorImport(ctx); err != nil {
				return errors.Annotatef(err, "requesting import for %s", p.Config.Charmhub)
			}
			continue
		}
		_, err := p.EnsureRecipes(ctx, project.EnsureOptions{
			DryRun:        dryRun,
			RemoveUnknown: c.removeUnknown,
			Branches:      c.branches,
		})
		if err != nil {
			return errors.Annotatef(err, "ensuring recipes for %s", p.Config.Charmhub)
		}
	}
	return nil
}
