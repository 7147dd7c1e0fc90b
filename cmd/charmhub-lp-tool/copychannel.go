// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"context"

	"github.com/juju/cmd/v3"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"

	"github.com/canonical/charmhub-lp-tool/internal/charm"
)

const copyChannelDoc = `
Release every revision of the source channel into the destination
channel, carrying the resource revisions along.

Without --i-really-mean-it the charmcraft commands are printed instead
of executed.

Examples:
    charmhub-lp-tool copy-channel -c awesome latest/edge 3.6/edge
    charmhub-lp-tool copy-channel -c awesome --base 22.04 latest/edge 3.6/edge --i-really-mean-it
`

func newCopyChannelCommand() cmd.Command {
	return &copyChannelCommand{}
}

type copyChannelCommand struct {
	fleetCommandBase

	confirmed bool
	base      string
	source    charm.Channel
	dest      charm.Channel
}

func (c *copyChannelCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "copy-channel",
		Args:    "<source-channel> <destination-channel>",
		Purpose: "copy all releases of one channel into another",
		Doc:     copyChannelDoc,
	}
}

func (c *copyChannelCommand) SetFlags(f *gnuflag.FlagSet) {
	c.fleetCommandBase.SetFlags(f)
	f.BoolVar(&c.confirmed, "i-really-mean-it", false, "run the charmcraft commands instead of printing them")
	f.StringVar(&c.base, "base", "", "only copy releases for this base")
}

func (c *copyChannelCommand) Init(args []string) error {
	if len(args) != 2 {
		return errors.New("a source and a destination channel are required")
	}
	var err error
	if c.source, err = charm.ParseChannel(args[0]); err != nil {
		return errors.Annotate(err, "source channel")
	}
	if c.dest, err = charm.ParseChannel(args[1]); err != nil {
		return errors.Annotate(err, "destination channel")
	}
	if len(c.charms) == 0 {
		return errors.New("a charm must be selected with --charm")
	}
	return nil
}

func (c *copyChannelCommand) Run(cmdContext *cmd.Context) error {
	projects, err := c.loadProjects()
	if err != nil {
		return errors.Trace(err)
	}
	manager, err := c.newManager(cmdContext, !c.confirmed)
	if err != nil {
		return errors.Trace(err)
	}
	ctx := context.Background()
	for _, p := range projects {
		copied, err := manager.CopyChannel(ctx, p.Charmhub, c.source, c.dest, c.base)
		if err != nil {
			return errors.Annotatef(err, "copying %s of %s", c.source, p.Charmhub)
		}
		cmdContext.Infof("copied %d revisions of %s from %s to %s",
			len(copied), p.Charmhub, c.source, c.dest)
	}
	return nil
}
