// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"context"

	"github.com/juju/cmd/v3"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"

	"github.com/canonical/charmhub-lp-tool/internal/charm"
	"github.com/canonical/charmhub-lp-tool/internal/config"
)

const cleanChannelDoc = `
Repair a store channel: close it when it merely duplicates a more
stable risk of its track, re-release the highest revision where a
base and architecture carries several, and re-release with resources
where a release is missing them.

The bases to consider and the channels allowed to duplicate come from
the branch configuration of the channel's track.

Without --i-really-mean-it the charmcraft commands are printed instead
of executed.

Examples:
    charmhub-lp-tool clean-channel -c awesome 3.6/candidate
    charmhub-lp-tool clean-channel -c awesome 3.6/candidate --i-really-mean-it
`

func newCleanChannelCommand() cmd.Command {
	return &cleanChannelCommand{}
}

type cleanChannelCommand struct {
	fleetCommandBase

	confirmed bool
	channel   charm.Channel
}

func (c *cleanChannelCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "clean-channel",
		Args:    "<channel>",
		Purpose: "repair duplicate or incomplete releases in a channel",
		Doc:     cleanChannelDoc,
	}
}

func (c *cleanChannelCommand) SetFlags(f *gnuflag.FlagSet) {
	c.fleetCommandBase.SetFlags(f)
	f.BoolVar(&c.confirmed, "i-really-mean-it", false, "run the charmcraft commands instead of printing them")
}

func (c *cleanChannelCommand) Init(args []string) error {
	if len(args) != 1 {
		return errors.New("a channel is required")
	}
	var err error
	if c.channel, err = charm.ParseChannel(args[0]); err != nil {
		return errors.Trace(err)
	}
	if len(c.charms) == 0 {
		return errors.New("a charm must be selected with --charm")
	}
	return nil
}

// branchSettings finds the bases and allowed duplicate channels the
// configuration declares for the channel's track.
func branchSettings(p *config.Project, channel charm.Channel) (bases, duplicates []string) {
	for _, ref := range p.BranchNames() {
		branch := p.Branches[ref]
		for _, declared := range branch.Channels {
			declaredChannel, err := charm.ParseChannel(declared)
			if err != nil {
				continue
			}
			if declaredChannel.Track == channel.Track {
				return branch.Bases, branch.DuplicateChannels
			}
		}
	}
	return nil, nil
}

func (c *cleanChannelCommand) Run(cmdContext *cmd.Context) error {
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
		bases, duplicates := branchSettings(p, c.channel)
		actions, err := manager.CleanChannel(ctx, p.Charmhub, c.channel, bases, duplicates)
		if err != nil {
			return errors.Annotatef(err, "cleaning %s of %s", c.channel, p.Charmhub)
		}
		if len(actions) == 0 {
			cmdContext.Infof("channel %s of %s is clean", c.channel, p.Charmhub)
			continue
		}
		for _, action := range actions {
			cmdContext.Infof("%s", action)
		}
	}
	return nil
}
