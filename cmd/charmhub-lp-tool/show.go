// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"github.com/juju/cmd/v3"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"
)

const showDoc = `
Show the full configuration of the selected charm projects, after
group defaults have been applied.

Examples:
    charmhub-lp-tool show -c awesome
`

func newShowCommand() cmd.Command {
	return &showCommand{}
}

type showCommand struct {
	fleetCommandBase
	out cmd.Output
}

func (c *showCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "show",
		Purpose: "show the effective configuration of charm projects",
		Doc:     showDoc,
	}
}

func (c *showCommand) SetFlags(f *gnuflag.FlagSet) {
	c.fleetCommandBase.SetFlags(f)
	c.out.AddFlags(f, "yaml", map[string]cmd.Formatter{
		"yaml": cmd.FormatYaml,
		"json": cmd.FormatJson,
	})
}

func (c *showCommand) Run(cmdContext *cmd.Context) error {
	projects, err := c.loadProjects()
	if err != nil {
		return errors.Trace(err)
	}
	views := make(map[string]interface{}, len(projects))
	for _, p := range projects {
		views[p.Charmhub] = p
	}
	return errors.Trace(c.out.Write(cmdContext, views))
}
