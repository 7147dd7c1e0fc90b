// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/juju/cmd/v3"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"

	"github.com/canonical/charmhub-lp-tool/internal/config"
)

const listDoc = `
List the charm projects the configuration declares, with the store and
Launchpad names they map to.

Examples:
    charmhub-lp-tool list
    charmhub-lp-tool list --group openstack --format yaml
`

func newListCommand() cmd.Command {
	return &listCommand{}
}

type listCommand struct {
	fleetCommandBase
	out cmd.Output
}

func (c *listCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "list",
		Purpose: "list the configured charm projects",
		Doc:     listDoc,
	}
}

func (c *listCommand) SetFlags(f *gnuflag.FlagSet) {
	c.fleetCommandBase.SetFlags(f)
	c.out.AddFlags(f, "tabular", map[string]cmd.Formatter{
		"yaml":    cmd.FormatYaml,
		"json":    cmd.FormatJson,
		"tabular": formatProjectsTabular,
	})
}

// projectView is the serializable summary of a configured project.
type projectView struct {
	Name      string   `yaml:"name" json:"name"`
	Charmhub  string   `yaml:"charmhub" json:"charmhub"`
	Launchpad string   `yaml:"launchpad" json:"launchpad"`
	Team      string   `yaml:"team" json:"team"`
	Group     string   `yaml:"project-group" json:"project-group"`
	Branches  []string `yaml:"branches" json:"branches"`
}

func makeProjectViews(projects []*config.Project) []projectView {
	views := make([]projectView, len(projects))
	for i, p := range projects {
		branches := make([]string, 0, len(p.Branches))
		for _, ref := range p.BranchNames() {
			branches = append(branches, strings.TrimPrefix(ref, config.BranchPrefix))
		}
		views[i] = projectView{
			Name:      p.Name,
			Charmhub:  p.Charmhub,
			Launchpad: p.Launchpad,
			Team:      p.Team,
			Group:     p.ProjectGroup,
			Branches:  branches,
		}
	}
	return views
}

func formatProjectsTabular(writer io.Writer, value interface{}) error {
	views, ok := value.([]projectView)
	if !ok {
		return errors.Errorf("unexpected value of type %T", value)
	}
	tw := tabwriter.NewWriter(writer, 0, 1, 2, ' ', 0)
	fmt.Fprintln(tw, "Charmhub\tLaunchpad\tTeam\tGroup\tBranches")
	for _, view := range views {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			view.Charmhub, view.Launchpad, view.Team, view.Group,
			strings.Join(view.Branches, ", "))
	}
	return tw.Flush()
}

func (c *listCommand) Run(cmdContext *cmd.Context) error {
	projects, err := c.loadProjects()
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(c.out.Write(cmdContext, makeProjectViews(projects)))
}
