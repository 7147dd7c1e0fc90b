// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/juju/cmd/v3"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"

	"github.com/canonical/charmhub-lp-tool/internal/charm"
	"github.com/canonical/charmhub-lp-tool/internal/release"
)

const printRevisionsDoc = `
Print the revisions a channel carries, broken down by base and
architecture.

Examples:
    charmhub-lp-tool print-revisions -c awesome -s latest/edge
    charmhub-lp-tool print-revisions -c awesome -s 3.6/stable --base 22.04 --arch amd64
`

func newPrintRevisionsCommand() cmd.Command {
	return &printRevisionsCommand{}
}

type printRevisionsCommand struct {
	fleetCommandBase
	out cmd.Output

	channel string
	bases   []string
	arches  []string
}

func (c *printRevisionsCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "print-revisions",
		Purpose: "print the revisions released into a channel",
		Doc:     printRevisionsDoc,
	}
}

func (c *printRevisionsCommand) SetFlags(f *gnuflag.FlagSet) {
	c.fleetCommandBase.SetFlags(f)
	c.out.AddFlags(f, "tabular", map[string]cmd.Formatter{
		"yaml":    cmd.FormatYaml,
		"json":    cmd.FormatJson,
		"tabular": formatRevisionsTabular,
	})
	f.StringVar(&c.channel, "s", "latest/stable", "channel to inspect")
	f.StringVar(&c.channel, "channel", "latest/stable", "")
	f.Var(cmd.NewAppendStringsValue(&c.bases), "base", "only this base (may be repeated)")
	f.Var(cmd.NewAppendStringsValue(&c.arches), "arch", "only this architecture (may be repeated)")
}

// revisionsView pivots one charm's channel releases for output.
type revisionsView map[string]map[string]map[string][]int

func formatRevisionsTabular(writer io.Writer, value interface{}) error {
	view, ok := value.(revisionsView)
	if !ok {
		return errors.Errorf("unexpected value of type %T", value)
	}
	charms := make([]string, 0, len(view))
	for name := range view {
		charms = append(charms, name)
	}
	sort.Strings(charms)

	tw := tabwriter.NewWriter(writer, 0, 1, 2, ' ', 0)
	fmt.Fprintln(tw, "Charm\tBase\tArch\tRevisions")
	for _, name := range charms {
		bases := make([]string, 0, len(view[name]))
		for base := range view[name] {
			bases = append(bases, base)
		}
		sort.Strings(bases)
		for _, base := range bases {
			arches := make([]string, 0, len(view[name][base]))
			for arch := range view[name][base] {
				arches = append(arches, arch)
			}
			sort.Strings(arches)
			for _, arch := range arches {
				revisions := make([]string, 0, len(view[name][base][arch]))
				for _, revision := range view[name][base][arch] {
					revisions = append(revisions, fmt.Sprintf("%d", revision))
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", name, base, arch, strings.Join(revisions, ", "))
			}
		}
	}
	return tw.Flush()
}

func (c *printRevisionsCommand) Run(cmdContext *cmd.Context) error {
	channel, err := charm.ParseChannel(c.channel)
	if err != nil {
		return errors.Trace(err)
	}
	projects, err := c.loadProjects()
	if err != nil {
		return errors.Trace(err)
	}
	store, err := c.newStore()
	if err != nil {
		return errors.Trace(err)
	}
	ctx := context.Background()
	view := make(revisionsView, len(projects))
	for _, p := range projects {
		charmChannel := release.NewCharmChannel(store, p.Charmhub, channel)
		pivot, err := charmChannel.RevisionsByBase(ctx, c.bases, c.arches)
		if err != nil {
			return errors.Annotatef(err, "fetching revisions of %s", p.Charmhub)
		}
		view[p.Charmhub] = pivot
	}
	return errors.Trace(c.out.Write(cmdContext, view))
}
