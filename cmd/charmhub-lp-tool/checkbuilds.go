// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/juju/cmd/v3"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"

	"github.com/canonical/charmhub-lp-tool/internal/project"
)

const checkBuildsDoc = `
Report the latest builds of the managed recipes: one row per series
and architecture, restricted to each recipe's newest revision.

With --detect-error the log of every unsuccessful build is downloaded
and scanned for error lines, which are added to the report.

Examples:
    charmhub-lp-tool check-builds -c awesome
    charmhub-lp-tool check-builds --channel latest/edge --arch amd64
    charmhub-lp-tool check-builds -c awesome --detect-error
`

func newCheckBuildsCommand() cmd.Command {
	return &checkBuildsCommand{}
}

type checkBuildsCommand struct {
	fleetCommandBase
	out cmd.Output

	channels     []string
	arches       []string
	detectErrors bool
}

func (c *checkBuildsCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "check-builds",
		Purpose: "report the latest recipe builds",
		Doc:     checkBuildsDoc,
	}
}

func (c *checkBuildsCommand) SetFlags(f *gnuflag.FlagSet) {
	c.fleetCommandBase.SetFlags(f)
	c.out.AddFlags(f, "tabular", map[string]cmd.Formatter{
		"yaml":    cmd.FormatYaml,
		"json":    cmd.FormatJson,
		"tabular": c.formatBuildsTabular,
	})
	f.Var(cmd.NewAppendStringsValue(&c.channels), "channel", "only recipes feeding this channel (may be repeated)")
	f.Var(cmd.NewAppendStringsValue(&c.arches), "arch", "only builds for this architecture (may be repeated)")
	f.BoolVar(&c.detectErrors, "detect-error", false, "scan the logs of unsuccessful builds for error lines")
}

// buildView is the serializable state of one build.
type buildView struct {
	Charm         string   `yaml:"charm" json:"charm"`
	Recipe        string   `yaml:"recipe" json:"recipe"`
	Series        string   `yaml:"series" json:"series"`
	Arch          string   `yaml:"arch" json:"arch"`
	State         string   `yaml:"state" json:"state"`
	Revision      string   `yaml:"revision" json:"revision"`
	StoreRevision string   `yaml:"store-revision,omitempty" json:"store-revision,omitempty"`
	Age           string   `yaml:"age,omitempty" json:"age,omitempty"`
	StoreError    string   `yaml:"store-error,omitempty" json:"store-error,omitempty"`
	Errors        []string `yaml:"errors,omitempty" json:"errors,omitempty"`
}

func (c *checkBuildsCommand) formatBuildsTabular(writer io.Writer, value interface{}) error {
	views, ok := value.([]buildView)
	if !ok {
		return errors.Errorf("unexpected value of type %T", value)
	}
	tw := tabwriter.NewWriter(writer, 0, 1, 2, ' ', 0)
	header := "Recipe\tSeries\tArch\tState\tRevision\tStore rev\tAge"
	if c.detectErrors {
		header += "\tError"
	}
	fmt.Fprintln(tw, header)
	for _, view := range views {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s",
			view.Recipe, view.Series, view.Arch, view.State,
			view.Revision, view.StoreRevision, view.Age)
		if c.detectErrors {
			fmt.Fprintf(tw, "\t%s", strings.Join(view.Errors, "; "))
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}

func (c *checkBuildsCommand) Run(cmdContext *cmd.Context) error {
	reconcilers, err := c.reconcilers(cmdContext)
	if err != nil {
		return errors.Trace(err)
	}
	ctx := context.Background()
	query := project.BuildQuery{
		Channels:     c.channels,
		Arches:       c.arches,
		DetectErrors: c.detectErrors,
	}
	var views []buildView
	for _, p := range reconcilers {
		builds, err := p.Builds(ctx, query)
		if err != nil {
			return errors.Annotatef(err, "checking builds of %s", p.Config.Charmhub)
		}
		for _, info := range builds {
			view := buildView{
				Charm:      p.Config.Charmhub,
				Recipe:     info.Recipe.Name,
				Series:     info.Series,
				Arch:       info.Arch,
				State:      info.Build.BuildState,
				Revision:   shortRevision(info.Build.RevisionID),
				StoreError: info.Build.StoreUploadErrorMessage,
				Errors:     info.Errors,
			}
			if info.Build.StoreUploadRevision != nil {
				view.StoreRevision = fmt.Sprintf("%d", *info.Build.StoreUploadRevision)
			}
			if info.Build.DateBuilt != nil {
				view.Age = humanize.Time(*info.Build.DateBuilt)
			}
			views = append(views, view)
		}
	}
	return errors.Trace(c.out.Write(cmdContext, views))
}

func shortRevision(revision string) string {
	if len(revision) > 7 {
		return revision[:7]
	}
	return revision
}
