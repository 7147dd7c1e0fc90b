// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"net/http"
	"os"

	"github.com/juju/cmd/v3"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"
	"github.com/juju/loggo"

	"github.com/canonical/charmhub-lp-tool/internal/charmcraft"
	"github.com/canonical/charmhub-lp-tool/internal/charmhub"
	"github.com/canonical/charmhub-lp-tool/internal/config"
	"github.com/canonical/charmhub-lp-tool/internal/launchpad"
	"github.com/canonical/charmhub-lp-tool/internal/project"
	"github.com/canonical/charmhub-lp-tool/internal/release"
)

var logger = loggo.GetLogger("charmhublptool.cmd")

// oauthEnvKey carries the pre-signed OAuth Authorization header value
// for authenticated Launchpad access. Read-only commands work
// anonymously without it.
const oauthEnvKey = "CHARMHUB_LP_TOOL_OAUTH"

// fleetCommandBase carries the flags every subcommand shares: where
// the configuration lives and which charms to operate on.
type fleetCommandBase struct {
	cmd.CommandBase

	configDir string
	groups    []string
	charms    []string
	lpRoot    string
}

func (c *fleetCommandBase) SetFlags(f *gnuflag.FlagSet) {
	c.CommandBase.SetFlags(f)
	f.StringVar(&c.configDir, "config-dir", ".", "directory holding the project group configuration")
	f.Var(cmd.NewAppendStringsValue(&c.groups), "group", "project group to load (may be repeated, all groups when omitted)")
	f.Var(cmd.NewAppendStringsValue(&c.charms), "c", "charm to operate on (may be repeated, all charms when omitted)")
	f.Var(cmd.NewAppendStringsValue(&c.charms), "charm", "")
	f.StringVar(&c.lpRoot, "launchpad-root", launchpad.DefaultServiceRoot, "Launchpad API root to talk to")
}

// loadProjects loads the selected groups and returns the selected
// charm projects.
func (c *fleetCommandBase) loadProjects() ([]*config.Project, error) {
	groups, err := config.LoadDirectory(c.configDir, c.groups...)
	if err != nil {
		return nil, errors.Trace(err)
	}
	projects := groups.Projects(c.charms...)
	if len(projects) == 0 {
		return nil, errors.NotFoundf("matching charm projects")
	}
	return projects, nil
}

func (c *fleetCommandBase) newLaunchpad() (*launchpad.Client, error) {
	var headers http.Header
	if auth := os.Getenv(oauthEnvKey); auth != "" {
		headers = http.Header{"Authorization": []string{auth}}
	}
	return launchpad.NewClient(launchpad.Config{
		ServiceRoot: c.lpRoot,
		Headers:     headers,
		Logger:      logger,
	})
}

func (c *fleetCommandBase) newStore() (*charmhub.Client, error) {
	return charmhub.NewClient(charmhub.Config{Logger: logger})
}

// newManager builds a channel manager backed by the store and the
// local charmcraft binary.
func (c *fleetCommandBase) newManager(cmdContext *cmd.Context, dryRun bool) (*release.Manager, error) {
	store, err := c.newStore()
	if err != nil {
		return nil, errors.Trace(err)
	}
	runner, err := charmcraft.NewRunner(charmcraft.RunnerConfig{
		DryRun:  dryRun,
		Retries: 3,
		Output:  cmdContext.Stdout,
		Logger:  logger,
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return release.NewManager(store, runner), nil
}

// reconcilers binds every selected project to a shared Launchpad
// client, with operator messages going to the command's stdout.
func (c *fleetCommandBase) reconcilers(cmdContext *cmd.Context) ([]*project.Project, error) {
	projects, err := c.loadProjects()
	if err != nil {
		return nil, errors.Trace(err)
	}
	lp, err := c.newLaunchpad()
	if err != nil {
		return nil, errors.Trace(err)
	}
	reconcilers := make([]*project.Project, len(projects))
	for i, cfg := range projects {
		reconcilers[i] = project.New(cfg, lp, cmdContext.Stdout)
	}
	return reconcilers, nil
}
