// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"github.com/juju/cmd/v3"
)

const toolDoc = `
charmhub-lp-tool manages the Launchpad build recipes and CharmHub
channels of a fleet of charms described by a directory of project
group configuration files.

The configuration is the single source of truth: the sync family of
commands brings Launchpad in line with it, the check-builds and
print-revisions commands report on the resulting state, and the
channel commands repair the store when releases have drifted.
`

func newSuperCommand() *cmd.SuperCommand {
	sc := cmd.NewSuperCommand(cmd.SuperCommandParams{
		Name:    "charmhub-lp-tool",
		Purpose: "manage charm recipes on Launchpad and their CharmHub channels",
		Doc:     toolDoc,
		Log:     &cmd.Log{},
	})
	sc.Register(newListCommand())
	sc.Register(newShowCommand())
	sc.Register(newDiffCommand())
	sc.Register(newSyncCommand())
	sc.Register(newDeleteCommand())
	sc.Register(newEnsureSeriesCommand())
	sc.Register(newCheckBuildsCommand())
	sc.Register(newRequestBuildCommand())
	sc.Register(newAuthorizeCommand())
	sc.Register(newPrintRevisionsCommand())
	sc.Register(newCopyChannelCommand())
	sc.Register(newCleanChannelCommand())
	return sc
}
