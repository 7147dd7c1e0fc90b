// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// charmhub-lp-tool reconciles a declarative fleet of charm projects
// against Launchpad and CharmHub: it keeps the git mirrors, project
// series and charm recipes matching the configuration, inspects
// recipe builds, and repairs store channels.
package main

import (
	"fmt"
	"os"

	"github.com/juju/cmd/v3"
	"github.com/juju/loggo"
)

// loggingConfigEnvKey configures the loggo levels at startup, in the
// usual <logger>=<level> form.
const loggingConfigEnvKey = "CHARMHUB_LP_TOOL_LOGGING_CONFIG"

func init() {
	if err := loggo.ConfigureLoggers(os.Getenv(loggingConfigEnvKey)); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR parsing %s: %s\n\n", loggingConfigEnvKey, err)
	}
}

func main() {
	ctx, err := cmd.DefaultContext()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
	os.Exit(cmd.Main(newSuperCommand(), ctx, os.Args[1:]))
}
