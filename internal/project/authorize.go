// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package project

import (
	"context"
	"encoding/json"

	"github.com/go-macaroon-bakery/macaroon-bakery/v3/bakery"
	"github.com/go-macaroon-bakery/macaroon-bakery/v3/httpbakery"
	"github.com/juju/errors"
	"gopkg.in/macaroon.v2"

	"github.com/canonical/charmhub-lp-tool/internal/launchpad"
)

// Discharger turns the root macaroon Launchpad hands out during
// recipe authorization into the discharge macaroon the store expects.
// Discharging usually sends the operator through a browser login.
type Discharger interface {
	Discharge(ctx context.Context, root string) (string, error)
}

// NewDischarger returns a Discharger backed by an interactive
// httpbakery client.
func NewDischarger() Discharger {
	return bakeryDischarger{client: httpbakery.NewClient()}
}

type bakeryDischarger struct {
	client *httpbakery.Client
}

// Discharge parses the serialized root macaroon, acquires its
// discharges and returns the single discharge macaroon serialized
// back to JSON.
func (d bakeryDischarger) Discharge(ctx context.Context, root string) (string, error) {
	var m bakery.Macaroon
	if err := json.Unmarshal([]byte(root), &m); err != nil {
		return "", errors.Annotate(err, "parsing root macaroon")
	}
	var ms macaroon.Slice
	ms, err := d.client.DischargeAll(ctx, &m)
	if err != nil {
		return "", errors.Annotate(err, "discharging root macaroon")
	}
	// First element is the root macaroon itself.
	if len(ms) != 2 {
		return "", errors.Errorf("expected one discharge macaroon, got %d", len(ms)-1)
	}
	data, err := json.Marshal(ms[1])
	if err != nil {
		return "", errors.Annotate(err, "serializing discharge macaroon")
	}
	return string(data), nil
}

// Authorize runs store authorization for the managed recipes of the
// given branches (all when empty). Recipes already able to upload are
// skipped unless force is set. Failures are reported per recipe and
// do not stop the remaining ones; the names of the recipes that were
// authorized are returned.
func (p *Project) Authorize(ctx context.Context, discharger Discharger, branches []string, force bool) ([]string, error) {
	plan, err := p.ComputeRecipes(ctx, branches)
	if err != nil {
		return nil, errors.Trace(err)
	}

	var authorized []string
	for _, state := range plan.Managed {
		if !state.Exists {
			logger.Infof("recipe %s does not exist yet, skipping authorization", state.Name)
			continue
		}
		if state.Current.CanUploadToStore && !force {
			logger.Debugf("recipe %s is already authorized", state.Name)
			continue
		}
		p.printf("Authorizing recipe %s", state.Name)
		if err := p.authorizeRecipe(ctx, discharger, state.Current); err != nil {
			p.printf("ERROR: authorizing %s: %v", state.Name, err)
			continue
		}
		authorized = append(authorized, state.Name)
	}
	return authorized, nil
}

func (p *Project) authorizeRecipe(ctx context.Context, discharger Discharger, recipe *launchpad.CharmRecipe) error {
	root, err := p.lp.BeginAuthorization(ctx, recipe)
	if err != nil {
		return errors.Trace(err)
	}
	discharge, err := discharger.Discharge(ctx, root)
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(p.lp.CompleteAuthorization(ctx, recipe, discharge))
}
