// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package launchpad

import (
	"context"
	"fmt"
	"net/url"
	"reflect"
	"sort"

	"github.com/google/go-querystring/query"
	"github.com/juju/errors"
)

// RecipeSpec is the desired state of a charm recipe, derived from the
// fleet configuration.
type RecipeSpec struct {
	Name              string
	Owner             *Person
	Project           *Project
	GitRef            *GitRef
	StoreName         string
	StoreUpload       bool
	StoreChannels     []string
	AutoBuild         bool
	AutoBuildChannels map[string]string
	BuildPath         string
}

type findByOwnerParams struct {
	Op    string `url:"ws.op"`
	Owner string `url:"owner"`
}

// Recipes returns all charm recipes owned by the given person or
// team. The result is cached per owner: walking a fleet repeatedly
// asks for the same team's recipes, and the owner collection is
// expensive to produce.
func (c *Client) Recipes(ctx context.Context, owner *Person) ([]CharmRecipe, error) {
	c.mu.Lock()
	if cached, ok := c.recipeCache[owner.SelfLink]; ok {
		c.mu.Unlock()
		return cached, nil
	}
	c.mu.Unlock()

	root, err := c.serviceRootLinks(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	params, err := query.Values(findByOwnerParams{
		Op:    "findByOwner",
		Owner: owner.SelfLink,
	})
	if err != nil {
		return nil, errors.Trace(err)
	}

	c.logger.Tracef("fetching fresh charm recipes for owner %s", owner.Name)
	recipes, err := getCollection[CharmRecipe](ctx, c, root.CharmRecipesCollectionLink, params)
	if err != nil {
		return nil, errors.Annotatef(err, "finding recipes owned by %q", owner.Name)
	}

	c.mu.Lock()
	c.recipeCache[owner.SelfLink] = recipes
	c.mu.Unlock()
	return recipes, nil
}

// RecipesFor returns the charm recipes owned by owner that build from
// the given project. Launchpad has no API for filtering by owner and
// project at once, so the owner's recipes are filtered here.
func (c *Client) RecipesFor(ctx context.Context, owner *Person, project *Project) ([]CharmRecipe, error) {
	recipes, err := c.Recipes(ctx, owner)
	if err != nil {
		return nil, errors.Trace(err)
	}
	var filtered []CharmRecipe
	for _, recipe := range recipes {
		if recipe.ProjectLink == project.SelfLink {
			filtered = append(filtered, recipe)
		}
	}
	return filtered, nil
}

// invalidateRecipes drops the cached recipe collection for the owner
// so that the next call sees a newly created or deleted recipe.
func (c *Client) invalidateRecipes(owner string) {
	c.mu.Lock()
	delete(c.recipeCache, owner)
	c.mu.Unlock()
}

// CreateRecipe creates a new charm recipe from the spec.
func (c *Client) CreateRecipe(ctx context.Context, spec RecipeSpec) (*CharmRecipe, error) {
	root, err := c.serviceRootLinks(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}

	params := url.Values{}
	params.Set("ws.op", "new")
	params.Set("name", spec.Name)
	params.Set("owner", spec.Owner.SelfLink)
	params.Set("project", spec.Project.SelfLink)
	params.Set("git_ref", spec.GitRef.SelfLink)
	params.Set("store_name", spec.StoreName)
	for key, value := range map[string]interface{}{
		"auto_build":   spec.AutoBuild,
		"store_upload": spec.StoreUpload,
	} {
		encoded, err := marshalParam(value)
		if err != nil {
			return nil, errors.Trace(err)
		}
		params.Set(key, encoded)
	}
	if spec.StoreUpload && len(spec.StoreChannels) > 0 {
		encoded, err := marshalParam(spec.StoreChannels)
		if err != nil {
			return nil, errors.Trace(err)
		}
		params.Set("store_channels", encoded)
	}
	if len(spec.AutoBuildChannels) > 0 {
		encoded, err := marshalParam(spec.AutoBuildChannels)
		if err != nil {
			return nil, errors.Trace(err)
		}
		params.Set("auto_build_channels", encoded)
	}
	if spec.BuildPath != "" {
		params.Set("build_path", spec.BuildPath)
	}

	c.invalidateRecipes(spec.Owner.SelfLink)

	var recipe CharmRecipe
	if _, err := c.rest.Post(ctx, root.CharmRecipesCollectionLink, params, &recipe); err != nil {
		return nil, errors.Annotatef(err, "creating recipe %q", spec.Name)
	}
	return &recipe, nil
}

// UpdateRecipe applies the given field updates to the recipe.
func (c *Client) UpdateRecipe(ctx context.Context, recipe *CharmRecipe, updates map[string]interface{}) (*CharmRecipe, error) {
	var updated CharmRecipe
	if err := c.patchEntry(ctx, recipe.SelfLink, recipe.HTTPETag, updates, &updated); err != nil {
		return nil, errors.Annotatef(err, "updating recipe %q", recipe.Name)
	}
	c.invalidateRecipes(recipe.OwnerLink)
	return &updated, nil
}

// DeleteRecipe removes the named recipe owned by owner in project.
func (c *Client) DeleteRecipe(ctx context.Context, name string, owner *Person, project *Project) error {
	recipes, err := c.RecipesFor(ctx, owner, project)
	if err != nil {
		return errors.Trace(err)
	}
	for _, recipe := range recipes {
		if recipe.Name != name {
			continue
		}
		if _, err := c.rest.Delete(ctx, recipe.SelfLink); err != nil {
			return errors.Annotatef(err, "deleting recipe %q", name)
		}
		c.invalidateRecipes(owner.SelfLink)
		return nil
	}
	return errors.NotFoundf("recipe %q for project %q (owner %q)", name, project.Name, owner.Name)
}

// Builds returns the builds of the recipe, newest first as Launchpad
// reports them.
func (c *Client) Builds(ctx context.Context, recipe *CharmRecipe) ([]Build, error) {
	builds, err := getCollection[Build](ctx, c, recipe.BuildsCollectionLink, nil)
	if err != nil {
		return nil, errors.Annotatef(err, "fetching builds of %q", recipe.Name)
	}
	return builds, nil
}

// BuildLog downloads the build's log text. The librarian serves the
// log gzip-compressed; the REST client undoes that.
func (c *Client) BuildLog(ctx context.Context, build *Build) (string, error) {
	if build.BuildLogURL == "" {
		return "", errors.NotFoundf("build log for %q", build.SelfLink)
	}
	data, err := c.rest.GetBlob(ctx, build.BuildLogURL)
	if err != nil {
		return "", errors.Annotatef(err, "fetching build log %q", build.BuildLogURL)
	}
	return string(data), nil
}

// RequestBuilds asks Launchpad for a new set of builds of the recipe.
// The recipe's auto build channels have to be passed along, otherwise
// the builds run without the overrides the recipe has defined.
func (c *Client) RequestBuilds(ctx context.Context, recipe *CharmRecipe) (*BuildRequest, error) {
	params := url.Values{}
	params.Set("ws.op", "requestBuilds")
	if len(recipe.AutoBuildChannels) > 0 {
		encoded, err := marshalParam(recipe.AutoBuildChannels)
		if err != nil {
			return nil, errors.Trace(err)
		}
		params.Set("channels", encoded)
	}

	var request BuildRequest
	if _, err := c.rest.Post(ctx, recipe.SelfLink, params, &request); err != nil {
		return nil, errors.Annotatef(err, "requesting builds of %q", recipe.Name)
	}
	return &request, nil
}

// BeginAuthorization starts the store upload authorization dance for
// the recipe. It returns the serialized root macaroon issued by the
// store, which has to be discharged against Candid before the
// authorization can be completed.
func (c *Client) BeginAuthorization(ctx context.Context, recipe *CharmRecipe) (string, error) {
	params := url.Values{}
	params.Set("ws.op", "beginAuthorization")

	var root string
	if _, err := c.rest.Post(ctx, recipe.SelfLink, params, &root); err != nil {
		return "", errors.Annotatef(err, "beginning authorization of %q", recipe.Name)
	}
	return root, nil
}

// CompleteAuthorization hands the discharged macaroon back to
// Launchpad, letting it upload the recipe's charms to the store.
func (c *Client) CompleteAuthorization(ctx context.Context, recipe *CharmRecipe, discharge string) error {
	params := url.Values{}
	params.Set("ws.op", "completeAuthorization")
	params.Set("discharge_macaroon", discharge)

	if _, err := c.rest.Post(ctx, recipe.SelfLink, params, nil); err != nil {
		return errors.Annotatef(err, "completing authorization of %q", recipe.Name)
	}
	return nil
}

// recipeParts are the attributes the reconciler manages, in a stable
// order so change reports read the same from run to run.
var recipeParts = []string{
	"auto_build",
	"auto_build_channels",
	"build_path",
	"store_channels",
	"store_upload",
}

// DiffRecipe compares a recipe against its desired spec field by
// field. It returns whether anything differs, the attribute updates
// to PATCH, and a human readable description of each change.
func DiffRecipe(recipe *CharmRecipe, spec RecipeSpec) (bool, map[string]interface{}, []string) {
	current := map[string]interface{}{
		"auto_build":          recipe.AutoBuild,
		"auto_build_channels": recipe.AutoBuildChannels,
		"build_path":          recipe.BuildPath,
		"store_channels":      recipe.StoreChannels,
		"store_upload":        recipe.StoreUpload,
	}
	wanted := map[string]interface{}{
		"auto_build":          spec.AutoBuild,
		"auto_build_channels": spec.AutoBuildChannels,
		"build_path":          spec.BuildPath,
		"store_channels":      spec.StoreChannels,
		"store_upload":        spec.StoreUpload,
	}

	updates := make(map[string]interface{})
	var changes []string
	for _, part := range recipeParts {
		if equalValue(current[part], wanted[part]) {
			continue
		}
		updates[part] = wanted[part]
		changes = append(changes, fmt.Sprintf("recipe.%s = %v", part, wanted[part]))
	}
	sort.Strings(changes)
	return len(updates) > 0, updates, changes
}

// equalValue compares attribute values, treating empty and nil
// containers as equal since Launchpad serialises absent values as
// null.
func equalValue(a, b interface{}) bool {
	if av, ok := a.(map[string]string); ok && len(av) == 0 {
		if bv, ok := b.(map[string]string); ok && len(bv) == 0 {
			return true
		}
	}
	if av, ok := a.([]string); ok && len(av) == 0 {
		if bv, ok := b.([]string); ok && len(bv) == 0 {
			return true
		}
	}
	return reflect.DeepEqual(a, b)
}
