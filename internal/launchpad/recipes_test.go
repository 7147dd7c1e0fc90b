// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package launchpad

import (
	"context"
	"net/url"

	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"
)

type recipesSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&recipesSuite{})

var (
	testOwner = &Person{
		Entry: Entry{SelfLink: testRoot + "/~openstack-charmers"},
		Name:  "openstack-charmers",
	}
	testProject = &Project{
		Entry: Entry{SelfLink: testRoot + "/charm-awesome"},
		Name:  "charm-awesome",
	}
)

func recipesREST() *stubREST {
	return &stubREST{responses: map[string]interface{}{
		testRoot + "/": map[string]interface{}{
			"charm_recipes_collection_link": testRoot + "/+charm-recipes",
		},
		testRoot + "/+charm-recipes": map[string]interface{}{
			"total_size": 2,
			"entries": []map[string]interface{}{{
				"self_link":    testRoot + "/~openstack-charmers/charm-awesome/+charm/awesome",
				"name":         "awesome",
				"owner_link":   testOwner.SelfLink,
				"project_link": testProject.SelfLink,
			}, {
				"self_link":    testRoot + "/~openstack-charmers/charm-other/+charm/other",
				"name":         "other",
				"owner_link":   testOwner.SelfLink,
				"project_link": testRoot + "/charm-other",
			}},
		},
	}}
}

func (s *recipesSuite) TestRecipesCachedPerOwner(c *gc.C) {
	rest := recipesREST()
	client := newTestClient(rest)

	for i := 0; i < 3; i++ {
		recipes, err := client.Recipes(context.Background(), testOwner)
		c.Assert(err, jc.ErrorIsNil)
		c.Check(recipes, gc.HasLen, 2)
	}
	// Root document plus one collection fetch; the rest served from
	// the cache.
	c.Check(rest.Calls(), gc.HasLen, 2)

	params, err := url.ParseQuery(rest.Calls()[1].Args[1].(string))
	c.Assert(err, jc.ErrorIsNil)
	c.Check(params.Get("ws.op"), gc.Equals, "findByOwner")
	c.Check(params.Get("owner"), gc.Equals, testOwner.SelfLink)
}

func (s *recipesSuite) TestRecipesForFiltersByProject(c *gc.C) {
	client := newTestClient(recipesREST())

	recipes, err := client.RecipesFor(context.Background(), testOwner, testProject)
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(recipes, gc.HasLen, 1)
	c.Check(recipes[0].Name, gc.Equals, "awesome")
}

func (s *recipesSuite) TestCreateRecipeInvalidatesCache(c *gc.C) {
	rest := recipesREST()
	client := newTestClient(rest)

	_, err := client.Recipes(context.Background(), testOwner)
	c.Assert(err, jc.ErrorIsNil)

	_, err = client.CreateRecipe(context.Background(), RecipeSpec{
		Name:    "awesome.focal",
		Owner:   testOwner,
		Project: testProject,
		GitRef: &GitRef{
			Entry: Entry{SelfLink: testRoot + "/~openstack-charmers/charm-awesome/+git/charm-awesome/+ref/stable/focal"},
			Path:  "refs/heads/stable/focal",
		},
		StoreName:         "awesome",
		StoreUpload:       true,
		StoreChannels:     []string{"focal/edge"},
		AutoBuild:         true,
		AutoBuildChannels: map[string]string{"charmcraft": "latest/stable"},
		BuildPath:         "charms/awesome",
	})
	c.Assert(err, jc.ErrorIsNil)

	post := rest.Calls()[2]
	c.Check(post.FuncName, gc.Equals, "Post")
	c.Check(post.Args[0], gc.Equals, testRoot+"/+charm-recipes")
	params, err := url.ParseQuery(post.Args[1].(string))
	c.Assert(err, jc.ErrorIsNil)
	c.Check(params.Get("ws.op"), gc.Equals, "new")
	c.Check(params.Get("name"), gc.Equals, "awesome.focal")
	c.Check(params.Get("store_upload"), gc.Equals, "true")
	c.Check(params.Get("store_channels"), gc.Equals, `["focal/edge"]`)
	c.Check(params.Get("auto_build_channels"), gc.Equals, `{"charmcraft":"latest/stable"}`)
	c.Check(params.Get("build_path"), gc.Equals, "charms/awesome")

	// The next listing goes back to Launchpad.
	_, err = client.Recipes(context.Background(), testOwner)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(rest.Calls()[3].FuncName, gc.Equals, "Get")
}

func (s *recipesSuite) TestDeleteRecipe(c *gc.C) {
	rest := recipesREST()
	client := newTestClient(rest)

	err := client.DeleteRecipe(context.Background(), "awesome", testOwner, testProject)
	c.Assert(err, jc.ErrorIsNil)

	deleted := rest.Calls()[2]
	c.Check(deleted.FuncName, gc.Equals, "Delete")
	c.Check(deleted.Args[0], gc.Equals, testRoot+"/~openstack-charmers/charm-awesome/+charm/awesome")
}

func (s *recipesSuite) TestDeleteRecipeNotFound(c *gc.C) {
	client := newTestClient(recipesREST())

	err := client.DeleteRecipe(context.Background(), "missing", testOwner, testProject)
	c.Assert(err, jc.Satisfies, errors.IsNotFound)
}

func (s *recipesSuite) TestBuildLog(c *gc.C) {
	rest := recipesREST()
	rest.blobs = map[string][]byte{
		"https://launchpadlibrarian.net/123/buildlog.txt.gz": []byte("log text"),
	}
	client := newTestClient(rest)

	build := &Build{BuildLogURL: "https://launchpadlibrarian.net/123/buildlog.txt.gz"}
	log, err := client.BuildLog(context.Background(), build)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(log, gc.Equals, "log text")

	rest.CheckCall(c, 0, "GetBlob", "https://launchpadlibrarian.net/123/buildlog.txt.gz")
}

func (s *recipesSuite) TestBuildLogMissing(c *gc.C) {
	client := newTestClient(recipesREST())

	_, err := client.BuildLog(context.Background(), &Build{})
	c.Assert(err, jc.Satisfies, errors.IsNotFound)
}

func (s *recipesSuite) TestRequestBuildsPassesChannels(c *gc.C) {
	rest := recipesREST()
	client := newTestClient(rest)

	recipe := &CharmRecipe{
		Entry:             Entry{SelfLink: testRoot + "/~openstack-charmers/charm-awesome/+charm/awesome"},
		Name:              "awesome",
		AutoBuildChannels: map[string]string{"charmcraft": "latest/stable"},
	}
	_, err := client.RequestBuilds(context.Background(), recipe)
	c.Assert(err, jc.ErrorIsNil)

	params, err := url.ParseQuery(rest.Calls()[0].Args[1].(string))
	c.Assert(err, jc.ErrorIsNil)
	c.Check(params.Get("ws.op"), gc.Equals, "requestBuilds")
	c.Check(params.Get("channels"), gc.Equals, `{"charmcraft":"latest/stable"}`)
}

func (s *recipesSuite) TestBeginAuthorization(c *gc.C) {
	rest := recipesREST()
	rest.postHook = func(rawURL string, params url.Values, result interface{}) error {
		*(result.(*string)) = "serialized-macaroon"
		return nil
	}
	client := newTestClient(rest)

	recipe := &CharmRecipe{
		Entry: Entry{SelfLink: testRoot + "/~openstack-charmers/charm-awesome/+charm/awesome"},
		Name:  "awesome",
	}
	root, err := client.BeginAuthorization(context.Background(), recipe)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(root, gc.Equals, "serialized-macaroon")

	params, err := url.ParseQuery(rest.Calls()[0].Args[1].(string))
	c.Assert(err, jc.ErrorIsNil)
	c.Check(params.Get("ws.op"), gc.Equals, "beginAuthorization")
}

type diffSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&diffSuite{})

func matchedRecipe() (*CharmRecipe, RecipeSpec) {
	recipe := &CharmRecipe{
		Name:              "awesome.focal",
		AutoBuild:         true,
		AutoBuildChannels: map[string]string{"charmcraft": "latest/stable"},
		BuildPath:         "charms/awesome",
		StoreChannels:     []string{"focal/edge"},
		StoreUpload:       true,
	}
	spec := RecipeSpec{
		Name:              "awesome.focal",
		AutoBuild:         true,
		AutoBuildChannels: map[string]string{"charmcraft": "latest/stable"},
		BuildPath:         "charms/awesome",
		StoreChannels:     []string{"focal/edge"},
		StoreUpload:       true,
	}
	return recipe, spec
}

func (s *diffSuite) TestNoChanges(c *gc.C) {
	recipe, spec := matchedRecipe()
	changed, updates, changes := DiffRecipe(recipe, spec)
	c.Check(changed, jc.IsFalse)
	c.Check(updates, gc.HasLen, 0)
	c.Check(changes, gc.HasLen, 0)
}

func (s *diffSuite) TestNilAndEmptyContainersEqual(c *gc.C) {
	recipe, spec := matchedRecipe()
	recipe.AutoBuildChannels = nil
	spec.AutoBuildChannels = map[string]string{}
	recipe.StoreChannels = []string{}
	spec.StoreChannels = nil

	changed, _, _ := DiffRecipe(recipe, spec)
	c.Check(changed, jc.IsFalse)
}

func (s *diffSuite) TestDetectsChanges(c *gc.C) {
	recipe, spec := matchedRecipe()
	recipe.AutoBuild = false
	spec.StoreChannels = []string{"focal/edge", "focal/beta"}

	changed, updates, changes := DiffRecipe(recipe, spec)
	c.Check(changed, jc.IsTrue)
	c.Check(updates, jc.DeepEquals, map[string]interface{}{
		"auto_build":     true,
		"store_channels": []string{"focal/edge", "focal/beta"},
	})
	c.Check(changes, jc.DeepEquals, []string{
		"recipe.auto_build = true",
		"recipe.store_channels = [focal/edge focal/beta]",
	})
}

func (s *diffSuite) TestDetectsStoreUploadDisabled(c *gc.C) {
	recipe, spec := matchedRecipe()
	spec.StoreUpload = false

	changed, updates, _ := DiffRecipe(recipe, spec)
	c.Check(changed, jc.IsTrue)
	c.Check(updates, jc.DeepEquals, map[string]interface{}{
		"store_upload": false,
	})
}
