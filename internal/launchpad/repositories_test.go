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

type repositoriesSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&repositoriesSuite{})

func repositoriesREST() *stubREST {
	repoLink := testRoot + "/~openstack-charmers/charm-awesome/+git/charm-awesome"
	return &stubREST{responses: map[string]interface{}{
		testRoot + "/": map[string]interface{}{
			"git_repositories_collection_link": testRoot + "/+git",
		},
		testRoot + "/+git": map[string]interface{}{
			"total_size": 2,
			"entries": []map[string]interface{}{{
				"self_link":            repoLink,
				"name":                 "charm-awesome",
				"owner_link":           testOwner.SelfLink,
				"target_link":          testProject.SelfLink,
				"refs_collection_link": repoLink + "/refs",
			}, {
				"self_link":   testRoot + "/~someone-else/charm-awesome/+git/fork",
				"name":        "fork",
				"owner_link":  testRoot + "/~someone-else",
				"target_link": testProject.SelfLink,
			}},
		},
		repoLink + "/refs": map[string]interface{}{
			"total_size": 2,
			"entries": []map[string]interface{}{{
				"path":        "refs/heads/main",
				"commit_sha1": "aaaa",
			}, {
				"path":        "refs/heads/stable/focal",
				"commit_sha1": "bbbb",
			}},
		},
	}}
}

func (s *repositoriesSuite) TestRepositoryFor(c *gc.C) {
	client := newTestClient(repositoriesREST())

	repo, err := client.RepositoryFor(context.Background(), testOwner, testProject)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(repo.Name, gc.Equals, "charm-awesome")
}

func (s *repositoriesSuite) TestRepositoryForNotFound(c *gc.C) {
	client := newTestClient(repositoriesREST())

	_, err := client.RepositoryFor(context.Background(), &Person{
		Entry: Entry{SelfLink: testRoot + "/~nobody"},
		Name:  "nobody",
	}, testProject)
	c.Assert(err, jc.Satisfies, errors.IsNotFound)
}

func (s *repositoriesSuite) TestSetDefaultRepository(c *gc.C) {
	rest := repositoriesREST()
	client := newTestClient(rest)

	repo, err := client.RepositoryFor(context.Background(), testOwner, testProject)
	c.Assert(err, jc.ErrorIsNil)
	err = client.SetDefaultRepository(context.Background(), testProject, repo)
	c.Assert(err, jc.ErrorIsNil)

	post := rest.Calls()[2]
	c.Check(post.FuncName, gc.Equals, "Post")
	c.Check(post.Args[0], gc.Equals, testRoot+"/+git")
	params, err := url.ParseQuery(post.Args[1].(string))
	c.Assert(err, jc.ErrorIsNil)
	c.Check(params.Get("ws.op"), gc.Equals, "setDefaultRepository")
	c.Check(params.Get("repository"), gc.Equals, repo.SelfLink)
}

func (s *repositoriesSuite) TestNewCodeImport(c *gc.C) {
	rest := repositoriesREST()
	client := newTestClient(rest)

	_, err := client.NewCodeImport(context.Background(), testProject, "charm-awesome", "https://opendev.org/openstack/charm-awesome")
	c.Assert(err, jc.ErrorIsNil)

	post := rest.Calls()[0]
	c.Check(post.Args[0], gc.Equals, testProject.SelfLink)
	params, err := url.ParseQuery(post.Args[1].(string))
	c.Assert(err, jc.ErrorIsNil)
	c.Check(params.Get("ws.op"), gc.Equals, "newCodeImport")
	c.Check(params.Get("rcs_type"), gc.Equals, "Git")
	c.Check(params.Get("target_rcs_type"), gc.Equals, "Git")
	c.Check(params.Get("url"), gc.Equals, "https://opendev.org/openstack/charm-awesome")
}

func (s *repositoriesSuite) TestCodeImportForMissing(c *gc.C) {
	client := newTestClient(repositoriesREST())

	_, err := client.CodeImportFor(context.Background(), &GitRepository{Name: "by-hand"})
	c.Assert(err, jc.Satisfies, errors.IsNotFound)
}

func (s *repositoriesSuite) TestBranch(c *gc.C) {
	client := newTestClient(repositoriesREST())

	repo, err := client.RepositoryFor(context.Background(), testOwner, testProject)
	c.Assert(err, jc.ErrorIsNil)

	ref, err := client.Branch(context.Background(), repo, "refs/heads/stable/focal")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(ref.CommitSHA1, gc.Equals, "bbbb")
	c.Check(ref.BranchName(), gc.Equals, "stable/focal")

	_, err = client.Branch(context.Background(), repo, "refs/heads/nope")
	c.Assert(err, jc.Satisfies, errors.IsNotFound)
}
