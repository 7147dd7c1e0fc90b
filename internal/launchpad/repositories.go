// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package launchpad

import (
	"context"
	"net/url"

	"github.com/google/go-querystring/query"
	"github.com/juju/errors"
)

type getRepositoriesParams struct {
	Op     string `url:"ws.op"`
	Target string `url:"target"`
}

// Repositories returns the git repositories whose target is the given
// project.
func (c *Client) Repositories(ctx context.Context, project *Project) ([]GitRepository, error) {
	root, err := c.serviceRootLinks(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	params, err := query.Values(getRepositoriesParams{
		Op:     "getRepositories",
		Target: project.SelfLink,
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	repos, err := getCollection[GitRepository](ctx, c, root.GitRepositoriesCollectionLink, params)
	if err != nil {
		return nil, errors.Annotatef(err, "fetching repositories of %q", project.Name)
	}
	return repos, nil
}

// RepositoryFor returns the git repository in project owned by owner,
// or a NotFound error when the project has no repository under that
// owner.
func (c *Client) RepositoryFor(ctx context.Context, owner *Person, project *Project) (*GitRepository, error) {
	repos, err := c.Repositories(ctx, project)
	if err != nil {
		return nil, errors.Trace(err)
	}
	for i := range repos {
		if repos[i].OwnerLink == owner.SelfLink {
			return &repos[i], nil
		}
	}
	return nil, errors.NotFoundf("repository for %q owned by %q", project.Name, owner.Name)
}

// SetDefaultRepository marks the repository as the default one for
// its target project.
func (c *Client) SetDefaultRepository(ctx context.Context, project *Project, repo *GitRepository) error {
	root, err := c.serviceRootLinks(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	params := url.Values{}
	params.Set("ws.op", "setDefaultRepository")
	params.Set("target", project.SelfLink)
	params.Set("repository", repo.SelfLink)

	if _, err := c.rest.Post(ctx, root.GitRepositoriesCollectionLink, params, nil); err != nil {
		return errors.Annotatef(err, "setting default repository of %q", project.Name)
	}
	return nil
}

// NewCodeImport creates a git-to-git code import under the project,
// mirroring the upstream repository at rcsURL into a repository with
// the given name.
func (c *Client) NewCodeImport(ctx context.Context, project *Project, name, rcsURL string) (*CodeImport, error) {
	params := url.Values{}
	params.Set("ws.op", "newCodeImport")
	params.Set("branch_name", name)
	params.Set("rcs_type", "Git")
	params.Set("target_rcs_type", "Git")
	params.Set("url", rcsURL)

	var ci CodeImport
	if _, err := c.rest.Post(ctx, project.SelfLink, params, &ci); err != nil {
		return nil, errors.Annotatef(err, "creating code import %q", name)
	}
	return &ci, nil
}

// CodeImportFor fetches the code import driving the repository, if
// any. Repositories created by hand have none.
func (c *Client) CodeImportFor(ctx context.Context, repo *GitRepository) (*CodeImport, error) {
	if repo.CodeImportLink == "" {
		return nil, errors.NotFoundf("code import for %q", repo.Name)
	}
	var ci CodeImport
	if _, err := c.rest.Get(ctx, repo.CodeImportLink, nil, &ci); err != nil {
		return nil, errors.Annotatef(err, "fetching code import of %q", repo.Name)
	}
	return &ci, nil
}

// RequestImport asks Launchpad to run the code import now instead of
// waiting for its next scheduled mirror.
func (c *Client) RequestImport(ctx context.Context, ci *CodeImport) error {
	params := url.Values{}
	params.Set("ws.op", "requestImport")

	if _, err := c.rest.Post(ctx, ci.SelfLink, params, nil); err != nil {
		return errors.Annotate(err, "requesting code import")
	}
	return nil
}

// Branches returns the refs of the repository. Only branch refs carry
// a meaningful name; tag refs come back as-is.
func (c *Client) Branches(ctx context.Context, repo *GitRepository) ([]GitRef, error) {
	refs, err := getCollection[GitRef](ctx, c, repo.RefsCollectionLink, nil)
	if err != nil {
		return nil, errors.Annotatef(err, "fetching refs of %q", repo.Name)
	}
	return refs, nil
}

// Branch returns the ref with the given path, e.g. refs/heads/main.
func (c *Client) Branch(ctx context.Context, repo *GitRepository, path string) (*GitRef, error) {
	refs, err := c.Branches(ctx, repo)
	if err != nil {
		return nil, errors.Trace(err)
	}
	for i := range refs {
		if refs[i].Path == path {
			return &refs[i], nil
		}
	}
	return nil, errors.NotFoundf("ref %q in %q", path, repo.Name)
}
