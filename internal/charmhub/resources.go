// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package charmhub

import (
	"context"
	"net/http"

	"github.com/juju/errors"
	"github.com/kr/pretty"

	"github.com/canonical/charmhub-lp-tool/internal/charmhub/path"
	"github.com/canonical/charmhub-lp-tool/internal/charmhub/transport"
)

// resourcesClient defines a client for resources requests.
type resourcesClient struct {
	path   path.Path
	client RESTClient
	logger Logger
}

// newResourcesClient creates a resourcesClient for requesting
// resource revisions.
func newResourcesClient(path path.Path, client RESTClient, logger Logger) *resourcesClient {
	return &resourcesClient{
		path:   path,
		client: client,
		logger: logger,
	}
}

// ListResourceRevisions returns a slice of resource revisions for the
// provided resource of the given charm.
func (c *resourcesClient) ListResourceRevisions(ctx context.Context, charm, resource string) ([]transport.ResourceRevision, error) {
	isTraceEnabled := c.logger.IsTraceEnabled()
	if isTraceEnabled {
		c.logger.Tracef("ListResourceRevisions(%s, %s)", charm, resource)
	}

	var resp transport.ResourcesResponse
	path, err := c.path.Join(charm, resource, "revisions")
	if err != nil {
		return nil, errors.Trace(err)
	}
	restResp, err := c.client.Get(ctx, path, &resp)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if restResp.StatusCode == http.StatusNotFound {
		return nil, errors.NotFoundf("%q for %q", charm, resource)
	}
	if err := resp.ErrorList.Combine(); err != nil {
		return nil, errors.Trace(err)
	}

	if isTraceEnabled {
		c.logger.Tracef("ListResourceRevisions(%s, %s) unmarshalled: %s", charm, resource, pretty.Sprint(resp.Revisions))
	}
	return resp.Revisions, nil
}
