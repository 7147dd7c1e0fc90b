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

// defaultInfoFields is what we ask the API to include in an info
// response. The channel map carries the released revisions and their
// resources, which is everything the release tooling needs.
const defaultInfoFields = "channel-map,default-release,name,type"

// infoClient defines a client for info requests.
type infoClient struct {
	path   path.Path
	client RESTClient
	logger Logger
}

// newInfoClient creates an infoClient for requesting charm info.
func newInfoClient(path path.Path, client RESTClient, logger Logger) *infoClient {
	return &infoClient{
		path:   path,
		client: client,
		logger: logger,
	}
}

// Info requests the information of a given charm. If that charm doesn't
// exist an error stating that fact will be returned.
func (c *infoClient) Info(ctx context.Context, name string) (transport.InfoResponse, error) {
	isTraceEnabled := c.logger.IsTraceEnabled()
	if isTraceEnabled {
		c.logger.Tracef("Info(%s)", name)
	}

	var resp transport.InfoResponse
	path, err := c.path.Join(name)
	if err != nil {
		return resp, errors.Trace(err)
	}
	path, err = path.Query("fields", defaultInfoFields)
	if err != nil {
		return resp, errors.Trace(err)
	}

	restResp, err := c.client.Get(ctx, path, &resp)
	if err != nil {
		return resp, errors.Trace(err)
	}
	if restResp.StatusCode == http.StatusNotFound {
		return resp, errors.NotFoundf(name)
	}
	if err := resp.ErrorList.Combine(); err != nil {
		if restResp.StatusCode == http.StatusNotFound {
			return resp, errors.NotFoundf(name)
		}
		return resp, errors.Trace(err)
	}

	if isTraceEnabled {
		c.logger.Tracef("Info(%s) unmarshalled: %s", name, pretty.Sprint(resp))
	}
	return resp, nil
}
