// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package charmhub is a client for the unauthenticated, read-only
// parts of the CharmHub v2 API: charm info with its channel map, and
// resource revision listings.
package charmhub

import (
	"context"
	"net/http"
	"net/url"

	"github.com/juju/errors"

	"github.com/canonical/charmhub-lp-tool/internal/charmhub/path"
	"github.com/canonical/charmhub-lp-tool/internal/charmhub/transport"
)

const (
	// DefaultServerURL is the default location of the CharmHub API.
	DefaultServerURL = "https://api.charmhub.io"

	serverVersion = "v2"
	serverEntity  = "charms"
)

// Logger is a in place interface to represent a logger for consuming.
type Logger interface {
	IsTraceEnabled() bool
	Errorf(string, ...interface{})
	Tracef(string, ...interface{})
}

// Config holds configuration for creating a new CharmHub client.
type Config struct {
	// URL holds the base endpoint URL of the CharmHub, with no version
	// suffix or trailing slash, but with no path either.
	URL string

	// Headers allow the defining of a set of default headers when sending
	// the requests. These headers augment the headers required for sending
	// requests.
	Headers http.Header

	// Logger to use during the API requests.
	Logger Logger
}

// BasePath returns the base configuration path for speaking to the server.
func (c Config) BasePath() (path.Path, error) {
	baseURL, err := url.Parse(c.URL)
	if err != nil {
		return path.Path{}, errors.Trace(err)
	}
	basePath, err := path.MakePath(baseURL).Join(serverVersion, serverEntity)
	if err != nil {
		return path.Path{}, errors.Trace(err)
	}
	return basePath, nil
}

// Client defines a client for interacting with the CharmHub API.
type Client struct {
	infoClient      *infoClient
	resourcesClient *resourcesClient
	logger          Logger
}

// NewClient creates a new CharmHub client from the config.
func NewClient(config Config) (*Client, error) {
	if config.URL == "" {
		config.URL = DefaultServerURL
	}
	if config.Logger == nil {
		return nil, errors.NotValidf("nil logger")
	}

	base, err := config.BasePath()
	if err != nil {
		return nil, errors.Trace(err)
	}

	infoPath, err := base.Join("info")
	if err != nil {
		return nil, errors.Annotate(err, "constructing info path")
	}
	resourcesPath, err := base.Join("resources")
	if err != nil {
		return nil, errors.Annotate(err, "constructing resources path")
	}

	httpClient := NewAPIRequester(DefaultHTTPTransport(config.Logger), config.Logger)
	restClient := NewHTTPRESTClient(httpClient, config.Headers)

	return &Client{
		infoClient:      newInfoClient(infoPath, restClient, config.Logger),
		resourcesClient: newResourcesClient(resourcesPath, restClient, config.Logger),
		logger:          config.Logger,
	}, nil
}

// Info returns the information for the given charm, including its
// full channel map.
func (c *Client) Info(ctx context.Context, name string) (transport.InfoResponse, error) {
	return c.infoClient.Info(ctx, name)
}

// ListResourceRevisions returns all the revision of the given charm
// resource.
func (c *Client) ListResourceRevisions(ctx context.Context, charm, resource string) ([]transport.ResourceRevision, error) {
	return c.resourcesClient.ListResourceRevisions(ctx, charm, resource)
}
