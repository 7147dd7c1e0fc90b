// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package launchpad is a typed client for the parts of the Launchpad
// REST API the charm fleet tooling needs: people, projects and their
// series, git repositories and code imports, and charm recipes with
// their builds.
//
// Launchpad exposes entries and collections as JSON documents. Named
// operations are invoked with a ws.op parameter, in the query string
// for reads and form-encoded for mutations; entry updates are JSON
// PATCH requests guarded by the entry's etag.
package launchpad

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/retry"
)

const (
	// DefaultServiceRoot is the production Launchpad API root. The
	// devel version carries the charm recipe API.
	DefaultServiceRoot = "https://api.launchpad.net/devel"
)

// Logger is an in place interface to represent a logger for
// consuming.
type Logger interface {
	IsTraceEnabled() bool
	Errorf(string, ...interface{})
	Tracef(string, ...interface{})
}

// Config holds configuration for creating a new Launchpad client.
type Config struct {
	// ServiceRoot holds the base URL of the Launchpad API, without a
	// trailing slash.
	ServiceRoot string

	// Headers are sent with every request. Authenticated access is
	// established by the caller providing the pre-signed OAuth
	// headers; anonymous access needs none.
	Headers http.Header

	// Logger to use during the API requests.
	Logger Logger
}

// Client is a Launchpad API client.
type Client struct {
	base   string
	rest   RESTClient
	logger Logger
	clock  clock.Clock

	rootOnce sync.Once
	rootErr  error
	root     serviceRoot

	mu          sync.Mutex
	recipeCache map[string][]CharmRecipe
}

// NewClient creates a new Launchpad client from the config.
func NewClient(config Config) (*Client, error) {
	if config.ServiceRoot == "" {
		config.ServiceRoot = DefaultServiceRoot
	}
	if config.Logger == nil {
		return nil, errors.NotValidf("nil logger")
	}

	requester := NewAPIRequester(DefaultHTTPTransport(config.Logger), config.Logger)
	return &Client{
		base:        config.ServiceRoot,
		rest:        NewHTTPRESTClient(requester, config.Headers),
		logger:      config.Logger,
		clock:       clock.WallClock,
		recipeCache: make(map[string][]CharmRecipe),
	}, nil
}

// NewClientForTesting creates a client backed by the given RESTClient.
func NewClientForTesting(serviceRoot string, rest RESTClient, logger Logger, clk clock.Clock) *Client {
	return &Client{
		base:        serviceRoot,
		rest:        rest,
		logger:      logger,
		clock:       clk,
		recipeCache: make(map[string][]CharmRecipe),
	}
}

// serviceRootLinks fetches (once) the API root document carrying the
// top level collection links.
func (c *Client) serviceRootLinks(ctx context.Context) (serviceRoot, error) {
	c.rootOnce.Do(func() {
		_, err := c.rest.Get(ctx, c.base+"/", nil, &c.root)
		if err != nil {
			c.rootErr = errors.Annotate(err, "fetching service root")
		}
	})
	return c.root, c.rootErr
}

// Person returns the person or team with the given name.
func (c *Client) Person(ctx context.Context, name string) (*Person, error) {
	var person Person
	if _, err := c.rest.Get(ctx, c.base+"/~"+name, nil, &person); err != nil {
		return nil, errors.Annotatef(err, "person %q", name)
	}
	return &person, nil
}

// Project returns the project with the given name.
func (c *Client) Project(ctx context.Context, name string) (*Project, error) {
	var project Project
	if _, err := c.rest.Get(ctx, c.base+"/"+name, nil, &project); err != nil {
		return nil, errors.Annotatef(err, "project %q", name)
	}
	return &project, nil
}

// Series returns all series of the given project.
func (c *Client) Series(ctx context.Context, project *Project) ([]ProjectSeries, error) {
	return getCollection[ProjectSeries](ctx, c, project.SeriesCollectionLink, nil)
}

// SetProjectVCS updates the version control system of the project.
func (c *Client) SetProjectVCS(ctx context.Context, project *Project, vcs string) (*Project, error) {
	var updated Project
	if err := c.patchEntry(ctx, project.SelfLink, project.HTTPETag, map[string]interface{}{
		"vcs": vcs,
	}, &updated); err != nil {
		return nil, errors.Annotatef(err, "setting vcs of %q", project.Name)
	}
	return &updated, nil
}

// NewSeries creates a new series on the project.
func (c *Client) NewSeries(ctx context.Context, project *Project, spec SeriesSpec) (*ProjectSeries, error) {
	params := url.Values{}
	params.Set("ws.op", "newSeries")
	params.Set("name", spec.Name)
	params.Set("summary", spec.Summary)

	var series ProjectSeries
	if _, err := c.rest.Post(ctx, project.SelfLink, params, &series); err != nil {
		return nil, errors.Annotatef(err, "creating series %q on %q", spec.Name, project.Name)
	}

	// Status, title and active flag are entry attributes rather than
	// creation parameters.
	changes := make(map[string]interface{})
	if spec.Status != "" {
		changes["status"] = spec.Status
	}
	if spec.Title != "" {
		changes["title"] = spec.Title
	}
	if !spec.Active {
		changes["active"] = false
	}
	if len(changes) == 0 {
		return &series, nil
	}
	updated := series
	if err := c.patchEntry(ctx, series.SelfLink, series.HTTPETag, changes, &updated); err != nil {
		return nil, errors.Annotatef(err, "configuring series %q", spec.Name)
	}
	return &updated, nil
}

// SeriesSpec describes a project series to create.
type SeriesSpec struct {
	Name    string
	Title   string
	Summary string
	Status  string
	Active  bool
}

// getCollection fetches a full Launchpad collection, following the
// next_collection_link paging.
func getCollection[T any](ctx context.Context, c *Client, rawURL string, params url.Values) ([]T, error) {
	var entries []T
	next := rawURL
	for next != "" {
		var page collection[T]
		if _, err := c.rest.Get(ctx, next, params, &page); err != nil {
			return nil, errors.Trace(err)
		}
		entries = append(entries, page.Entries...)
		next = page.NextCollectionLink
		// Paging parameters are baked into the next link.
		params = nil
	}
	return entries, nil
}

// patchEntry PATCHes an entry. When Launchpad reports the entry
// changed underneath us the entry is refetched for a fresh etag and
// the update retried a few times before giving up.
func (c *Client) patchEntry(ctx context.Context, selfLink, etag string, changes, result interface{}) error {
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			_, err := c.rest.Patch(ctx, selfLink, etag, changes, result)
			return err
		},
		IsFatalError: func(err error) bool {
			return !errors.Is(err, ErrPreconditionFailed)
		},
		NotifyFunc: func(err error, attempt int) {
			c.logger.Tracef("precondition failed for %s (attempt %d), refetching and retrying", selfLink, attempt)
			var entry Entry
			if _, err := c.rest.Get(ctx, selfLink, nil, &entry); err == nil {
				etag = entry.HTTPETag
			}
		},
		Attempts: 5,
		Delay:    time.Second,
		Clock:    c.clock,
	})
	if retry.IsAttemptsExceeded(err) {
		err = retry.LastError(err)
	}
	return errors.Trace(err)
}

// marshalParam renders an operation parameter value the way the API
// expects: strings are passed through, anything else is JSON.
func marshalParam(value interface{}) (string, error) {
	if s, ok := value.(string); ok {
		return s, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return "", errors.Trace(err)
	}
	return string(data), nil
}
