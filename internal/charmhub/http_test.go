// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package charmhub

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"

	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/canonical/charmhub-lp-tool/internal/charmhub/path"
)

type requesterSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&requesterSuite{})

type transportFunc func(*http.Request) (*http.Response, error)

func (f transportFunc) Do(req *http.Request) (*http.Response, error) {
	return f(req)
}

func makeResponse(status int, contentType, body string) *http.Response {
	header := make(http.Header)
	header.Set("Content-Type", contentType)
	return &http.Response{
		StatusCode: status,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func (s *requesterSuite) newRequest(c *gc.C) *http.Request {
	req, err := http.NewRequestWithContext(context.Background(), "GET", "https://api.charmhub.io/v2/charms/info/ubuntu", nil)
	c.Assert(err, jc.ErrorIsNil)
	return req
}

func (s *requesterSuite) TestDoSuccess(c *gc.C) {
	requester := NewAPIRequester(transportFunc(func(*http.Request) (*http.Response, error) {
		return makeResponse(http.StatusOK, JSON, `{}`), nil
	}), testLogger)

	resp, err := requester.Do(s.newRequest(c))
	c.Assert(err, jc.ErrorIsNil)
	c.Check(resp.StatusCode, gc.Equals, http.StatusOK)
}

func (s *requesterSuite) TestDoServerError(c *gc.C) {
	requester := NewAPIRequester(transportFunc(func(*http.Request) (*http.Response, error) {
		return makeResponse(http.StatusBadGateway, "text/html", "boom"), nil
	}), testLogger)

	_, err := requester.Do(s.newRequest(c))
	c.Assert(err, gc.ErrorMatches, `server error "https://api.charmhub.io/v2/charms/info/ubuntu"`)
}

func (s *requesterSuite) TestDoNotFoundWithBadContentType(c *gc.C) {
	requester := NewAPIRequester(transportFunc(func(*http.Request) (*http.Response, error) {
		return makeResponse(http.StatusNotFound, "text/html", "not found"), nil
	}), testLogger)

	_, err := requester.Do(s.newRequest(c))
	c.Assert(err, gc.ErrorMatches, `unexpected charm-hub url .* when parsing headers`)
}

func (s *requesterSuite) TestDoUnexpectedContentType(c *gc.C) {
	requester := NewAPIRequester(transportFunc(func(*http.Request) (*http.Response, error) {
		return makeResponse(http.StatusBadRequest, "text/html", "bad request"), nil
	}), testLogger)

	_, err := requester.Do(s.newRequest(c))
	c.Assert(err, gc.ErrorMatches, `unexpected content-type from server "text/html"`)
}

type restClientSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&restClientSuite{})

func (s *restClientSuite) TestGet(c *gc.C) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.Check(r.Header.Get("Accept"), gc.Equals, JSON)
		w.Header().Set("Content-Type", JSON)
		_, _ = w.Write([]byte(`{"name": "awesome"}`))
	}))
	defer server.Close()

	base, err := url.Parse(server.URL)
	c.Assert(err, jc.ErrorIsNil)

	client := NewHTTPRESTClient(http.DefaultClient, nil)

	var result struct {
		Name string `json:"name"`
	}
	resp, err := client.Get(context.Background(), path.MakePath(base), &result)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(resp.StatusCode, gc.Equals, http.StatusOK)
	c.Check(result.Name, gc.Equals, "awesome")
}

func (s *restClientSuite) TestGetComposesClientHeaders(c *gc.C) {
	var accept, via string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accept = r.Header.Get("Accept")
		via = r.Header.Get("Via")
		w.Header().Set("Content-Type", JSON)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	base, err := url.Parse(server.URL)
	c.Assert(err, jc.ErrorIsNil)

	headers := make(http.Header)
	headers.Set("Via", "test")
	client := NewHTTPRESTClient(http.DefaultClient, headers)

	_, err = client.Get(context.Background(), path.MakePath(base), nil)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(accept, gc.Equals, JSON)
	c.Check(via, gc.Equals, "test")
}
