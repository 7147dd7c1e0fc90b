// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package launchpad

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"
)

var testLogger = loggo.GetLogger("test.launchpad")

const testRoot = "https://api.staging.launchpad.net/devel"

// stubREST records calls and serves canned JSON documents keyed by
// URL. Mutating verbs can be overridden per test.
type stubREST struct {
	testing.Stub

	responses map[string]interface{}
	blobs     map[string][]byte
	postHook  func(rawURL string, params url.Values, result interface{}) error
	patchHook func(rawURL, etag string, changes, result interface{}) error
}

func (s *stubREST) respond(rawURL string, result interface{}) error {
	value, ok := s.responses[rawURL]
	if !ok || result == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, result)
}

func (s *stubREST) Get(ctx context.Context, rawURL string, params url.Values, result interface{}) (RESTResponse, error) {
	s.AddCall("Get", rawURL, params.Encode())
	if err := s.NextErr(); err != nil {
		return RESTResponse{}, err
	}
	return RESTResponse{StatusCode: 200}, s.respond(rawURL, result)
}

func (s *stubREST) GetBlob(ctx context.Context, rawURL string) ([]byte, error) {
	s.AddCall("GetBlob", rawURL)
	if err := s.NextErr(); err != nil {
		return nil, err
	}
	return s.blobs[rawURL], nil
}

func (s *stubREST) Post(ctx context.Context, rawURL string, params url.Values, result interface{}) (RESTResponse, error) {
	s.AddCall("Post", rawURL, params.Encode())
	if err := s.NextErr(); err != nil {
		return RESTResponse{}, err
	}
	if s.postHook != nil {
		if err := s.postHook(rawURL, params, result); err != nil {
			return RESTResponse{}, err
		}
	}
	return RESTResponse{StatusCode: 201}, nil
}

func (s *stubREST) Patch(ctx context.Context, rawURL, etag string, changes, result interface{}) (RESTResponse, error) {
	s.AddCall("Patch", rawURL, etag)
	if err := s.NextErr(); err != nil {
		return RESTResponse{}, err
	}
	if s.patchHook != nil {
		if err := s.patchHook(rawURL, etag, changes, result); err != nil {
			return RESTResponse{}, err
		}
	}
	return RESTResponse{StatusCode: 209}, nil
}

func (s *stubREST) Delete(ctx context.Context, rawURL string) (RESTResponse, error) {
	s.AddCall("Delete", rawURL)
	if err := s.NextErr(); err != nil {
		return RESTResponse{}, err
	}
	return RESTResponse{StatusCode: 200}, nil
}

func newTestClient(rest RESTClient) *Client {
	return NewClientForTesting(testRoot, rest, testLogger, testclock.NewDilatedWallClock(10*time.Millisecond))
}

type clientSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&clientSuite{})

func (s *clientSuite) TestPerson(c *gc.C) {
	rest := &stubREST{responses: map[string]interface{}{
		testRoot + "/~openstack-charmers": map[string]interface{}{
			"self_link":    testRoot + "/~openstack-charmers",
			"name":         "openstack-charmers",
			"display_name": "OpenStack Charmers",
		},
	}}
	client := newTestClient(rest)

	person, err := client.Person(context.Background(), "openstack-charmers")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(person.Name, gc.Equals, "openstack-charmers")
	c.Check(person.DisplayName, gc.Equals, "OpenStack Charmers")
	rest.CheckCall(c, 0, "Get", testRoot+"/~openstack-charmers", "")
}

func (s *clientSuite) TestProjectNotFound(c *gc.C) {
	rest := &stubREST{}
	rest.SetErrors(errors.NotFoundf("resource"))
	client := newTestClient(rest)

	_, err := client.Project(context.Background(), "no-such-project")
	c.Assert(err, jc.Satisfies, errors.IsNotFound)
}

func (s *clientSuite) TestServiceRootFetchedOnce(c *gc.C) {
	rest := &stubREST{responses: map[string]interface{}{
		testRoot + "/": map[string]interface{}{
			"charm_recipes_collection_link": testRoot + "/+charm-recipes",
		},
	}}
	client := newTestClient(rest)

	for i := 0; i < 3; i++ {
		root, err := client.serviceRootLinks(context.Background())
		c.Assert(err, jc.ErrorIsNil)
		c.Check(root.CharmRecipesCollectionLink, gc.Equals, testRoot+"/+charm-recipes")
	}
	c.Check(rest.Calls(), gc.HasLen, 1)
}

func (s *clientSuite) TestGetCollectionFollowsPaging(c *gc.C) {
	first := testRoot + "/project/series"
	second := first + "?ws.start=2"
	rest := &stubREST{responses: map[string]interface{}{
		first: map[string]interface{}{
			"total_size":           3,
			"next_collection_link": second,
			"entries": []map[string]interface{}{
				{"name": "yoga"}, {"name": "zed"},
			},
		},
		second: map[string]interface{}{
			"total_size": 3,
			"entries": []map[string]interface{}{
				{"name": "antelope"},
			},
		},
	}}
	client := newTestClient(rest)

	series, err := getCollection[ProjectSeries](context.Background(), client, first, nil)
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(series, gc.HasLen, 3)
	c.Check(series[2].Name, gc.Equals, "antelope")
	c.Check(rest.Calls(), gc.HasLen, 2)
}

func (s *clientSuite) TestPatchEntryRetriesOnPreconditionFailed(c *gc.C) {
	link := testRoot + "/~team/project/+charm/thing"
	rest := &stubREST{
		responses: map[string]interface{}{
			link: map[string]interface{}{
				"self_link": link,
				"http_etag": "fresh-etag",
			},
		},
	}
	var etags []string
	rest.patchHook = func(rawURL, etag string, changes, result interface{}) error {
		etags = append(etags, etag)
		if len(etags) == 1 {
			return errors.Annotate(ErrPreconditionFailed, "entry changed")
		}
		return nil
	}
	client := newTestClient(rest)

	err := client.patchEntry(context.Background(), link, "stale-etag", map[string]interface{}{
		"auto_build": true,
	}, nil)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(etags, jc.DeepEquals, []string{"stale-etag", "fresh-etag"})
}

func (s *clientSuite) TestPatchEntryFatalOnOtherErrors(c *gc.C) {
	rest := &stubREST{
		patchHook: func(rawURL, etag string, changes, result interface{}) error {
			return errors.Unauthorizedf("nope")
		},
	}
	client := newTestClient(rest)

	err := client.patchEntry(context.Background(), testRoot+"/entry", "etag", nil, nil)
	c.Assert(err, jc.Satisfies, errors.IsUnauthorized)
	// A single attempt, no refetch.
	c.Check(rest.Calls(), gc.HasLen, 1)
}

func (s *clientSuite) TestMarshalParam(c *gc.C) {
	encoded, err := marshalParam("plain")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(encoded, gc.Equals, "plain")

	encoded, err = marshalParam([]string{"latest/edge", "latest/stable"})
	c.Assert(err, jc.ErrorIsNil)
	c.Check(encoded, gc.Equals, `["latest/edge","latest/stable"]`)

	encoded, err = marshalParam(true)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(encoded, gc.Equals, "true")
}

func (s *clientSuite) TestNewSeries(c *gc.C) {
	projectLink := testRoot + "/awesome-charm"
	seriesLink := projectLink + "/focal"
	rest := &stubREST{
		responses: map[string]interface{}{
			seriesLink: map[string]interface{}{
				"self_link": seriesLink,
				"http_etag": "etag-1",
				"name":      "focal",
			},
		},
		postHook: func(rawURL string, params url.Values, result interface{}) error {
			series := result.(*ProjectSeries)
			series.SelfLink = seriesLink
			series.HTTPETag = "etag-1"
			series.Name = params.Get("name")
			return nil
		},
	}
	client := newTestClient(rest)

	series, err := client.NewSeries(context.Background(), &Project{
		Entry: Entry{SelfLink: projectLink},
		Name:  "awesome-charm",
	}, SeriesSpec{
		Name:    "focal",
		Title:   "focal",
		Summary: "Tracks the focal charms.",
		Status:  "Current Stable Release",
		Active:  true,
	})
	c.Assert(err, jc.ErrorIsNil)
	c.Check(series.Name, gc.Equals, "focal")

	rest.CheckCallNames(c, "Post", "Patch")
	post := rest.Calls()[0]
	c.Check(post.Args[0], gc.Equals, projectLink)
	params, err := url.ParseQuery(post.Args[1].(string))
	c.Assert(err, jc.ErrorIsNil)
	c.Check(params.Get("ws.op"), gc.Equals, "newSeries")
	c.Check(params.Get("name"), gc.Equals, "focal")
}
