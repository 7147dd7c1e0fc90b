// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package launchpad

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/juju/errors"
	jujuhttp "github.com/juju/http/v2"
	"gopkg.in/httprequest.v1"
)

// MIME types used when talking to Launchpad.
const (
	mimeJSON = "application/json"
	mimeForm = "application/x-www-form-urlencoded"
)

// ErrPreconditionFailed is returned when Launchpad rejects a PATCH
// because the entry changed underneath us (HTTP 412). Callers refetch
// the entry and try again.
const ErrPreconditionFailed = errors.ConstError("precondition failed")

// Transport defines a type for making the actual request.
type Transport interface {
	Do(*http.Request) (*http.Response, error)
}

// DefaultHTTPTransport creates a new Transport using the standard
// juju HTTP client, with request logging wired to the given logger.
func DefaultHTTPTransport(logger Logger) Transport {
	return jujuhttp.NewClient(
		jujuhttp.WithLogger(logger),
	)
}

// APIRequester wraps a transport with Launchpad specific error
// handling.
type APIRequester struct {
	transport Transport
	logger    Logger
}

// NewAPIRequester creates a requester for making requests to the
// Launchpad API.
func NewAPIRequester(transport Transport, logger Logger) *APIRequester {
	return &APIRequester{
		transport: transport,
		logger:    logger,
	}
}

// Do performs the *http.Request, mapping the well-known Launchpad
// error statuses onto typed errors.
func (t *APIRequester) Do(req *http.Request) (*http.Response, error) {
	if t.logger.IsTraceEnabled() {
		if data, err := httputil.DumpRequest(req, true); err == nil {
			t.logger.Tracef("%s request %s", req.Method, data)
		} else {
			t.logger.Tracef("%s request DumpRequest error %s", req.Method, err.Error())
		}
	}

	resp, err := t.transport.Do(req)
	if err != nil {
		return nil, errors.Trace(err)
	}

	if t.logger.IsTraceEnabled() {
		if data, err := httputil.DumpResponse(resp, true); err == nil {
			t.logger.Tracef("%s response %s", req.Method, data)
		} else {
			t.logger.Tracef("%s response DumpResponse error %s", req.Method, err.Error())
		}
	}

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		return resp, nil
	}

	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	message := strings.TrimSpace(string(body))

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, errors.Unauthorizedf("%q: %s", req.URL.String(), message)
	case resp.StatusCode == http.StatusNotFound:
		return nil, errors.NotFoundf("%q", req.URL.String())
	case resp.StatusCode == http.StatusPreconditionFailed:
		return nil, errors.Annotatef(ErrPreconditionFailed, "%q", req.URL.String())
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, errors.Errorf("server error %q: %s", req.URL.String(), message)
	default:
		return nil, errors.Errorf("request %q failed: %s: %s", req.URL.String(), resp.Status, message)
	}
}

// RESTResponse abstracts away the underlying response from the
// implementation.
type RESTResponse struct {
	StatusCode int
	ETag       string
}

// RESTClient defines a type for making requests to the Launchpad API.
// Launchpad models reads as GETs (with named operations passed as
// ws.op query parameters), named mutations as form-encoded POSTs, and
// entry updates as JSON PATCHes guarded by the entry's etag.
type RESTClient interface {
	Get(ctx context.Context, url string, params url.Values, result interface{}) (RESTResponse, error)
	GetBlob(ctx context.Context, url string) ([]byte, error)
	Post(ctx context.Context, url string, params url.Values, result interface{}) (RESTResponse, error)
	Patch(ctx context.Context, url, etag string, changes, result interface{}) (RESTResponse, error)
	Delete(ctx context.Context, url string) (RESTResponse, error)
}

// HTTPRESTClient represents a RESTClient that expects to interact
// with an HTTP transport.
type HTTPRESTClient struct {
	transport Transport
	headers   http.Header
}

// NewHTTPRESTClient creates a new HTTPRESTClient.
func NewHTTPRESTClient(transport Transport, headers http.Header) *HTTPRESTClient {
	return &HTTPRESTClient{
		transport: transport,
		headers:   headers,
	}
}

// Get makes a GET request to the given URL, with the params encoded
// into the query string, parsing the result as JSON into the given
// result value, which should be a pointer to the expected data, but
// may be nil if no result is desired.
func (c *HTTPRESTClient) Get(ctx context.Context, rawURL string, params url.Values, result interface{}) (RESTResponse, error) {
	target, err := composeURL(rawURL, params)
	if err != nil {
		return RESTResponse{}, errors.Trace(err)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", target, nil)
	if err != nil {
		return RESTResponse{}, errors.Annotate(err, "can not make new request")
	}
	req.Header = c.composeHeaders(nil)
	req.Header.Set("Accept", mimeJSON)

	resp, err := c.transport.Do(req)
	if err != nil {
		return RESTResponse{}, errors.Trace(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := unmarshalResponse(resp, result); err != nil {
		return RESTResponse{}, errors.Annotate(err, "launchpad client get")
	}
	return RESTResponse{
		StatusCode: resp.StatusCode,
		ETag:       resp.Header.Get("Etag"),
	}, nil
}

// GetBlob makes a GET request to the given URL and returns the raw
// response body. A gzip-compressed body, which is how the librarian
// serves build logs, is decompressed transparently.
func (c *HTTPRESTClient) GetBlob(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return nil, errors.Annotate(err, "can not make new request")
	}
	req.Header = c.composeHeaders(nil)

	resp, err := c.transport.Do(req)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Annotate(err, "launchpad client get blob")
	}
	if len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b {
		reader, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, errors.Annotate(err, "decompressing blob")
		}
		defer func() { _ = reader.Close() }()
		if data, err = io.ReadAll(reader); err != nil {
			return nil, errors.Annotate(err, "decompressing blob")
		}
	}
	return data, nil
}

// Post makes a form-encoded POST request to the given URL. Launchpad
// answers a named creation operation with a 201 and a Location header
// pointing at the new entry, which is then fetched into result.
func (c *HTTPRESTClient) Post(ctx context.Context, rawURL string, params url.Values, result interface{}) (RESTResponse, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", rawURL, strings.NewReader(params.Encode()))
	if err != nil {
		return RESTResponse{}, errors.Annotate(err, "can not make new request")
	}
	req.Header = c.composeHeaders(nil)
	req.Header.Set("Accept", mimeJSON)
	req.Header.Set("Content-Type", mimeForm)

	resp, err := c.transport.Do(req)
	if err != nil {
		return RESTResponse{}, errors.Trace(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusCreated {
		location := resp.Header.Get("Location")
		_, _ = io.Copy(io.Discard, resp.Body)
		if result == nil || location == "" {
			return RESTResponse{StatusCode: resp.StatusCode}, nil
		}
		return c.Get(ctx, location, nil, result)
	}

	if err := unmarshalResponse(resp, result); err != nil {
		return RESTResponse{}, errors.Annotate(err, "launchpad client post")
	}
	return RESTResponse{
		StatusCode: resp.StatusCode,
		ETag:       resp.Header.Get("Etag"),
	}, nil
}

// Patch makes a JSON PATCH request updating the given fields of an
// entry. A non-empty etag makes the update conditional on the entry
// not having changed since it was fetched.
func (c *HTTPRESTClient) Patch(ctx context.Context, rawURL, etag string, changes, result interface{}) (RESTResponse, error) {
	buffer := new(bytes.Buffer)
	if err := json.NewEncoder(buffer).Encode(changes); err != nil {
		return RESTResponse{}, errors.Trace(err)
	}

	req, err := http.NewRequestWithContext(ctx, "PATCH", rawURL, buffer)
	if err != nil {
		return RESTResponse{}, errors.Annotate(err, "can not make new request")
	}
	req.Header = c.composeHeaders(nil)
	req.Header.Set("Accept", mimeJSON)
	req.Header.Set("Content-Type", mimeJSON)
	if etag != "" {
		req.Header.Set("If-Match", etag)
	}

	resp, err := c.transport.Do(req)
	if err != nil {
		return RESTResponse{}, errors.Trace(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := unmarshalResponse(resp, result); err != nil {
		return RESTResponse{}, errors.Annotate(err, "launchpad client patch")
	}
	return RESTResponse{
		StatusCode: resp.StatusCode,
		ETag:       resp.Header.Get("Etag"),
	}, nil
}

// Delete makes a DELETE request removing an entry.
func (c *HTTPRESTClient) Delete(ctx context.Context, rawURL string) (RESTResponse, error) {
	req, err := http.NewRequestWithContext(ctx, "DELETE", rawURL, nil)
	if err != nil {
		return RESTResponse{}, errors.Annotate(err, "can not make new request")
	}
	req.Header = c.composeHeaders(nil)
	req.Header.Set("Accept", mimeJSON)

	resp, err := c.transport.Do(req)
	if err != nil {
		return RESTResponse{}, errors.Trace(err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	return RESTResponse{StatusCode: resp.StatusCode}, nil
}

// composeHeaders creates a new set of headers from scratch.
func (c *HTTPRESTClient) composeHeaders(headers http.Header) http.Header {
	result := make(http.Header)
	for k, vs := range headers {
		for _, v := range vs {
			result.Add(k, v)
		}
	}
	for k, vs := range c.headers {
		for _, v := range vs {
			result.Add(k, v)
		}
	}
	return result
}

func composeURL(rawURL string, params url.Values) (string, error) {
	if len(params) == 0 {
		return rawURL, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", errors.Trace(err)
	}
	values := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			values.Add(k, v)
		}
	}
	u.RawQuery = values.Encode()
	return u.String(), nil
}

// unmarshalResponse parses the JSON body into result, tolerating the
// empty bodies Launchpad sends for some operations.
func unmarshalResponse(resp *http.Response, result interface{}) error {
	if result == nil || resp.StatusCode == http.StatusNoContent || resp.ContentLength == 0 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := httprequest.UnmarshalJSONResponse(resp, result); err != nil {
		return errors.Trace(err)
	}
	return nil
}
