package c4api

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"

	"github.com/jake-scott/control4-bridge/internal/pkg/logging"
)

// Live talks to a director over HTTPS
type Live struct {
	baseURL     string
	bearerToken string
	timeout     time.Duration
	transport   http.RoundTripper
}

// NewLiveDirector returns a client for the director at host, which may be
// a bare host name or a URL.  Directors present self signed certificates,
// so verification is optional.
func NewLiveDirector(host string, verifyTLS bool) *Live {
	base := host
	if !strings.Contains(host, "://") {
		base = "https://" + host
	}

	t := http.DefaultTransport.(*http.Transport).Clone()
	if !verifyTLS {
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}

	return &Live{
		baseURL:   strings.TrimSuffix(base, "/"),
		transport: t,
	}
}

func (c *Live) WithBearerToken(token string) Director {
	nc := *c
	nc.bearerToken = token
	return &nc
}

func (c *Live) WithTimeout(d time.Duration) Director {
	nc := *c
	nc.timeout = d
	return &nc
}

func (c *Live) api() *http.Client {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: c.bearerToken})
	return &http.Client{
		Transport: &oauth2.Transport{Source: ts, Base: c.transport},
	}
}

func (c *Live) MakeContext(parent context.Context) (context.Context, context.CancelFunc) {
	return makeContext(parent, c.timeout)
}

func makeContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}

	var ctx = parent
	var cancel context.CancelFunc = func() {}
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(parent, timeout)
	}

	return ctx, cancel
}

func (c *Live) AllItems(ctx context.Context) ([]Item, error) {
	var items []Item
	if err := c.get(ctx, "/api/v1/items", "", &items); err != nil {
		return nil, errors.Wrap(err, "listing items")
	}

	return items, nil
}

func (c *Live) ItemInfo(ctx context.Context, itemID int) ([]Item, error) {
	var items []Item
	if err := c.get(ctx, fmt.Sprintf("/api/v1/items/%d", itemID), "", &items); err != nil {
		return nil, errors.Wrapf(err, "fetching item %d", itemID)
	}

	return items, nil
}

func varNamesQuery(varNames []string) string {
	if len(varNames) == 0 {
		return ""
	}

	escaped := make([]string, len(varNames))
	for i, n := range varNames {
		escaped[i] = url.QueryEscape(n)
	}

	return "varnames=" + strings.Join(escaped, ",")
}

func (c *Live) AllItemVariableValues(ctx context.Context, varNames []string) ([]VariableValue, error) {
	var values []VariableValue
	if err := c.get(ctx, "/api/v1/items/variables", varNamesQuery(varNames), &values); err != nil {
		return nil, errors.Wrapf(err, "fetching variables %v", varNames)
	}

	return values, nil
}

func (c *Live) ItemVariableValues(ctx context.Context, itemID int, varNames []string) ([]VariableValue, error) {
	var values []VariableValue
	path := fmt.Sprintf("/api/v1/items/%d/variables", itemID)
	if err := c.get(ctx, path, varNamesQuery(varNames), &values); err != nil {
		return nil, errors.Wrapf(err, "fetching variables %v for item %d", varNames, itemID)
	}

	return values, nil
}

func (c *Live) UIConfiguration(ctx context.Context) (*UIConfiguration, error) {
	cfg := &UIConfiguration{}
	if err := c.get(ctx, "/api/v1/agents/ui_configuration", "", cfg); err != nil {
		return nil, errors.Wrap(err, "fetching ui configuration")
	}

	return cfg, nil
}

type commandRequest struct {
	Async   bool                   `json:"async"`
	Command string                 `json:"command"`
	Params  map[string]interface{} `json:"tParams"`
}

func (c *Live) SendCommand(ctx context.Context, itemID int, command string, params map[string]interface{}) error {
	if params == nil {
		params = map[string]interface{}{}
	}

	req := commandRequest{Async: true, Command: command, Params: params}
	logging.Logger(ctx).Debugf("sending command: %s to item %d, params %v", command, itemID, params)

	path := fmt.Sprintf("/api/v1/items/%d/commands", itemID)
	if err := c.send(ctx, http.MethodPost, path, "", req, nil); err != nil {
		return errors.Wrapf(err, "executing command %s on item %d", command, itemID)
	}

	return nil
}

func (c *Live) get(ctx context.Context, path string, query string, out interface{}) error {
	return c.send(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Live) send(ctx context.Context, method string, path string, query string, body interface{}, out interface{}) error {
	u := c.baseURL + path
	if query != "" {
		u += "?" + query
	}

	ctx, cancel := c.MakeContext(ctx)
	defer cancel()

	return doJSON(ctx, c.api(), method, u, body, out)
}

// doJSON runs one request and decodes the response, turning API error
// envelopes and non-2xx statuses into *Error
func doJSON(ctx context.Context, client *http.Client, method string, u string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reqBody, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encoding request")
		}
		reader = bytes.NewReader(reqBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return errors.Wrap(err, "building request")
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, req.URL.Path)
	}
	defer resp.Body.Close()

	bodyBytes, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "reading response body")
	}

	if err := CheckResponse(bodyBytes); err != nil {
		if apiErr, ok := err.(*Error); ok {
			apiErr.StatusCode = resp.StatusCode
		}
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp.StatusCode, bodyBytes)
	}

	if out == nil || len(bytes.TrimSpace(bodyBytes)) == 0 {
		return nil
	}

	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return errors.Wrap(err, "decoding response")
	}

	return nil
}
