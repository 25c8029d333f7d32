package cloudstack

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/de-tools/capacity-atlas/pkg/models/domain"
	"github.com/de-tools/capacity-atlas/pkg/services/platform"
	"github.com/de-tools/capacity-atlas/pkg/transport"
)

const listPageSize = 500

// Status codes the API uses for credential and permission failures.
var authStatusCodes = []int{http.StatusUnauthorized, 432}

// statusParamError is returned for an invalid parameter, including an id that
// names no entity.
const statusParamError = 431

// client signs every request; there is no session to cache.
type client struct {
	cfg  domain.SiteConfig
	http *http.Client
}

func clone(params url.Values) url.Values {
	out := make(url.Values, len(params)+4)
	for k, vs := range params {
		out[k] = append([]string(nil), vs...)
	}
	return out
}

// call issues a signed command and decodes the body of its
// "<command>response" envelope into out.
func (c *client) call(ctx context.Context, command string, params url.Values, out any) error {
	q := clone(params)
	q.Set("command", command)
	q.Set("response", "json")
	q.Set("apiKey", c.cfg.APIKey)
	signature := Sign(q, c.cfg.SecretKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.cfg.URL+"?"+q.Encode()+"&signature="+escape(signature), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	var envelope map[string]json.RawMessage
	if _, err := transport.DoJSON(c.http, req, &envelope); err != nil {
		if transport.HasStatus(err, authStatusCodes...) {
			return &platform.AuthError{Platform: domain.PlatformCloudStack, Site: c.cfg.SiteID, Err: err}
		}
		return fmt.Errorf("%s: %w", command, err)
	}

	raw, ok := envelope[strings.ToLower(command)+"response"]
	if !ok {
		return fmt.Errorf("%s: response envelope missing", command)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: decode: %w", command, err)
	}
	return nil
}

// listAll pages through a list command; field is the JSON key holding the items.
func listAll[T any](ctx context.Context, c *client, command, field string, params url.Values) ([]T, error) {
	var out []T
	for page := 1; ; page++ {
		p := clone(params)
		p.Set("page", strconv.Itoa(page))
		p.Set("pagesize", strconv.Itoa(listPageSize))

		var body map[string]json.RawMessage
		if err := c.call(ctx, command, p, &body); err != nil {
			return nil, err
		}

		var count int
		if v, ok := body["count"]; ok {
			if err := json.Unmarshal(v, &count); err != nil {
				return nil, fmt.Errorf("%s: decode count: %w", command, err)
			}
		}
		var items []T
		if v, ok := body[field]; ok {
			if err := json.Unmarshal(v, &items); err != nil {
				return nil, fmt.Errorf("%s: decode %s: %w", command, field, err)
			}
		}
		out = append(out, items...)
		if len(items) < listPageSize || len(out) >= count {
			return out, nil
		}
	}
}

// countOf requests a single item and returns the total count reported.
func countOf(ctx context.Context, c *client, command string, params url.Values) (int, error) {
	p := clone(params)
	p.Set("page", "1")
	p.Set("pagesize", "1")

	var resp struct {
		Count int `json:"count"`
	}
	if err := c.call(ctx, command, p, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}
