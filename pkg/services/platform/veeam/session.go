package veeam

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/de-tools/capacity-atlas/pkg/models/domain"
	"github.com/de-tools/capacity-atlas/pkg/services/platform"
	"github.com/de-tools/capacity-atlas/pkg/transport"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

const (
	tokenPath = "/api/oauth2/token"

	apiVersionHeader = "x-api-version"
	apiVersion       = "1.1-rev1"

	// refreshLead renews the access token this long before it expires.
	refreshLead = 60 * time.Second
)

// versionTransport stamps the API version header on every request, including
// the token exchanges performed by the oauth2 package.
type versionTransport struct {
	base http.RoundTripper
}

func (t *versionTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.Header.Set(apiVersionHeader, apiVersion)
	return t.base.RoundTrip(r)
}

type client struct {
	cfg   domain.SiteConfig
	http  *http.Client
	now   func() time.Time
	oauth *oauth2.Config

	mu    sync.Mutex
	token *oauth2.Token
}

func newClient(cfg domain.SiteConfig, opts platform.Options) *client {
	base := opts.Client()
	rt := base.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}
	return &client{
		cfg: cfg,
		http: &http.Client{
			Transport: &versionTransport{base: rt},
			Timeout:   base.Timeout,
		},
		now: opts.Now,
		oauth: &oauth2.Config{
			Endpoint: oauth2.Endpoint{
				TokenURL:  cfg.URL + tokenPath,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
	}
}

func (c *client) fresh(t *oauth2.Token) bool {
	if t == nil || t.AccessToken == "" {
		return false
	}
	return t.Expiry.IsZero() || c.now().Add(refreshLead).Before(t.Expiry)
}

// authenticate returns a usable access token. An expiring token is renewed
// with its refresh token; a failed refresh falls back to one password grant.
func (c *client) authenticate(ctx context.Context, force bool) (*oauth2.Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !force && c.fresh(c.token) {
		return c.token, nil
	}

	octx := context.WithValue(ctx, oauth2.HTTPClient, c.http)
	logger := zerolog.Ctx(ctx)

	if c.token != nil && c.token.RefreshToken != "" {
		t, err := c.oauth.TokenSource(octx, &oauth2.Token{RefreshToken: c.token.RefreshToken}).Token()
		if err == nil {
			c.token = t
			return t, nil
		}
		logger.Debug().Err(err).Str("site", c.cfg.SiteID).Msg("veeam token refresh failed, using password grant")
	}
	c.token = nil

	t, err := c.oauth.PasswordCredentialsToken(octx, c.cfg.Username, c.cfg.Password)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			return nil, &platform.AuthError{Platform: domain.PlatformVeeam, Site: c.cfg.SiteID, Err: err}
		}
		return nil, fmt.Errorf("password grant: %w", err)
	}
	c.token = t
	return t, nil
}

func (c *client) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != nil {
		// keep the refresh token for the next attempt
		t := *c.token
		t.AccessToken = ""
		c.token = &t
	}
}

func (c *client) get(ctx context.Context, path string, query url.Values, out any) error {
	for attempt := 0; ; attempt++ {
		t, err := c.authenticate(ctx, false)
		if err != nil {
			return err
		}

		u := c.cfg.URL + path
		if len(query) > 0 {
			u += "?" + query.Encode()
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		t.SetAuthHeader(req)

		_, err = transport.DoJSON(c.http, req, out)
		if transport.IsUnauthorized(err) {
			c.invalidate()
			if attempt == 0 {
				continue
			}
			return &platform.AuthError{Platform: domain.PlatformVeeam, Site: c.cfg.SiteID, Err: err}
		}
		return err
	}
}
