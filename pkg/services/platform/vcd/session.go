package vcd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/de-tools/capacity-atlas/pkg/models/domain"
	"github.com/de-tools/capacity-atlas/pkg/services/platform"
	"github.com/de-tools/capacity-atlas/pkg/transport"
	"github.com/rs/zerolog"
)

const (
	apiVersion = "36.0"

	// The session endpoints do not echo a TTL, so validity is estimated on
	// the client side and kept below the default 30 minute idle timeout.
	tokenValidity = 25 * time.Minute

	modernSessionPath = "/cloudapi/1.0.0/sessions/provider"
	legacySessionPath = "/api/sessions"

	modernTokenHeader = "X-VMWARE-VCLOUD-ACCESS-TOKEN"
	legacyTokenHeader = "x-vcloud-authorization"

	defaultOrg = "System"
)

type tokenKind int

const (
	tokenBearer tokenKind = iota
	tokenLegacy
)

type session struct {
	token     string
	kind      tokenKind
	expiresAt time.Time
}

type credentialAttempt struct {
	path     string
	username string
	kind     tokenKind
}

// client owns the session of one site and performs authenticated requests.
type client struct {
	cfg  domain.SiteConfig
	http *http.Client
	now  func() time.Time

	mu      sync.Mutex
	session *session
}

func newClient(cfg domain.SiteConfig, opts platform.Options) *client {
	return &client{
		cfg:  cfg,
		http: opts.Client(),
		now:  opts.Now,
	}
}

func (c *client) org() string {
	if c.cfg.Org != "" {
		return c.cfg.Org
	}
	return defaultOrg
}

// attempts is the single fallback chain: the modern endpoint with the bare
// username, then with username@org, then the legacy endpoint.
func (c *client) attempts() []credentialAttempt {
	qualified := c.cfg.Username
	if !strings.Contains(qualified, "@") {
		qualified = fmt.Sprintf("%s@%s", c.cfg.Username, c.org())
	}
	attempts := []credentialAttempt{{path: modernSessionPath, username: c.cfg.Username, kind: tokenBearer}}
	if qualified != c.cfg.Username {
		attempts = append(attempts, credentialAttempt{path: modernSessionPath, username: qualified, kind: tokenBearer})
	}
	return append(attempts, credentialAttempt{path: legacySessionPath, username: qualified, kind: tokenLegacy})
}

func (c *client) authenticate(ctx context.Context, force bool) (*session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !force && c.session != nil && c.now().Before(c.session.expiresAt) {
		return c.session, nil
	}
	c.session = nil

	logger := zerolog.Ctx(ctx)
	var errs []error
	for _, a := range c.attempts() {
		token, err := c.login(ctx, a)
		if err != nil {
			logger.Debug().Err(err).Str("endpoint", a.path).Msg("vcd login attempt failed")
			errs = append(errs, err)
			continue
		}
		c.session = &session{
			token:     token,
			kind:      a.kind,
			expiresAt: c.now().Add(tokenValidity),
		}
		return c.session, nil
	}

	return nil, &platform.AuthError{
		Platform: domain.PlatformVCD,
		Site:     c.cfg.SiteID,
		Err:      errors.Join(errs...),
	}
}

func (c *client) login(ctx context.Context, a credentialAttempt) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL+a.path, nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(a.username, c.cfg.Password)
	if a.kind == tokenLegacy {
		req.Header.Set("Accept", "application/*+json;version="+apiVersion)
	} else {
		req.Header.Set("Accept", "application/json;version="+apiVersion)
	}

	hdr, err := transport.DoJSON(c.http, req, nil)
	if err != nil {
		return "", err
	}

	header := modernTokenHeader
	if a.kind == tokenLegacy {
		header = legacyTokenHeader
	}
	token := hdr.Get(header)
	if token == "" {
		return "", fmt.Errorf("%s: response carried no %s header", a.path, header)
	}
	return token, nil
}

func (c *client) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = nil
}

// get performs an authenticated GET. A rejected token is dropped and the
// request is replayed once with a fresh session.
func (c *client) get(ctx context.Context, path string, query url.Values, out any) error {
	for attempt := 0; ; attempt++ {
		s, err := c.authenticate(ctx, false)
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
		if strings.HasPrefix(path, "/cloudapi/") {
			req.Header.Set("Accept", "application/json;version="+apiVersion)
		} else {
			req.Header.Set("Accept", "application/*+json;version="+apiVersion)
		}
		if s.kind == tokenLegacy {
			req.Header.Set(legacyTokenHeader, s.token)
		} else {
			req.Header.Set("Authorization", "Bearer "+s.token)
		}

		_, err = transport.DoJSON(c.http, req, out)
		if transport.IsUnauthorized(err) {
			c.invalidate()
			if attempt == 0 {
				continue
			}
			return &platform.AuthError{Platform: domain.PlatformVCD, Site: c.cfg.SiteID, Err: err}
		}
		return err
	}
}
