package proxmox

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/de-tools/capacity-atlas/pkg/models/domain"
	"github.com/de-tools/capacity-atlas/pkg/services/platform"
	"github.com/de-tools/capacity-atlas/pkg/transport"
)

const (
	apiPrefix  = "/api2/json"
	ticketPath = apiPrefix + "/access/ticket"

	// Tickets are valid for two hours; renew ten minutes early.
	ticketValidity = 110 * time.Minute

	authCookie = "PVEAuthCookie"
	csrfHeader = "CSRFPreventionToken"

	defaultRealm = "pam"
)

type ticket struct {
	value     string
	csrf      string
	expiresAt time.Time
}

type envelope[T any] struct {
	Data T `json:"data"`
}

type client struct {
	cfg  domain.SiteConfig
	http *http.Client
	now  func() time.Time

	mu     sync.Mutex
	ticket *ticket
}

func newClient(cfg domain.SiteConfig, opts platform.Options) *client {
	return &client{cfg: cfg, http: opts.Client(), now: opts.Now}
}

func (c *client) username() string {
	if strings.Contains(c.cfg.Username, "@") {
		return c.cfg.Username
	}
	realm := c.cfg.Realm
	if realm == "" {
		realm = defaultRealm
	}
	return c.cfg.Username + "@" + realm
}

func (c *client) authenticate(ctx context.Context, force bool) (*ticket, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !force && c.ticket != nil && c.now().Before(c.ticket.expiresAt) {
		return c.ticket, nil
	}
	c.ticket = nil

	form := url.Values{"username": {c.username()}, "password": {c.cfg.Password}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL+ticketPath,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	var resp envelope[struct {
		Ticket string `json:"ticket"`
		CSRF   string `json:"CSRFPreventionToken"`
	}]
	if _, err := transport.DoJSON(c.http, req, &resp); err != nil {
		if transport.IsUnauthorized(err) {
			return nil, &platform.AuthError{Platform: domain.PlatformProxmox, Site: c.cfg.SiteID, Err: err}
		}
		return nil, fmt.Errorf("request ticket: %w", err)
	}
	if resp.Data.Ticket == "" {
		return nil, &platform.AuthError{
			Platform: domain.PlatformProxmox,
			Site:     c.cfg.SiteID,
			Err:      fmt.Errorf("ticket response carried no ticket"),
		}
	}

	c.ticket = &ticket{
		value:     resp.Data.Ticket,
		csrf:      resp.Data.CSRF,
		expiresAt: c.now().Add(ticketValidity),
	}
	return c.ticket, nil
}

func (c *client) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticket = nil
}

// get decodes the data member of an API response into out. A rejected ticket
// forces one re-authentication.
func (c *client) get(ctx context.Context, path string, out any) error {
	for attempt := 0; ; attempt++ {
		t, err := c.authenticate(ctx, false)
		if err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.URL+apiPrefix+path, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set(csrfHeader, t.csrf)
		req.AddCookie(&http.Cookie{Name: authCookie, Value: t.value})

		_, err = transport.DoJSON(c.http, req, &envelope[any]{Data: out})
		if transport.IsUnauthorized(err) {
			c.invalidate()
			if attempt == 0 {
				continue
			}
			return &platform.AuthError{Platform: domain.PlatformProxmox, Site: c.cfg.SiteID, Err: err}
		}
		return err
	}
}
