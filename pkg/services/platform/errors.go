package platform

import (
	"errors"
	"fmt"

	"github.com/de-tools/capacity-atlas/pkg/models/domain"
)

// ErrMissingCredentials is returned by factories when a site configuration
// lacks the credentials its platform requires.
var ErrMissingCredentials = errors.New("missing credentials")

// AuthError is a credential or handshake failure. It is fatal for the call that
// produced it and is not retried beyond the adapter's own fallback chain.
type AuthError struct {
	Platform domain.PlatformType
	Site     string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s site %s: authentication failed: %v", e.Platform, e.Site, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}
