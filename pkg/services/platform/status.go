package platform

import (
	"sync"

	"github.com/de-tools/capacity-atlas/pkg/models/domain"
)

// StatusTracker remembers the outcome of the last authentication attempt so
// SiteInfo can be answered without I/O.
type StatusTracker struct {
	mu     sync.RWMutex
	status domain.SiteStatus
}

func (s *StatusTracker) Set(status domain.SiteStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

func (s *StatusTracker) Get() domain.SiteStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.status == "" {
		return domain.SiteStatusUnknown
	}
	return s.status
}

// Observe maps an authentication outcome to a status.
func (s *StatusTracker) Observe(err error) {
	switch {
	case err == nil:
		s.Set(domain.SiteStatusOnline)
	case IsAuthError(err):
		s.Set(domain.SiteStatusAuthFailed)
	default:
		s.Set(domain.SiteStatusOffline)
	}
}
