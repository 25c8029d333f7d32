package domain

import "time"

// SiteOutcome is how one site fared in a poll cycle.
type SiteOutcome struct {
	SiteKey    string
	TenantRows int
	Partial    bool
	Err        error
}

// PollResult summarises one snapshot cycle.
type PollResult struct {
	CycleID       string
	StartedAt     time.Time
	FinishedAt    time.Time
	PolledAt      time.Time
	Sites         []SiteOutcome
	Skipped       []string
	Succeeded     int
	Failed        int
	TenantRows    int
	PrunedSites   int64
	PrunedTenants int64
	Err           error
}
