// Package ratelimit provides per-principal sliding-window admission control
// for the orchestration pipeline.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Rubr1c/discord-ai-sdk-sub000/pkg/models"
)

// Policy bounds admissions for one principal: at most Limit admissions
// within any trailing Window.
type Policy struct {
	// Limit is the number of admissions allowed inside the window.
	Limit int `yaml:"limit"`

	// Window is the sliding interval admissions are counted over.
	Window time.Duration `yaml:"window"`
}

// UnmarshalYAML parses a policy from config files, with the window given as
// a duration string such as "30s" or "1m".
func (p *Policy) UnmarshalYAML(unmarshal func(any) error) error {
	var raw struct {
		Limit  int    `yaml:"limit"`
		Window string `yaml:"window"`
	}
	if err := unmarshal(&raw); err != nil {
		return err
	}
	p.Limit = raw.Limit
	p.Window = 0
	if raw.Window != "" {
		d, err := time.ParseDuration(raw.Window)
		if err != nil {
			return fmt.Errorf("invalid rate limit window: %w", err)
		}
		p.Window = d
	}
	return nil
}

// MarshalYAML renders the policy with the window as a duration string.
func (p Policy) MarshalYAML() (any, error) {
	return struct {
		Limit  int    `yaml:"limit"`
		Window string `yaml:"window"`
	}{Limit: p.Limit, Window: p.Window.String()}, nil
}

// PolicyFunc resolves an effective policy for a principal/tenant pair. The
// lookup may block on I/O; a failure propagates to the caller unretried.
type PolicyFunc func(ctx context.Context, userID, guildID string) (Policy, error)

// PolicySource is the tagged union of a constant policy and a per-call
// resolver. The zero value is not usable; construct with StaticPolicy or
// PolicyResolver.
type PolicySource struct {
	static  Policy
	resolve PolicyFunc
}

// StaticPolicy returns a source that always yields p.
func StaticPolicy(p Policy) PolicySource {
	return PolicySource{static: p}
}

// PolicyResolver returns a source that resolves the policy per call,
// falling back to fallback when fn returns a zero-limit policy.
func PolicyResolver(fn PolicyFunc, fallback Policy) PolicySource {
	return PolicySource{static: fallback, resolve: fn}
}

// Resolve yields the effective policy for the given principal and tenant.
func (s PolicySource) Resolve(ctx context.Context, userID, guildID string) (Policy, error) {
	if s.resolve == nil {
		return s.static, nil
	}
	p, err := s.resolve(ctx, userID, guildID)
	if err != nil {
		return Policy{}, err
	}
	if p.Limit <= 0 || p.Window <= 0 {
		return s.static, nil
	}
	return p, nil
}

// Limiter tracks admission timestamps per principal over a sliding window.
// State is process-memory only; entries are pruned lazily on each check and
// the whole map is lost on restart.
type Limiter struct {
	mu         sync.Mutex
	source     PolicySource
	admissions map[string][]time.Time

	// now is swappable for tests.
	now func() time.Time
}

// NewLimiter creates a limiter admitting per the given source.
func NewLimiter(source PolicySource) *Limiter {
	return &Limiter{
		source:     source,
		admissions: make(map[string][]time.Time),
		now:        time.Now,
	}
}

// Limited reports whether the request's principal is over quota. When the
// principal is under the limit the call records an admission; when over, it
// persists the pruned history and admits nothing, so repeated limited calls
// do not accumulate stale entries.
//
// The policy resolution happens before the limiter lock is taken, so the
// prune-and-record step is atomic per check.
func (l *Limiter) Limited(ctx context.Context, req *models.Request) (bool, error) {
	l.mu.Lock()
	source := l.source
	l.mu.Unlock()

	policy, err := source.Resolve(ctx, req.UserID, req.GuildID)
	if err != nil {
		return false, err
	}

	now := l.now()
	cutoff := now.Add(-policy.Window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.admissions[req.UserID]
	pruned := history[:0]
	for _, ts := range history {
		if ts.After(cutoff) {
			pruned = append(pruned, ts)
		}
	}

	if len(pruned) >= policy.Limit {
		l.admissions[req.UserID] = pruned
		return true, nil
	}

	l.admissions[req.UserID] = append(pruned, now)
	return false, nil
}

// SetPolicy replaces the active policy source without touching recorded
// admission state.
func (l *Limiter) SetPolicy(source PolicySource) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.source = source
}

// ResetFor clears the admission history of a single principal.
func (l *Limiter) ResetFor(userID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.admissions, userID)
}

// ResetAll clears every principal's admission history.
func (l *Limiter) ResetAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.admissions = make(map[string][]time.Time)
}
