package platform

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Adapter is the capability interface a platform implementation satisfies.
// Login/session mechanics belong to the adapter; the orchestrator only sees
// Discover and PostComment.
//
// PostComment must always resolve to a terminal ActionResult and must never
// hang indefinitely; the adapter owns its own network timeouts.
type Adapter interface {
	Platform() Platform
	Login(ctx context.Context, creds Credentials) error
	Discover(ctx context.Context, criteria Criteria) ([]Candidate, error)
	PostComment(ctx context.Context, candidate Candidate, text string) ActionResult
	Close() error
}

// Factory builds an adapter from its raw platform config section.
type Factory func(settings map[string]string, logger *zap.Logger) (Adapter, error)

var (
	registryMu sync.RWMutex
	registry   = map[Platform]Factory{}
)

// Register installs a factory for a platform. Adapters register themselves
// from an init function; a duplicate registration panics early.
func Register(p Platform, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[p]; dup {
		panic(fmt.Sprintf("platform: duplicate adapter registration for %q", p))
	}
	registry[p] = f
}

// New resolves the registered factory for a platform.
func New(p Platform, settings map[string]string, logger *zap.Logger) (Adapter, error) {
	registryMu.RLock()
	f, ok := registry[p]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no adapter registered for platform %q", p)
	}
	return f(settings, logger)
}

// Registered returns the sorted list of platforms with an installed adapter.
func Registered() []Platform {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]Platform, 0, len(registry))
	for p := range registry {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
