package agent

import (
	"context"
	"log/slog"
	"time"
)

// Classifier names a domain agent from the most recent user turn.
// It is an external collaborator; the router treats it as opaque and
// never relies on it for correctness.
type Classifier interface {
	Classify(ctx context.Context, lastUserTurn string) (string, error)
}

// ClassifierFunc adapts a plain function to the Classifier interface.
type ClassifierFunc func(ctx context.Context, lastUserTurn string) (string, error)

func (f ClassifierFunc) Classify(ctx context.Context, lastUserTurn string) (string, error) {
	return f(ctx, lastUserTurn)
}

// Router picks the agent profile for a session.
//
// Rules:
//   - No conversation history: default profile, classifier is not invoked.
//   - History present: classifier is invoked once with a bounded timeout;
//     a recognized name wins, anything else (timeout, error, unknown label)
//     falls back to the default profile.
//
// Route is deterministic and side-effect-free beyond the single classifier call.
type Router struct {
	registry   *Registry
	classifier Classifier
	timeout    time.Duration
	log        *slog.Logger
}

func NewRouter(registry *Registry, classifier Classifier, timeout time.Duration, log *slog.Logger) *Router {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Router{registry: registry, classifier: classifier, timeout: timeout, log: log}
}

// Route returns the profile for the upcoming session. lastUserTurn is the
// most recent user message from the cross-channel history; empty history
// must be signaled with hasHistory=false.
func (r *Router) Route(ctx context.Context, lastUserTurn string, hasHistory bool) Profile {
	if !hasHistory || r.classifier == nil {
		return r.registry.Default()
	}

	cctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	name, err := r.classifier.Classify(cctx, lastUserTurn)
	if err != nil {
		// ClassifierError is non-fatal: deterministic fallback.
		r.log.Warn("classifier failed, using default agent", "err", err)
		return r.registry.Default()
	}

	p, ok := r.registry.Find(name)
	if !ok {
		r.log.Warn("classifier returned unknown agent, using default", "agent", name)
		return r.registry.Default()
	}
	return p
}
