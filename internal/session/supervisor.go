package session

import (
	"context"
	"log/slog"
	"time"
)

// Supervisor sweeps the registry on an interval and destroys sessions whose
// legs have gone quiet for longer than the idle timeout. This is the backstop
// for calls that drop without a stop event or status callback.
type Supervisor struct {
	registry *Registry
	interval time.Duration
	timeout  time.Duration
	log      *slog.Logger
}

func NewSupervisor(registry *Registry, interval, timeout time.Duration, log *slog.Logger) *Supervisor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	if log == nil {
		log = slog.Default()
	}
	return &Supervisor{registry: registry, interval: interval, timeout: timeout, log: log}
}

// Run sweeps until ctx is canceled.
func (sv *Supervisor) Run(ctx context.Context) {
	ticker := time.NewTicker(sv.interval)
	defer ticker.Stop()

	sv.log.Info("idle supervisor started", "interval", sv.interval, "timeout", sv.timeout)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sv.sweep()
		}
	}
}

func (sv *Supervisor) sweep() {
	for _, callID := range sv.registry.idleCalls(sv.timeout) {
		sv.log.Warn("destroying idle session", "call_id", callID, "timeout", sv.timeout)
		sv.registry.Destroy(callID)
	}
}
