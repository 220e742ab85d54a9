package ports

import "context"

// HealthChecker is one dependency reported by GET /health.
type HealthChecker interface {
	// Ping returns nil when the dependency is reachable.
	Ping(ctx context.Context) error
	// Name is the key used in the health report ("postgresql", "redis").
	Name() string
}
