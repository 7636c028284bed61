package iperf

import "context"

// Engine runs bandwidth measurements. Start returns once the run has been
// handed off; Stop aborts any run in progress and is a no-op otherwise.
type Engine interface {
	Start(ctx context.Context, cfg Config) error
	Stop(ctx context.Context) error
}
