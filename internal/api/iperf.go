package api

import (
	"context"

	"github.com/vitaminmoo/wifictl/internal/iperf"
)

// Engine runs measurements on the agent.
type Engine struct {
	c *Client
}

var _ iperf.Engine = Engine{}

// Iperf returns the agent's measurement engine.
func (c *Client) Iperf() Engine { return Engine{c: c} }

func (e Engine) Start(ctx context.Context, cfg iperf.Config) error {
	return e.c.PostJSON(ctx, "/iperf/start", cfg)
}

func (e Engine) Stop(ctx context.Context) error {
	return e.c.PostJSON(ctx, "/iperf/stop", nil)
}
