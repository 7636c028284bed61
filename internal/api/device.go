package api

import (
	"context"

	"github.com/vitaminmoo/wifictl/internal/protocol"
)

// Info returns the agent identity.
func (c *Client) Info(ctx context.Context) (protocol.DeviceInfo, error) {
	var info protocol.DeviceInfo
	err := c.GetJSON(ctx, "/info", nil, &info)
	return info, err
}
