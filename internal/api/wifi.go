package api

import (
	"context"
	"fmt"

	"github.com/vitaminmoo/wifictl/internal/wifi"
)

var _ wifi.Stack = (*Client)(nil)

func (c *Client) Start(ctx context.Context) error {
	return c.PostJSON(ctx, "/wifi/start", nil)
}

type modeBody struct {
	Mode wifi.Mode `json:"mode"`
}

func (c *Client) Mode(ctx context.Context) (wifi.Mode, error) {
	var b modeBody
	err := c.GetJSON(ctx, "/wifi/mode", nil, &b)
	return b.Mode, err
}

func (c *Client) SetMode(ctx context.Context, mode wifi.Mode) error {
	return c.PostJSON(ctx, "/wifi/mode", modeBody{Mode: mode})
}

func (c *Client) Config(ctx context.Context, ifx wifi.Interface) (wifi.Config, error) {
	var cfg wifi.Config
	err := c.GetJSON(ctx, "/wifi/config/"+ifx.String(), nil, &cfg)
	return cfg, err
}

func (c *Client) SetConfig(ctx context.Context, ifx wifi.Interface, cfg wifi.Config) error {
	return c.PostJSON(ctx, "/wifi/config/"+ifx.String(), cfg)
}

func (c *Client) Connect(ctx context.Context) error {
	return c.PostJSON(ctx, "/wifi/connect", nil)
}

func (c *Client) Disconnect(ctx context.Context) error {
	return c.PostJSON(ctx, "/wifi/disconnect", nil)
}

func (c *Client) StartScan(ctx context.Context, cfg wifi.ScanConfig) error {
	return c.PostJSON(ctx, "/wifi/scan", cfg)
}

func (c *Client) ScanCount(ctx context.Context) (int, error) {
	var b struct {
		Count int `json:"count"`
	}
	err := c.GetJSON(ctx, "/wifi/scan/count", nil, &b)
	return b.Count, err
}

func (c *Client) ScanRecords(ctx context.Context, max int) ([]wifi.APRecord, error) {
	var recs []wifi.APRecord
	req := struct {
		Max int `json:"max"`
	}{max}
	err := c.GetJSON(ctx, "/wifi/scan/records", req, &recs)
	return recs, err
}

type powerBody struct {
	Power int8 `json:"power"`
}

func (c *Client) MaxTxPower(ctx context.Context) (int8, error) {
	var b powerBody
	err := c.GetJSON(ctx, "/wifi/txpower", nil, &b)
	return b.Power, err
}

func (c *Client) SetMaxTxPower(ctx context.Context, quarterDBm int8) error {
	return c.PostJSON(ctx, "/wifi/txpower", powerBody{Power: quarterDBm})
}

type protocolBody struct {
	Bitmap wifi.Protocol `json:"bitmap"`
}

func (c *Client) Protocol(ctx context.Context, ifx wifi.Interface) (wifi.Protocol, error) {
	var b protocolBody
	err := c.GetJSON(ctx, "/wifi/protocol/"+ifx.String(), nil, &b)
	return b.Bitmap, err
}

func (c *Client) SetProtocol(ctx context.Context, ifx wifi.Interface, p wifi.Protocol) error {
	return c.PostJSON(ctx, "/wifi/protocol/"+ifx.String(), protocolBody{Bitmap: p})
}

type bandwidthBody struct {
	Bandwidth wifi.Bandwidth `json:"bandwidth"`
}

func (c *Client) Bandwidth(ctx context.Context, ifx wifi.Interface) (wifi.Bandwidth, error) {
	var b bandwidthBody
	err := c.GetJSON(ctx, "/wifi/bandwidth/"+ifx.String(), nil, &b)
	return b.Bandwidth, err
}

func (c *Client) SetBandwidth(ctx context.Context, ifx wifi.Interface, bw wifi.Bandwidth) error {
	return c.PostJSON(ctx, "/wifi/bandwidth/"+ifx.String(), bandwidthBody{Bandwidth: bw})
}

func (c *Client) SetFixedRate(ctx context.Context, ifx wifi.Interface, enable bool, rate wifi.PhyRate) error {
	return c.PostJSON(ctx, "/wifi/fixrate/"+ifx.String(), struct {
		Enable bool         `json:"enable"`
		Rate   wifi.PhyRate `json:"rate"`
	}{enable, rate})
}

func (c *Client) IPInfo(ctx context.Context, ifx wifi.Interface) (wifi.IPInfo, error) {
	var info wifi.IPInfo
	err := c.GetJSON(ctx, "/netif/"+ifx.String()+"/ip", nil, &info)
	return info, err
}

type registerBody struct {
	Value uint32 `json:"value"`
}

func registerPath(addr uint32) string {
	return fmt.Sprintf("/reg/0x%08x", addr)
}

func (c *Client) ReadRegister(ctx context.Context, addr uint32) (uint32, error) {
	var b registerBody
	err := c.GetJSON(ctx, registerPath(addr), nil, &b)
	return b.Value, err
}

func (c *Client) WriteRegister(ctx context.Context, addr, value uint32) error {
	return c.PostJSON(ctx, registerPath(addr), registerBody{Value: value})
}

func (c *Client) Counters(ctx context.Context, cat wifi.Category) ([]wifi.Counter, error) {
	var counters []wifi.Counter
	err := c.GetJSON(ctx, "/stats/"+string(cat), nil, &counters)
	return counters, err
}
