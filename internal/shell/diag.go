package shell

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/vitaminmoo/wifictl/internal/wifi"
)

type regCmd struct {
	Read  word `short:"r" placeholder:"<address>" help:"read address of register"`
	Write word `short:"w" placeholder:"<address>" help:"write address of register"`
	Value word `short:"v" placeholder:"<value>" help:"value of register"`
}

func (c *regCmd) Run(ctx context.Context, env *Env) error {
	regs := env.Session.Stack
	switch {
	case c.Read.Set:
		v, err := regs.ReadRegister(ctx, c.Read.Value)
		if err != nil {
			return fmt.Errorf("read register 0x%08X: %w", c.Read.Value, err)
		}
		env.Log.Info(fmt.Sprintf("REGISTER:0x%08X,0x%08X", c.Read.Value, v))
	case c.Write.Set:
		if !c.Value.Set {
			env.Log.Error("Please add the register parameter value you want to write")
			return nil
		}
		if err := regs.WriteRegister(ctx, c.Write.Value, c.Value.Value); err != nil {
			return fmt.Errorf("write register 0x%08X: %w", c.Write.Value, err)
		}
		env.Log.Info(fmt.Sprintf("Write Register:0x%08X,0x%08X", c.Write.Value, c.Value.Value))
	default:
		env.Log.Error("Invalid parameter", zap.String("usage", "reg -r <address> | reg -w <address> -v <value>"))
	}
	return nil
}

type tpwCmd struct {
	Get bool   `short:"g" help:"get max tx power"`
	Set optInt `short:"s" placeholder:"<value>" help:"set max tx power"`
}

// Run reads or sets the max TX power in 0.25 dBm units.
func (c *tpwCmd) Run(ctx context.Context, env *Env) error {
	phy := env.Session.Stack
	if !c.Set.Set {
		p, err := phy.MaxTxPower(ctx)
		if err != nil {
			env.Log.Error("Get max tx power ERROR", zap.Error(err))
			return nil
		}
		env.Log.Info(fmt.Sprintf("Get max tx power is %d", p))
		return nil
	}

	if c.Set.Value < -128 || c.Set.Value > 127 {
		env.Log.Error("Invalid parameter", zap.Int("power", c.Set.Value))
		return nil
	}
	if err := phy.SetMaxTxPower(ctx, int8(c.Set.Value)); err != nil {
		env.Log.Error("Set max tx power ERROR", zap.Error(err))
		return nil
	}
	env.Log.Info("Set max tx power SUCCESS")
	return nil
}

// parseInterface logs and reports false for unknown interface names.
func parseInterface(env *Env, name string) (wifi.Interface, bool) {
	ifx, err := wifi.ParseInterface(name)
	if err != nil {
		env.Log.Error("Invalid parameter", zap.Error(err))
		return 0, false
	}
	return ifx, true
}

type proCmd struct {
	Get      optString `short:"g" placeholder:"<sta/ap/eth>" help:"Get the current protocol bitmap of the specified interface"`
	Set      optString `short:"s" placeholder:"<sta/ap/eth>" help:"Set interface"`
	Protocol optString `short:"p" placeholder:"<bgn/bg/b>" help:"Set the value of the specified interface protocol type"`
}

func (c *proCmd) Run(ctx context.Context, env *Env) error {
	phy := env.Session.Stack
	if c.Set.Set {
		ifx, ok := parseInterface(env, c.Set.Value)
		if !ok {
			return nil
		}
		p, err := wifi.ParseProtocol(c.Protocol.Value)
		if err != nil {
			env.Log.Error("Invalid parameter", zap.Error(err))
			return nil
		}
		if err := phy.SetProtocol(ctx, ifx, p); err != nil {
			env.Log.Error("Set protocol ERROR", zap.Error(err))
			return nil
		}
		env.Log.Info("Set protocol SUCCESS")
		return nil
	}

	ifx, ok := parseInterface(env, c.Get.Value)
	if !ok {
		return nil
	}
	p, err := phy.Protocol(ctx, ifx)
	if err != nil {
		env.Log.Error("Get protocol ERROR", zap.Error(err))
		return nil
	}
	env.Log.Info(fmt.Sprintf("Current WiFi protocol is %s", p))
	return nil
}

type bwdCmd struct {
	Get       optString `short:"g" placeholder:"<sta/ap/eth>" help:"Get the bandwidth of the specified interface"`
	Set       optString `short:"s" placeholder:"<sta/ap/eth>" help:"Set the specified interface"`
	Bandwidth optString `short:"b" placeholder:"<ht20/ht40>" help:"Set the bandwidth value of the specified interface"`
}

func (c *bwdCmd) Run(ctx context.Context, env *Env) error {
	phy := env.Session.Stack
	if c.Set.Set {
		ifx, ok := parseInterface(env, c.Set.Value)
		if !ok {
			return nil
		}
		bw, err := wifi.ParseBandwidth(c.Bandwidth.Value)
		if err != nil {
			env.Log.Error("Invalid parameter", zap.Error(err))
			return nil
		}
		if err := phy.SetBandwidth(ctx, ifx, bw); err != nil {
			env.Log.Error("Set bandwidth ERROR", zap.Error(err))
			return nil
		}
		env.Log.Info("Set bandwidth SUCCESS")
		return nil
	}

	ifx, ok := parseInterface(env, c.Get.Value)
	if !ok {
		return nil
	}
	bw, err := phy.Bandwidth(ctx, ifx)
	if err != nil {
		env.Log.Error("Get bandwidth ERROR", zap.Error(err))
		return nil
	}
	env.Log.Info(fmt.Sprintf("Current bandwidth is %s", bw))
	return nil
}

type fixRateCmd struct {
	Rate string `arg:"" name:"rate_str" help:"rate such as 1ML, 5.5MS, MCS0L, MCS7S etc, L-Long, S-Short"`
}

// Run pins the station TX rate.
func (c *fixRateCmd) Run(ctx context.Context, env *Env) error {
	env.Log.Info("set fix rate")
	rate, err := wifi.LookupRate(c.Rate)
	if err != nil {
		env.Log.Info(wifi.ErrUnknownRate.Error(), zap.String("rate", c.Rate), zap.Strings("valid", wifi.RateLabels()))
		return nil
	}
	if err := env.Session.Stack.SetFixedRate(ctx, wifi.InterfaceSTA, true, rate); err != nil {
		return fmt.Errorf("set fixed rate %s: %w", rate, err)
	}
	return nil
}

type statsCmd struct {
	Type string `arg:"" name:"type" help:"show statistics (hw, int, lmac, eb, hmac)"`
}

func (c *statsCmd) Run(ctx context.Context, env *Env) error {
	cat, err := wifi.ParseCategory(c.Type)
	if err != nil {
		env.Log.Info(fmt.Sprintf("unknow command type %s", c.Type))
		return nil
	}
	counters, err := env.Session.Stack.Counters(ctx, cat)
	if err != nil {
		return fmt.Errorf("read %s counters: %w", cat, err)
	}
	for _, cnt := range counters {
		env.Log.Info(fmt.Sprintf("%s: %d", cnt.Name, cnt.Value), zap.String("category", string(cat)))
	}
	return nil
}
