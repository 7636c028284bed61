package shell

import (
	"fmt"
	"net/netip"
	"strconv"

	"github.com/alecthomas/kong"

	"github.com/vitaminmoo/wifictl/internal/iperf"
)

// The option types below record whether a flag was given at all, which the
// handlers use to pick between get and set behaviour.

func popString(ctx *kong.DecodeContext) (string, error) {
	var s string
	if err := ctx.Scan.PopValueInto("value", &s); err != nil {
		return "", err
	}
	return s, nil
}

// popNumber is popString for numeric options: a negative literal such as
// "-5" is taken as the value rather than as a short flag.
func popNumber(ctx *kong.DecodeContext) (string, error) {
	t := ctx.Scan.Peek()
	if v, ok := t.Value.(string); ok && t.Type == kong.UntypedToken && isNegative(v) {
		ctx.Scan.Pop()
		return v, nil
	}
	return popString(ctx)
}

func isNegative(s string) bool {
	return len(s) > 1 && s[0] == '-' && s[1] >= '0' && s[1] <= '9'
}

type optString struct {
	Value string
	Set   bool
}

func (o *optString) Decode(ctx *kong.DecodeContext) error {
	s, err := popString(ctx)
	if err != nil {
		return err
	}
	o.Value, o.Set = s, true
	return nil
}

// optInt accepts decimal, 0x hex and 0 octal.
type optInt struct {
	Value int
	Set   bool
}

func (o *optInt) Decode(ctx *kong.DecodeContext) error {
	s, err := popNumber(ctx)
	if err != nil {
		return err
	}
	n, err := strconv.ParseInt(s, 0, 0)
	if err != nil {
		return fmt.Errorf("invalid integer %q", s)
	}
	o.Value, o.Set = int(n), true
	return nil
}

type optPort struct {
	Value uint16
	Set   bool
}

func (o *optPort) Decode(ctx *kong.DecodeContext) error {
	s, err := popNumber(ctx)
	if err != nil {
		return err
	}
	n, err := strconv.ParseUint(s, 0, 16)
	if err != nil || n == 0 {
		return fmt.Errorf("invalid port %q", s)
	}
	o.Value, o.Set = uint16(n), true
	return nil
}

// word is a 32-bit register address or value.
type word struct {
	Value uint32
	Set   bool
}

func (w *word) Decode(ctx *kong.DecodeContext) error {
	s, err := popNumber(ctx)
	if err != nil {
		return err
	}
	n, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return fmt.Errorf("invalid 32-bit word %q", s)
	}
	w.Value, w.Set = uint32(n), true
	return nil
}

type optAddr struct {
	Value netip.Addr
	Set   bool
}

func (o *optAddr) Decode(ctx *kong.DecodeContext) error {
	s, err := popString(ctx)
	if err != nil {
		return err
	}
	a, err := netip.ParseAddr(s)
	if err != nil || !a.Is4() {
		return fmt.Errorf("invalid IPv4 address %q", s)
	}
	o.Value, o.Set = a, true
	return nil
}

type optTOS struct {
	Value uint8
	Set   bool
}

func (o *optTOS) Decode(ctx *kong.DecodeContext) error {
	s, err := popString(ctx)
	if err != nil {
		return err
	}
	v, err := iperf.ParseTOS(s)
	if err != nil {
		return err
	}
	o.Value, o.Set = v, true
	return nil
}
