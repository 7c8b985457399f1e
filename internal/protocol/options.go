package protocol

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/sweeney/relay-lights/internal/device"
)

// Config option names accepted by set_config.
const (
	OptionInitialState = "initial_state"
	OptionDefaultMode  = "default_mode"
	OptionLatchingMode = "latching_mode"
	OptionCooldown     = "cooldown"
)

type namedOption struct {
	name  string
	value any
}

// intValue converts a decoded option to an int. Booleans count as 0 and 1.
func intValue(v any) (int, error) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("%w: %s is not an integer", device.ErrOutOfRange, n)
		}
		return int(i), nil
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not an integer", device.ErrOutOfRange, n)
		}
		return i, nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("%w: %v is not an integer", device.ErrOutOfRange, n)
		}
		return int(n), nil
	}
	return 0, fmt.Errorf("%w: unsupported option %v", device.ErrOutOfRange, v)
}

// intOption returns options[i] as an int within [lo, hi].
func intOption(options []any, i, lo, hi int) (int, error) {
	if i >= len(options) {
		return 0, fmt.Errorf("%w: missing option %d", device.ErrOutOfRange, i)
	}
	return inRange(options[i], lo, hi)
}

func inRange(v any, lo, hi int) (int, error) {
	n, err := intValue(v)
	if err != nil {
		return 0, err
	}
	if n < lo || n > hi {
		return 0, fmt.Errorf("%w: %d not in [%d, %d]", device.ErrOutOfRange, n, lo, hi)
	}
	return n, nil
}

// namedOptions accepts either flat name/value pairs
//
//	["initial_state", 1, "default_mode", 3]
//
// or objects
//
//	[{"initial_state": true}, {"default_mode": 3}]
//
// and returns them in order.
func namedOptions(options []any) ([]namedOption, error) {
	var out []namedOption
	for i := 0; i < len(options); i++ {
		switch v := options[i].(type) {
		case map[string]any:
			for name, value := range v {
				out = append(out, namedOption{name: name, value: value})
			}
		case string:
			if i+1 >= len(options) {
				return nil, fmt.Errorf("%w: option %q has no value", device.ErrOutOfRange, v)
			}
			out = append(out, namedOption{name: v, value: options[i+1]})
			i++
		default:
			return nil, fmt.Errorf("%w: expected option name, got %v", device.ErrOutOfRange, v)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no options", device.ErrOutOfRange)
	}
	return out, nil
}

// configChange is a validated set_config request.
type configChange struct {
	cfg      device.Config
	cooldown *uint16
	// persist is set when a persisted field was named.
	persist bool
}

// parseConfig applies named options on top of cur. Nothing is returned
// unless every option is valid.
func parseConfig(cur device.Config, options []any) (configChange, error) {
	named, err := namedOptions(options)
	if err != nil {
		return configChange{}, err
	}

	ch := configChange{cfg: cur}
	for _, o := range named {
		switch o.name {
		case OptionInitialState:
			n, err := inRange(o.value, 0, 1)
			if err != nil {
				return configChange{}, fmt.Errorf("%s: %w", o.name, err)
			}
			ch.cfg.InitialLightState = n == 1
			ch.persist = true
		case OptionDefaultMode:
			n, err := inRange(o.value, 0, int(device.MaxMode(device.MaxRelays)))
			if err != nil {
				return configChange{}, fmt.Errorf("%s: %w", o.name, err)
			}
			ch.cfg.DefaultModeOnTurnOn = uint8(n)
			ch.persist = true
		case OptionLatchingMode:
			n, err := inRange(o.value, 0, 1)
			if err != nil {
				return configChange{}, fmt.Errorf("%s: %w", o.name, err)
			}
			ch.cfg.LatchingFollowsPosition = n == 1
			ch.persist = true
		case OptionCooldown:
			n, err := inRange(o.value, 0, 0xFFFF)
			if err != nil {
				return configChange{}, fmt.Errorf("%s: %w", o.name, err)
			}
			s := uint16(n)
			ch.cooldown = &s
		default:
			return configChange{}, fmt.Errorf("%w: unknown option %q", device.ErrOutOfRange, o.name)
		}
	}
	return ch, nil
}
