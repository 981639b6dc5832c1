package config

import (
	"slices"

	"github.com/san-kum/rkode/internal/dynamo"
)

func preset(model, method string, tf float64, n int, adaptive bool, params map[string]any) *Config {
	return &Config{
		Model: model, Method: method, Tf: tf, N: n, Adaptive: adaptive,
		Tolerances: dynamo.DefaultTolerances(), MaxRetries: dynamo.DefaultMaxRetries,
		Params: params,
	}
}

var Presets = map[string]map[string]*Config{
	"decay": {
		"unit":  preset("decay", "dopri54", 1, 10, true, nil),
		"long":  preset("decay", "dopri54", 10, 1, true, nil),
		"stiff": preset("decay", "dopri54", 1, 1, true, map[string]any{"rate": 1000.0}),
		"fixed": preset("decay", "rk4", 1, 10, false, nil),
	},
	"logistic": {
		"growth": preset("logistic", "dopri54", 10, 10, true, nil),
		"fast":   preset("logistic", "bs32", 5, 10, true, map[string]any{"rate": 5.0, "capacity": 2.0}),
	},
	"oscillator": {
		"undamped": preset("oscillator", "dopri54", 20, 20, true, nil),
		"damped":   preset("oscillator", "dopri54", 20, 20, true, map[string]any{"damping": 0.1}),
		"fixed":    preset("oscillator", "rk4", 20, 200, false, nil),
	},
	"vanderpol": {
		"classic": preset("vanderpol", "dopri54", 20, 10, true, nil),
		"stiff":   preset("vanderpol", "dopri54", 20, 10, true, map[string]any{"mu": 5.0}),
	},
	"lorenz": {
		"butterfly": preset("lorenz", "dopri54", 25, 100, true, nil),
		"short":     preset("lorenz", "dopri54", 5, 10, true, nil),
	},
	"springchain": {
		"three": preset("springchain", "dopri54", 10, 10, true, nil),
		"five":  preset("springchain", "dopri54", 10, 10, true, map[string]any{"masses": 5, "damping": 0.1}),
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(model, name string) *Config {
	if presets, ok := Presets[model]; ok {
		if cfg, ok := presets[name]; ok {
			return cfg.Clone()
		}
	}
	return nil
}

func ListPresets(model string) []string {
	presets, ok := Presets[model]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
