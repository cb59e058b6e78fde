package ratelimit

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Class identifies a group of endpoints sharing one limit rule.
type Class string

const (
	// ClassAuth covers login and credential endpoints.
	ClassAuth Class = "auth"
	// ClassAPI covers the general API surface.
	ClassAPI Class = "api"
	// ClassSensitive covers admin and other high-value endpoints.
	ClassSensitive Class = "sensitive"
)

// Rule defines the fixed-window threshold and the post-limit block for a class.
type Rule struct {
	Requests      int
	Window        time.Duration
	BlockDuration time.Duration
}

// Policy maps limit classes to their rules.
type Policy map[Class]Rule

// DefaultPolicy returns the compiled-in limit classes.
func DefaultPolicy() Policy {
	return Policy{
		ClassAuth:      {Requests: 5, Window: 15 * time.Minute, BlockDuration: 30 * time.Minute},
		ClassAPI:       {Requests: 100, Window: time.Minute, BlockDuration: 5 * time.Minute},
		ClassSensitive: {Requests: 5, Window: time.Minute, BlockDuration: 60 * time.Minute},
	}
}

type policyFile struct {
	Classes map[string]struct {
		Requests int    `yaml:"requests"`
		Window   string `yaml:"window"`
		Block    string `yaml:"block"`
	} `yaml:"classes"`
}

// LoadPolicy reads class overrides from a YAML file. Classes absent from the
// file keep their defaults.
func LoadPolicy(path string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rate limit policy: %w", err)
	}

	var file policyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse rate limit policy: %w", err)
	}

	policy := DefaultPolicy()
	for name, entry := range file.Classes {
		window, err := time.ParseDuration(entry.Window)
		if err != nil {
			return nil, fmt.Errorf("invalid window for class %q: %w", name, err)
		}
		block, err := time.ParseDuration(entry.Block)
		if err != nil {
			return nil, fmt.Errorf("invalid block for class %q: %w", name, err)
		}
		if entry.Requests <= 0 {
			return nil, fmt.Errorf("invalid request threshold for class %q", name)
		}
		policy[Class(name)] = Rule{Requests: entry.Requests, Window: window, BlockDuration: block}
	}
	return policy, nil
}
