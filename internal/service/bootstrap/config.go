package bootstrap

import (
	"fmt"
	"strings"
	"time"
)

// FailurePolicy decides what a failed follow or post call does to the run.
type FailurePolicy string

const (
	// FailureContinue logs and counts the failure, then moves on.
	FailureContinue FailurePolicy = "continue"
	// FailureAbort stops the run with an ActionCallError.
	FailureAbort FailurePolicy = "abort"
)

// DuplicatePolicy decides which record owns a dataset id declared more than once.
type DuplicatePolicy string

const (
	DuplicateLastWins  DuplicatePolicy = "last-wins"
	DuplicateFirstWins DuplicatePolicy = "first-wins"
	DuplicateReject    DuplicatePolicy = "reject"
)

const (
	DefaultMaxPostsPerAgent = 5
	DefaultConcurrency      = 8
	DefaultCallTimeout      = 30 * time.Second
)

// Config tunes one bootstrap run.
// Zero values select the package defaults.
type Config struct {
	MaxPostsPerAgent int
	Concurrency      int
	CallTimeout      time.Duration
	FailurePolicy    FailurePolicy
	DuplicatePolicy  DuplicatePolicy
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		MaxPostsPerAgent: DefaultMaxPostsPerAgent,
		Concurrency:      DefaultConcurrency,
		CallTimeout:      DefaultCallTimeout,
		FailurePolicy:    FailureContinue,
		DuplicatePolicy:  DuplicateLastWins,
	}
}

// normalize validates c, canonicalises both policies and fills defaults.
func (c Config) normalize() (Config, error) {
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	c = c.withDefaults()
	// Validate already accepted both values.
	c.FailurePolicy, _ = ParseFailurePolicy(string(c.FailurePolicy))
	c.DuplicatePolicy, _ = ParseDuplicatePolicy(string(c.DuplicatePolicy))
	return c, nil
}

// withDefaults fills zero values from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxPostsPerAgent == 0 {
		c.MaxPostsPerAgent = d.MaxPostsPerAgent
	}
	if c.Concurrency == 0 {
		c.Concurrency = d.Concurrency
	}
	if c.CallTimeout == 0 {
		c.CallTimeout = d.CallTimeout
	}
	if c.FailurePolicy == "" {
		c.FailurePolicy = d.FailurePolicy
	}
	if c.DuplicatePolicy == "" {
		c.DuplicatePolicy = d.DuplicatePolicy
	}
	return c
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.MaxPostsPerAgent < 0 {
		return fmt.Errorf("invalid max posts per agent %d", c.MaxPostsPerAgent)
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("invalid concurrency %d", c.Concurrency)
	}
	if c.CallTimeout < 0 {
		return fmt.Errorf("invalid call timeout %s", c.CallTimeout)
	}
	if c.FailurePolicy != "" {
		if _, err := ParseFailurePolicy(string(c.FailurePolicy)); err != nil {
			return err
		}
	}
	if c.DuplicatePolicy != "" {
		if _, err := ParseDuplicatePolicy(string(c.DuplicatePolicy)); err != nil {
			return err
		}
	}
	return nil
}

// ParseFailurePolicy accepts "continue" or "abort", case-insensitively.
func ParseFailurePolicy(raw string) (FailurePolicy, error) {
	switch p := FailurePolicy(strings.ToLower(strings.TrimSpace(raw))); p {
	case FailureContinue, FailureAbort:
		return p, nil
	default:
		return "", fmt.Errorf("invalid failure policy value %q", raw)
	}
}

// ParseDuplicatePolicy accepts "last-wins", "first-wins" or "reject".
func ParseDuplicatePolicy(raw string) (DuplicatePolicy, error) {
	switch p := DuplicatePolicy(strings.ToLower(strings.TrimSpace(raw))); p {
	case DuplicateLastWins, DuplicateFirstWins, DuplicateReject:
		return p, nil
	default:
		return "", fmt.Errorf("invalid duplicate policy value %q", raw)
	}
}
