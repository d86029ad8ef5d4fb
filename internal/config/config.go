// Package config loads decoder tuning from JSON files. The schema matches
// the decoder's runtime knobs so one file drives both the CLI and the API
// server; fields omitted from the file keep their defaults, so partial
// configs are safe.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

// MaxConfigFileSize bounds config reads; a tuning file has no business being
// larger than this.
const MaxConfigFileSize = 1 << 20

// DecoderConfig is the root configuration for the decode engine.
type DecoderConfig struct {
	// Schema cache
	CacheCapacity *int    `json:"cache_capacity,omitempty"`
	FailureTTL    *string `json:"failure_ttl,omitempty"` // duration string like "5s"

	// Repeating-structure count resolution, in trial order. Valid names:
	// "hint", "name", "bitmask".
	CountStrategies *[]string `json:"count_strategies,omitempty"`

	// Field-name patterns excluded from record sizing (regular expressions).
	NonStructuralPatterns *[]string `json:"non_structural_patterns,omitempty"`

	// Ingest
	CaptureUDPPort *int `json:"capture_udp_port,omitempty"`
}

// EmptyDecoderConfig returns a config with every field unset.
func EmptyDecoderConfig() *DecoderConfig {
	return &DecoderConfig{}
}

// LoadDecoderConfig loads a DecoderConfig from a JSON file. The path must
// end in .json and the file must be under MaxConfigFileSize.
func LoadDecoderConfig(path string) (*DecoderConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %v", err)
	}
	if info.Size() > MaxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), MaxConfigFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %v", err)
	}

	var cfg DecoderConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %v", cleanPath, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the fields that can fail later if left unchecked.
func (c *DecoderConfig) Validate() error {
	if c.CacheCapacity != nil && *c.CacheCapacity <= 0 {
		return fmt.Errorf("cache_capacity must be positive, got %d", *c.CacheCapacity)
	}
	if c.FailureTTL != nil {
		if _, err := time.ParseDuration(*c.FailureTTL); err != nil {
			return fmt.Errorf("invalid failure_ttl %q: %v", *c.FailureTTL, err)
		}
	}
	if c.NonStructuralPatterns != nil {
		for _, p := range *c.NonStructuralPatterns {
			if _, err := regexp.Compile(p); err != nil {
				return fmt.Errorf("invalid non_structural_pattern %q: %v", p, err)
			}
		}
	}
	return nil
}

// ParsedFailureTTL returns the failure TTL as a duration, or ok=false when
// unset.
func (c *DecoderConfig) ParsedFailureTTL() (time.Duration, bool) {
	if c.FailureTTL == nil {
		return 0, false
	}
	d, err := time.ParseDuration(*c.FailureTTL)
	if err != nil {
		return 0, false
	}
	return d, true
}

// CompiledNonStructuralPatterns compiles the configured exclusion patterns.
// Validate has already vetted them; compile errors here mean the config was
// mutated after load and are returned rather than ignored.
func (c *DecoderConfig) CompiledNonStructuralPatterns() ([]*regexp.Regexp, error) {
	if c.NonStructuralPatterns == nil {
		return nil, nil
	}
	out := make([]*regexp.Regexp, 0, len(*c.NonStructuralPatterns))
	for _, p := range *c.NonStructuralPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid non_structural_pattern %q: %v", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}
