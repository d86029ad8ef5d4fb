package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadDecoderConfig(t *testing.T) {
	path := writeConfig(t, "decoder.json", `{
		"cache_capacity": 128,
		"failure_ttl": "10s",
		"count_strategies": ["hint", "bitmask"],
		"non_structural_patterns": ["(?i)spare"],
		"capture_udp_port": 9000
	}`)

	cfg, err := LoadDecoderConfig(path)
	if err != nil {
		t.Fatalf("LoadDecoderConfig: %v", err)
	}

	if cfg.CacheCapacity == nil || *cfg.CacheCapacity != 128 {
		t.Errorf("CacheCapacity = %v, want 128", cfg.CacheCapacity)
	}
	if ttl, ok := cfg.ParsedFailureTTL(); !ok || ttl != 10*time.Second {
		t.Errorf("ParsedFailureTTL = %v,%v, want 10s", ttl, ok)
	}
	if cfg.CountStrategies == nil || len(*cfg.CountStrategies) != 2 {
		t.Errorf("CountStrategies = %v", cfg.CountStrategies)
	}
	if cfg.CaptureUDPPort == nil || *cfg.CaptureUDPPort != 9000 {
		t.Errorf("CaptureUDPPort = %v, want 9000", cfg.CaptureUDPPort)
	}

	patterns, err := cfg.CompiledNonStructuralPatterns()
	if err != nil {
		t.Fatalf("CompiledNonStructuralPatterns: %v", err)
	}
	if len(patterns) != 1 || !patterns[0].MatchString("Spare Bits") {
		t.Errorf("patterns = %v", patterns)
	}
}

func TestLoadDecoderConfigPartial(t *testing.T) {
	path := writeConfig(t, "partial.json", `{"cache_capacity": 16}`)

	cfg, err := LoadDecoderConfig(path)
	if err != nil {
		t.Fatalf("LoadDecoderConfig: %v", err)
	}
	if cfg.FailureTTL != nil || cfg.CountStrategies != nil {
		t.Error("unset fields should stay nil")
	}
	if _, ok := cfg.ParsedFailureTTL(); ok {
		t.Error("ParsedFailureTTL should report unset")
	}
	patterns, err := cfg.CompiledNonStructuralPatterns()
	if err != nil || patterns != nil {
		t.Errorf("patterns = %v, %v, want nil, nil", patterns, err)
	}
}

func TestLoadDecoderConfigRejectsExtension(t *testing.T) {
	path := writeConfig(t, "decoder.yaml", `{}`)

	if _, err := LoadDecoderConfig(path); err == nil {
		t.Error("non-.json extension accepted")
	}
}

func TestLoadDecoderConfigRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"zero capacity", `{"cache_capacity": 0}`},
		{"negative capacity", `{"cache_capacity": -1}`},
		{"bad ttl", `{"failure_ttl": "soon"}`},
		{"bad pattern", `{"non_structural_patterns": ["("]}`},
		{"not json", `cache_capacity: 16`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, "bad.json", tt.content)
			if _, err := LoadDecoderConfig(path); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestLoadDecoderConfigMissingFile(t *testing.T) {
	if _, err := LoadDecoderConfig(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Error("missing file accepted")
	}
}
